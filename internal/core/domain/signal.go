package domain

import "encoding/json"

type MessageType string

const (
	MessageJoinRequest    MessageType = "join-request"
	MessageOffer          MessageType = "offer"
	MessageAnswer         MessageType = "answer"
	MessageICECandidate   MessageType = "ice-candidate"
	MessageSessionStart   MessageType = "session-start"
	MessageSessionEnd     MessageType = "session-end"
	MessageActivitySample MessageType = "activity-sample"
)

// SignalMessage is the wire format exchanged over the signal channel.
// Payload fields are type-specific; description and candidate blobs are opaque
// to everything except the media layer.
type SignalMessage struct {
	Type    MessageType     `json:"type"`
	From    string          `json:"from"` // participant id or HostID
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinRequestPayload struct {
	Name string `json:"name"`
}

// DescriptionPayload carries an opaque session description (offer or answer).
type DescriptionPayload struct {
	Description json.RawMessage `json:"description"`
}

// CandidatePayload carries an opaque network-path candidate.
type CandidatePayload struct {
	Candidate json.RawMessage `json:"candidate"`
}

type ActivitySamplePayload struct {
	Level float64 `json:"level"` // 0-100
}

// NewSignalMessage marshals payload and wraps it in a SignalMessage.
func NewSignalMessage(t MessageType, from string, payload interface{}) (SignalMessage, error) {
	msg := SignalMessage{Type: t, From: from}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return SignalMessage{}, err
		}
		msg.Payload = raw
	}
	return msg, nil
}
