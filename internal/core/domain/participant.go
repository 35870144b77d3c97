package domain

import "time"

type ConnectionState string

const (
	StateJoining   ConnectionState = "joining"
	StateOfferSent ConnectionState = "offer_sent"
	StateConnected ConnectionState = "connected"
	StateFailed    ConnectionState = "failed"
	StateClosed    ConnectionState = "closed"
)

// Terminal reports whether no further negotiation is possible in this state.
func (s ConnectionState) Terminal() bool {
	return s == StateFailed || s == StateClosed
}

type Participant struct {
	ID       ParticipantID
	Name     string
	State    ConnectionState
	JoinedAt time.Time

	Speaking       bool
	SpeakingTime   int     // cumulative seconds, accumulated by the session timer
	Contributions  int     // discrete speaking turns
	AudioLevel     float64 // latest sample, 0-100 display scale
	SentimentProxy float64 // heuristic accumulator, updated on speaking transitions
}
