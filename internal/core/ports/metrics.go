package ports

import "time"

// Metrics receives operational counters from the session core.
type Metrics interface {
	RoomCreated()
	RoomClosed()
	ParticipantConnected()
	ParticipantDisconnected()
	SessionStarted()
	SessionEnded()
	SignalMessage(messageType string)
	NegotiationCompleted(d time.Duration)
	NegotiationFailed()
	ContributionRecorded()
}
