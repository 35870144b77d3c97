package domain

import "time"

type RoomCode string
type ParticipantID string

// HostID is the reserved sender/recipient id for the room host.
const HostID = "host"

type Room struct {
	Code      RoomCode
	CreatedAt time.Time
}
