package utils

import (
	"crypto/rand"

	"github.com/google/uuid"
)

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const roomCodeLength = 6

// GenerateRoomCode returns a 6-character uppercase alphanumeric room code,
// suitable for typing on another device.
func GenerateRoomCode() string {
	b := make([]byte, roomCodeLength)
	rand.Read(b)
	for i := range b {
		b[i] = roomCodeAlphabet[int(b[i])%len(roomCodeAlphabet)]
	}
	return string(b)
}

// GenerateParticipantID returns a globally unique participant id.
func GenerateParticipantID() string {
	return "participant_" + uuid.NewString()
}
