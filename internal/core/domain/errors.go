package domain

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrParticipantExists   = errors.New("participant already exists")
	ErrRoomFull            = errors.New("room is full")
	ErrNoParticipants      = errors.New("no participants have joined")
	ErrSessionEnded        = errors.New("session already ended")
	ErrReportNotReady      = errors.New("analysis report not ready")
)
