package services

import (
	"context"
	"sync"

	"gdroom/internal/core/domain"
	"gdroom/internal/core/ports"
	"gdroom/pkg/utils"

	"go.uber.org/zap"
)

// RoomService owns the set of active rooms in this process. Rooms live in
// memory only; nothing survives a restart.
type RoomService struct {
	channel ports.SignalChannel
	engine  ports.MediaEngine
	metrics ports.Metrics
	cfg     SessionConfig
	logger  *zap.SugaredLogger

	mu    sync.RWMutex
	rooms map[domain.RoomCode]*Session
}

func NewRoomService(
	channel ports.SignalChannel,
	engine ports.MediaEngine,
	metrics ports.Metrics,
	cfg SessionConfig,
	logger *zap.SugaredLogger,
) *RoomService {
	return &RoomService{
		channel: channel,
		engine:  engine,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
		rooms:   make(map[domain.RoomCode]*Session),
	}
}

// CreateRoom generates a fresh room code and wires a session for it.
func (r *RoomService) CreateRoom() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var code domain.RoomCode
	for {
		code = domain.RoomCode(utils.GenerateRoomCode())
		if _, taken := r.rooms[code]; !taken {
			break
		}
	}

	session, err := NewSession(code, r.channel, r.engine, r.metrics, r.cfg, r.logger)
	if err != nil {
		return nil, err
	}
	r.rooms[code] = session
	r.metrics.RoomCreated()

	r.logger.Infow("room created", "room", code)
	return session, nil
}

// Get returns the session for a room code.
func (r *RoomService) Get(code domain.RoomCode) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.rooms[code]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}
	return session, nil
}

// CloseRoom ends the room's session and removes it.
func (r *RoomService) CloseRoom(ctx context.Context, code domain.RoomCode) error {
	r.mu.Lock()
	session, exists := r.rooms[code]
	if exists {
		delete(r.rooms, code)
	}
	r.mu.Unlock()

	if !exists {
		return domain.ErrRoomNotFound
	}

	session.Shutdown(ctx)
	r.metrics.RoomClosed()
	r.logger.Infow("room closed", "room", code)
	return nil
}

// CloseAll tears down every active room, best-effort.
func (r *RoomService) CloseAll(ctx context.Context) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.rooms))
	for code, s := range r.rooms {
		sessions = append(sessions, s)
		delete(r.rooms, code)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Shutdown(ctx)
		r.metrics.RoomClosed()
	}
}
