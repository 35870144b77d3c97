package services

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gdroom/internal/core/domain"
	"gdroom/internal/core/ports"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockMediaSession struct {
	mock.Mock
}

func (m *MockMediaSession) CreateOffer(ctx context.Context) (json.RawMessage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockMediaSession) ApplyAnswer(ctx context.Context, answer json.RawMessage) error {
	args := m.Called(ctx, answer)
	return args.Error(0)
}

func (m *MockMediaSession) AddCandidate(ctx context.Context, candidate json.RawMessage) error {
	args := m.Called(ctx, candidate)
	return args.Error(0)
}

func (m *MockMediaSession) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockMediaEngine struct {
	mock.Mock

	mu        sync.Mutex
	callbacks ports.MediaCallbacks
}

func (m *MockMediaEngine) NewSession(callbacks ports.MediaCallbacks) (ports.MediaSession, error) {
	m.mu.Lock()
	m.callbacks = callbacks
	m.mu.Unlock()

	args := m.Called(callbacks)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.MediaSession), args.Error(1)
}

// Callbacks returns the callbacks captured from the last NewSession call.
func (m *MockMediaEngine) Callbacks() ports.MediaCallbacks {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callbacks
}

// captureChannel records every sent message and delivers nothing.
type captureChannel struct {
	mu   sync.Mutex
	sent []sentMessage
}

type sentMessage struct {
	room domain.RoomCode
	to   string
	msg  domain.SignalMessage
}

func (c *captureChannel) Send(ctx context.Context, room domain.RoomCode, to string, msg domain.SignalMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentMessage{room, to, msg})
	return nil
}

func (c *captureChannel) Subscribe(room domain.RoomCode, selfID string, handler ports.SignalHandler) (func(), error) {
	return func() {}, nil
}

func (c *captureChannel) Close() error { return nil }

func (c *captureChannel) sentTo(to string, t domain.MessageType) []domain.SignalMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []domain.SignalMessage
	for _, s := range c.sent {
		if s.to == to && s.msg.Type == t {
			out = append(out, s.msg)
		}
	}
	return out
}

// stubLevelSource returns a settable level and records Close.
type stubLevelSource struct {
	level  uint32
	closed uint32
}

func (s *stubLevelSource) Level() uint8 {
	return uint8(atomic.LoadUint32(&s.level))
}

func (s *stubLevelSource) set(level uint8) {
	atomic.StoreUint32(&s.level, uint32(level))
}

func (s *stubLevelSource) Close() error {
	atomic.StoreUint32(&s.closed, 1)
	return nil
}

func (s *stubLevelSource) isClosed() bool {
	return atomic.LoadUint32(&s.closed) == 1
}

// countingMetrics tallies calls for assertions.
type countingMetrics struct {
	connected     int64
	disconnected  int64
	completed     int64
	failed        int64
	contributions int64
	sessionsEnded int64
}

func (m *countingMetrics) RoomCreated()             {}
func (m *countingMetrics) RoomClosed()              {}
func (m *countingMetrics) ParticipantConnected()    { atomic.AddInt64(&m.connected, 1) }
func (m *countingMetrics) ParticipantDisconnected() { atomic.AddInt64(&m.disconnected, 1) }
func (m *countingMetrics) SessionStarted()          {}
func (m *countingMetrics) SessionEnded()            { atomic.AddInt64(&m.sessionsEnded, 1) }
func (m *countingMetrics) SignalMessage(string)     {}
func (m *countingMetrics) NegotiationCompleted(time.Duration) {
	atomic.AddInt64(&m.completed, 1)
}
func (m *countingMetrics) NegotiationFailed()    { atomic.AddInt64(&m.failed, 1) }
func (m *countingMetrics) ContributionRecorded() { atomic.AddInt64(&m.contributions, 1) }

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
