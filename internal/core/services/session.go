package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"gdroom/internal/core/domain"
	"gdroom/internal/core/ports"
	"gdroom/pkg/tracing"

	"go.uber.org/zap"
)

// SessionConfig carries the tunables a room session needs.
type SessionConfig struct {
	TickInterval       time.Duration
	SampleInterval     time.Duration
	SpeakingThreshold  uint8
	NegotiationTimeout time.Duration
	MaxParticipants    int
}

// Session orchestrates one room: it is the single dispatch point for inbound
// signaling, owns the per-participant negotiators and activity monitors, and
// drives the registry timer while the discussion runs.
type Session struct {
	room     domain.RoomCode
	info     domain.Room
	registry *Registry
	channel  ports.SignalChannel
	engine   ports.MediaEngine
	metrics  ports.Metrics
	cfg      SessionConfig
	logger   *zap.SugaredLogger

	mu          sync.Mutex
	negotiators map[domain.ParticipantID]*Negotiator
	monitors    map[domain.ParticipantID]*ActivityMonitor
	tickerStop  chan struct{}
	tickerDone  chan struct{}

	unsubscribe func()
}

// NewSession wires a session and subscribes it to the host mailbox of the
// signal channel.
func NewSession(
	room domain.RoomCode,
	channel ports.SignalChannel,
	engine ports.MediaEngine,
	metrics ports.Metrics,
	cfg SessionConfig,
	logger *zap.SugaredLogger,
) (*Session, error) {
	s := &Session{
		room:        room,
		info:        domain.Room{Code: room, CreatedAt: time.Now()},
		registry:    NewRegistry(room, cfg.MaxParticipants, logger),
		channel:     channel,
		engine:      engine,
		metrics:     metrics,
		cfg:         cfg,
		logger:      logger,
		negotiators: make(map[domain.ParticipantID]*Negotiator),
		monitors:    make(map[domain.ParticipantID]*ActivityMonitor),
	}

	unsubscribe, err := channel.Subscribe(room, domain.HostID, s.HandleMessage)
	if err != nil {
		return nil, err
	}
	s.unsubscribe = unsubscribe
	return s, nil
}

func (s *Session) Room() domain.RoomCode { return s.room }
func (s *Session) Info() domain.Room     { return s.info }
func (s *Session) Registry() *Registry   { return s.registry }

// HandleMessage is the single entry point for signaling addressed to the
// host. Malformed and out-of-order messages are logged and dropped; nothing
// here is fatal to the room.
func (s *Session) HandleMessage(msg domain.SignalMessage) {
	s.metrics.SignalMessage(string(msg.Type))
	ctx, span := tracing.TraceSignalMessage(context.Background(), string(msg.Type), string(s.room), msg.From)
	defer span.End()

	switch msg.Type {
	case domain.MessageJoinRequest:
		s.handleJoinRequest(ctx, msg)
	case domain.MessageAnswer:
		s.handleAnswer(ctx, msg)
	case domain.MessageICECandidate:
		s.handleCandidate(ctx, msg)
	case domain.MessageActivitySample:
		s.handleActivitySample(msg)
	default:
		s.logger.Debugw("dropping unexpected message",
			"room", s.room, "type", msg.Type, "from", msg.From)
	}
}

func (s *Session) handleJoinRequest(ctx context.Context, msg domain.SignalMessage) {
	var payload domain.JoinRequestPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.logger.Warnw("dropping malformed join-request", "room", s.room, "from", msg.From, "error", err)
		return
	}

	id := domain.ParticipantID(msg.From)
	if err := s.registry.OnJoin(id, payload.Name); err != nil {
		s.logger.Warnw("rejecting join-request", "room", s.room, "from", msg.From, "error", err)
		return
	}

	negotiator := NewNegotiator(
		s.room, id, s.channel, s.engine,
		s.cfg.NegotiationTimeout, s.metrics, s.logger,
		s.onStateChange, s.onTrack,
	)

	s.mu.Lock()
	s.negotiators[id] = negotiator
	s.mu.Unlock()

	if err := negotiator.Start(ctx); err != nil {
		s.logger.Errorw("failed to start negotiation",
			"room", s.room, "participant_id", id, "error", err)
		s.registry.SetState(id, domain.StateFailed)
		s.metrics.NegotiationFailed()
	}
}

func (s *Session) handleAnswer(ctx context.Context, msg domain.SignalMessage) {
	var payload domain.DescriptionPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.logger.Warnw("dropping malformed answer", "room", s.room, "from", msg.From, "error", err)
		return
	}

	negotiator, ok := s.negotiator(domain.ParticipantID(msg.From))
	if !ok {
		s.logger.Warnw("dropping answer without negotiator", "room", s.room, "from", msg.From)
		return
	}
	negotiator.HandleAnswer(ctx, payload.Description)
}

func (s *Session) handleCandidate(ctx context.Context, msg domain.SignalMessage) {
	var payload domain.CandidatePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.logger.Warnw("dropping malformed candidate", "room", s.room, "from", msg.From, "error", err)
		return
	}

	// Offers precede candidate exchange, so a missing negotiator means the
	// candidate is stale; discard silently.
	negotiator, ok := s.negotiator(domain.ParticipantID(msg.From))
	if !ok {
		return
	}
	negotiator.HandleCandidate(ctx, payload.Candidate)
}

func (s *Session) handleActivitySample(msg domain.SignalMessage) {
	var payload domain.ActivitySamplePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return
	}
	s.registry.OnRemoteLevel(domain.ParticipantID(msg.From), payload.Level)
}

func (s *Session) negotiator(id domain.ParticipantID) (*Negotiator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.negotiators[id]
	return n, ok
}

func (s *Session) onStateChange(id domain.ParticipantID, state domain.ConnectionState) {
	if err := s.registry.SetState(id, state); err != nil {
		return
	}
	switch state {
	case domain.StateConnected:
		s.metrics.ParticipantConnected()
	case domain.StateFailed, domain.StateClosed:
		s.metrics.ParticipantDisconnected()
	}
}

// onTrack attaches an activity monitor once a participant's media stream is
// established. The monitor idles until the session clock runs.
func (s *Session) onTrack(id domain.ParticipantID, source ports.LevelSource) {
	monitor := NewActivityMonitor(
		id, source, s.registry,
		s.cfg.SpeakingThreshold, s.cfg.SampleInterval,
		s.metrics, s.logger,
	)

	s.mu.Lock()
	if old, exists := s.monitors[id]; exists {
		go old.Stop()
	}
	s.monitors[id] = monitor
	s.mu.Unlock()

	monitor.Start()
	s.logger.Infow("media stream attached", "room", s.room, "participant_id", id)
}

// Start flips the session clock to running, notifies every participant and
// begins the one-second timer. Fails with ErrNoParticipants on an empty room.
func (s *Session) Start(ctx context.Context) error {
	if err := s.registry.StartSession(time.Now()); err != nil {
		return err
	}
	s.metrics.SessionStarted()
	s.broadcast(ctx, domain.MessageSessionStart)

	s.mu.Lock()
	if s.tickerStop == nil {
		s.tickerStop = make(chan struct{})
		s.tickerDone = make(chan struct{})
		go s.runTimer(s.tickerStop, s.tickerDone)
	}
	s.mu.Unlock()
	return nil
}

func (s *Session) runTimer(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			s.registry.OnTick(now)
		}
	}
}

// End freezes the registry, notifies participants, tears down all monitors
// and negotiators, and stores the analysis report. Idempotent: repeated calls
// leave the stored report unchanged. Teardown is unconditionally effective;
// a failure releasing one participant's resources never blocks the others.
func (s *Session) End(ctx context.Context) {
	snapshot, alreadyEnded := s.registry.EndSession(time.Now())
	if alreadyEnded {
		return
	}

	s.mu.Lock()
	if s.tickerStop != nil {
		close(s.tickerStop)
		<-s.tickerDone
		s.tickerStop = nil
	}
	monitors := make([]*ActivityMonitor, 0, len(s.monitors))
	for _, m := range s.monitors {
		monitors = append(monitors, m)
	}
	negotiators := make([]*Negotiator, 0, len(s.negotiators))
	for _, n := range s.negotiators {
		negotiators = append(negotiators, n)
	}
	s.mu.Unlock()

	s.broadcast(ctx, domain.MessageSessionEnd)

	for _, m := range monitors {
		m.Stop()
	}
	for _, n := range negotiators {
		n.Close()
	}

	report := Score(s.room, snapshot, s.registry.Elapsed(), time.Now())
	s.registry.StoreReport(report)
	s.metrics.SessionEnded()
}

// Shutdown ends the session if needed and cancels the channel subscription.
func (s *Session) Shutdown(ctx context.Context) {
	s.End(ctx)
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Session) broadcast(ctx context.Context, t domain.MessageType) {
	msg, err := domain.NewSignalMessage(t, domain.HostID, nil)
	if err != nil {
		return
	}
	for _, p := range s.registry.Snapshot() {
		if err := s.channel.Send(ctx, s.room, string(p.ID), msg); err != nil {
			s.logger.Warnw("failed to notify participant",
				"room", s.room, "participant_id", p.ID, "type", t, "error", err)
		}
	}
}
