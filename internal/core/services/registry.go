package services

import (
	"math/rand"
	"sync"
	"time"

	"gdroom/internal/core/domain"

	"go.uber.org/zap"
)

// Registry is the authoritative, host-owned participant table and session
// clock for one room. All mutation goes through its methods; readers get
// copies only. Once the session has ended the table is frozen.
type Registry struct {
	mu sync.RWMutex

	code            domain.RoomCode
	maxParticipants int

	order        []domain.ParticipantID
	participants map[domain.ParticipantID]*domain.Participant

	started   bool
	ended     bool
	startedAt time.Time
	elapsed   int

	report *domain.AnalysisReport

	// sentimentNudge stands in for real sentiment inference; it returns a
	// value in [-0.5, +1.5). Injectable for deterministic tests.
	sentimentNudge func() float64

	logger *zap.SugaredLogger
}

func NewRegistry(code domain.RoomCode, maxParticipants int, logger *zap.SugaredLogger) *Registry {
	return &Registry{
		code:            code,
		maxParticipants: maxParticipants,
		participants:    make(map[domain.ParticipantID]*domain.Participant),
		sentimentNudge:  func() float64 { return rand.Float64()*2 - 0.5 },
		logger:          logger,
	}
}

func (r *Registry) Code() domain.RoomCode { return r.code }

// OnJoin creates a participant entry in the Joining state.
func (r *Registry) OnJoin(id domain.ParticipantID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ended {
		return domain.ErrSessionEnded
	}
	if _, exists := r.participants[id]; exists {
		return domain.ErrParticipantExists
	}
	if len(r.order) >= r.maxParticipants {
		return domain.ErrRoomFull
	}

	r.participants[id] = &domain.Participant{
		ID:       id,
		Name:     name,
		State:    domain.StateJoining,
		JoinedAt: time.Now(),
	}
	r.order = append(r.order, id)

	r.logger.Infow("participant joined", "room", r.code, "participant_id", id, "name", name)
	return nil
}

// SetState updates a participant's connection state.
func (r *Registry) SetState(id domain.ParticipantID, state domain.ConnectionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.participants[id]
	if !exists {
		return domain.ErrParticipantNotFound
	}
	p.State = state
	return nil
}

// OnActivitySample applies one classified activity sample. level is on the
// 0-100 display scale. Returns true when the sample produced a contribution
// (a not-speaking to speaking transition).
func (r *Registry) OnActivitySample(id domain.ParticipantID, level float64, speaking bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ended {
		return false
	}
	p, exists := r.participants[id]
	if !exists {
		return false
	}

	p.AudioLevel = level
	contributed := speaking && !p.Speaking
	if contributed {
		p.Contributions++
		p.SentimentProxy += r.sentimentNudge()
	}
	p.Speaking = speaking
	return contributed
}

// OnRemoteLevel records a participant-reported audio level (0-100). It only
// refreshes the displayed level; classification stays with the monitor.
func (r *Registry) OnRemoteLevel(id domain.ParticipantID, level float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ended {
		return
	}
	if p, exists := r.participants[id]; exists {
		p.AudioLevel = level
	}
}

// StartSession flips the clock to running. It fails when no participants
// have joined and when the session has already ended.
func (r *Registry) StartSession(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ended {
		return domain.ErrSessionEnded
	}
	if r.started {
		return nil
	}
	if len(r.order) == 0 {
		return domain.ErrNoParticipants
	}

	r.started = true
	r.startedAt = now
	r.logger.Infow("session started", "room", r.code, "participants", len(r.order))
	return nil
}

// OnTick advances the session clock and credits one second of speaking time
// to every participant currently classified as speaking. Returns the elapsed
// seconds. No-op unless the clock is running.
func (r *Registry) OnTick(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started || r.ended {
		return r.elapsed
	}

	r.elapsed = int(now.Sub(r.startedAt).Seconds())
	for _, id := range r.order {
		if p := r.participants[id]; p.Speaking {
			p.SpeakingTime++
		}
	}
	return r.elapsed
}

// EndSession freezes the clock and returns the final participant snapshot.
// The second return is true when the session had already ended; callers must
// then leave the stored report untouched.
func (r *Registry) EndSession(now time.Time) ([]domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ended {
		return nil, true
	}
	if r.started {
		r.elapsed = int(now.Sub(r.startedAt).Seconds())
	}
	r.ended = true

	snapshot := r.snapshotLocked()
	r.logger.Infow("session ended", "room", r.code, "elapsed_seconds", r.elapsed)
	return snapshot, false
}

// StoreReport records the immutable analysis report. Only the first stored
// report is kept.
func (r *Registry) StoreReport(report *domain.AnalysisReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.report == nil {
		r.report = report
	}
}

// Report returns the stored analysis report, or ErrReportNotReady before
// session end.
func (r *Registry) Report() (*domain.AnalysisReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.report == nil {
		return nil, domain.ErrReportNotReady
	}
	return r.report, nil
}

func (r *Registry) Running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.started && !r.ended
}

func (r *Registry) Ended() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ended
}

func (r *Registry) Elapsed() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.elapsed
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Snapshot returns value copies of all participants in join order.
func (r *Registry) Snapshot() []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() []domain.Participant {
	out := make([]domain.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.participants[id])
	}
	return out
}
