package services

import (
	"sync"
	"time"

	"gdroom/internal/core/domain"
	"gdroom/internal/core/ports"

	"go.uber.org/zap"
)

// ActivityMonitor samples one participant's audio level at a fixed interval
// and feeds classified activity into the registry. It idles until the session
// clock runs, terminates itself once the session has ended, and releases the
// level source on stop.
type ActivityMonitor struct {
	participantID domain.ParticipantID
	source        ports.LevelSource
	registry      *Registry
	threshold     uint8 // raw 0-255 scale
	interval      time.Duration
	metrics       ports.Metrics
	logger        *zap.SugaredLogger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewActivityMonitor(
	id domain.ParticipantID,
	source ports.LevelSource,
	registry *Registry,
	threshold uint8,
	interval time.Duration,
	metrics ports.Metrics,
	logger *zap.SugaredLogger,
) *ActivityMonitor {
	return &ActivityMonitor{
		participantID: id,
		source:        source,
		registry:      registry,
		threshold:     threshold,
		interval:      interval,
		metrics:       metrics,
		logger:        logger,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the sampling loop.
func (m *ActivityMonitor) Start() {
	go m.run()
}

func (m *ActivityMonitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if m.registry.Ended() {
				return
			}
			if !m.registry.Running() {
				continue
			}
			m.sample()
		}
	}
}

func (m *ActivityMonitor) sample() {
	raw := m.source.Level()
	speaking := raw > m.threshold
	level := float64(raw) * 100.0 / 255.0

	if m.registry.OnActivitySample(m.participantID, level, speaking) {
		m.metrics.ContributionRecorded()
	}
}

// Stop terminates the loop and releases the level source. Safe to call more
// than once and after self-termination.
func (m *ActivityMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		<-m.done
		if err := m.source.Close(); err != nil {
			m.logger.Warnw("failed to release level source",
				"participant_id", m.participantID, "error", err)
		}
	})
}
