package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gdroom/internal/core/domain"
	"gdroom/internal/core/ports"

	"go.uber.org/zap"
)

// Negotiator drives connection setup for one participant from the host side:
// Joining -> OfferSent -> Connected -> Closed, with OfferSent -> Failed when
// negotiation does not complete within the timeout. Out-of-order messages are
// dropped, never fatal.
type Negotiator struct {
	room    domain.RoomCode
	id      domain.ParticipantID
	channel ports.SignalChannel
	engine  ports.MediaEngine
	timeout time.Duration
	metrics ports.Metrics
	logger  *zap.SugaredLogger

	// onStateChange reports state transitions to the owning session.
	onStateChange func(id domain.ParticipantID, state domain.ConnectionState)
	// onTrack fires when the participant's media stream is established.
	onTrack func(id domain.ParticipantID, source ports.LevelSource)

	mu        sync.Mutex
	state     domain.ConnectionState
	media     ports.MediaSession
	timer     *time.Timer
	offeredAt time.Time
}

func NewNegotiator(
	room domain.RoomCode,
	id domain.ParticipantID,
	channel ports.SignalChannel,
	engine ports.MediaEngine,
	timeout time.Duration,
	metrics ports.Metrics,
	logger *zap.SugaredLogger,
	onStateChange func(domain.ParticipantID, domain.ConnectionState),
	onTrack func(domain.ParticipantID, ports.LevelSource),
) *Negotiator {
	return &Negotiator{
		room:          room,
		id:            id,
		channel:       channel,
		engine:        engine,
		timeout:       timeout,
		metrics:       metrics,
		logger:        logger,
		onStateChange: onStateChange,
		onTrack:       onTrack,
		state:         domain.StateJoining,
	}
}

func (n *Negotiator) State() domain.ConnectionState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Start creates the media session, synthesizes a local offer and sends it to
// the participant, arming the negotiation timeout.
func (n *Negotiator) Start(ctx context.Context) error {
	media, err := n.engine.NewSession(ports.MediaCallbacks{
		OnCandidate: func(candidate json.RawMessage) {
			n.sendCandidate(candidate)
		},
		OnTrack: func(source ports.LevelSource) {
			n.onTrack(n.id, source)
		},
		OnDisconnected: func() {
			n.logger.Warnw("media link lost", "room", n.room, "participant_id", n.id)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create media session: %w", err)
	}

	offer, err := media.CreateOffer(ctx)
	if err != nil {
		media.Close()
		return fmt.Errorf("failed to create offer: %w", err)
	}

	msg, err := domain.NewSignalMessage(domain.MessageOffer, domain.HostID,
		domain.DescriptionPayload{Description: offer})
	if err != nil {
		media.Close()
		return err
	}

	n.mu.Lock()
	n.media = media
	n.state = domain.StateOfferSent
	n.offeredAt = time.Now()
	n.timer = time.AfterFunc(n.timeout, n.onTimeout)
	n.mu.Unlock()
	n.onStateChange(n.id, domain.StateOfferSent)

	if err := n.channel.Send(ctx, n.room, string(n.id), msg); err != nil {
		// Best-effort channel; the timeout will clean up if the offer is lost.
		n.logger.Warnw("failed to send offer", "room", n.room, "participant_id", n.id, "error", err)
	}
	return nil
}

// HandleAnswer applies the participant's answer. Answers arriving in any
// state but OfferSent are logged and dropped.
func (n *Negotiator) HandleAnswer(ctx context.Context, answer json.RawMessage) {
	n.mu.Lock()
	if n.state != domain.StateOfferSent {
		state := n.state
		n.mu.Unlock()
		n.logger.Warnw("dropping out-of-order answer",
			"room", n.room, "participant_id", n.id, "state", state)
		return
	}
	media := n.media
	n.mu.Unlock()

	if err := media.ApplyAnswer(ctx, answer); err != nil {
		n.logger.Warnw("failed to apply answer",
			"room", n.room, "participant_id", n.id, "error", err)
		return
	}

	n.mu.Lock()
	if n.state != domain.StateOfferSent {
		n.mu.Unlock()
		return
	}
	n.state = domain.StateConnected
	if n.timer != nil {
		n.timer.Stop()
	}
	duration := time.Since(n.offeredAt)
	n.mu.Unlock()

	n.metrics.NegotiationCompleted(duration)
	n.onStateChange(n.id, domain.StateConnected)
	n.logger.Infow("participant connected",
		"room", n.room, "participant_id", n.id, "negotiation", duration)
}

// HandleCandidate applies a remote network-path candidate. Candidates in
// terminal states are discarded silently.
func (n *Negotiator) HandleCandidate(ctx context.Context, candidate json.RawMessage) {
	n.mu.Lock()
	if n.state.Terminal() || n.media == nil {
		n.mu.Unlock()
		return
	}
	media := n.media
	n.mu.Unlock()

	if err := media.AddCandidate(ctx, candidate); err != nil {
		n.logger.Warnw("failed to apply candidate",
			"room", n.room, "participant_id", n.id, "error", err)
	}
}

// Close tears the negotiation down, best-effort.
func (n *Negotiator) Close() {
	n.mu.Lock()
	if n.state == domain.StateClosed {
		n.mu.Unlock()
		return
	}
	n.state = domain.StateClosed
	if n.timer != nil {
		n.timer.Stop()
	}
	media := n.media
	n.media = nil
	n.mu.Unlock()

	if media != nil {
		if err := media.Close(); err != nil {
			n.logger.Warnw("failed to close media session",
				"room", n.room, "participant_id", n.id, "error", err)
		}
	}
	n.onStateChange(n.id, domain.StateClosed)
}

func (n *Negotiator) onTimeout() {
	n.mu.Lock()
	if n.state != domain.StateOfferSent {
		n.mu.Unlock()
		return
	}
	n.state = domain.StateFailed
	media := n.media
	n.media = nil
	n.mu.Unlock()

	if media != nil {
		media.Close()
	}
	n.metrics.NegotiationFailed()
	n.onStateChange(n.id, domain.StateFailed)
	n.logger.Warnw("negotiation timed out", "room", n.room, "participant_id", n.id, "timeout", n.timeout)
}

func (n *Negotiator) sendCandidate(candidate json.RawMessage) {
	msg, err := domain.NewSignalMessage(domain.MessageICECandidate, domain.HostID,
		domain.CandidatePayload{Candidate: candidate})
	if err != nil {
		return
	}
	if err := n.channel.Send(context.Background(), n.room, string(n.id), msg); err != nil {
		n.logger.Debugw("failed to send candidate",
			"room", n.room, "participant_id", n.id, "error", err)
	}
}
