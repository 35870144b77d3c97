package webrtc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gdroom/internal/core/domain"
	"gdroom/internal/core/ports"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// ParticipantSession is the device side of a room membership: it requests to
// join, answers the host's offer, publishes an audio track when a level
// source is available and reports activity samples over signaling while the
// session clock runs.
type ParticipantSession struct {
	room   domain.RoomCode
	id     domain.ParticipantID
	name   string
	engine *Engine

	channel ports.SignalChannel
	// source drives both the published track's activity samples and the
	// signaling fallback. Optional; without it the participant is silent.
	source ports.LevelSource

	sampleInterval time.Duration
	logger         *zap.SugaredLogger

	mu         sync.Mutex
	pc         *webrtc.PeerConnection
	hasRemote  bool
	pendingICE []webrtc.ICECandidateInit
	sampling   bool
	stopSample chan struct{}

	done      chan struct{}
	closeOnce sync.Once
}

type ParticipantOptions struct {
	Room           domain.RoomCode
	ID             domain.ParticipantID
	Name           string
	Channel        ports.SignalChannel
	Source         ports.LevelSource
	SampleInterval time.Duration
}

func NewParticipantSession(opts ParticipantOptions, engine *Engine, logger *zap.SugaredLogger) *ParticipantSession {
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = 200 * time.Millisecond
	}
	return &ParticipantSession{
		room:           opts.Room,
		id:             opts.ID,
		name:           opts.Name,
		engine:         engine,
		channel:        opts.Channel,
		source:         opts.Source,
		sampleInterval: opts.SampleInterval,
		logger:         logger,
		done:           make(chan struct{}),
	}
}

// Run joins the room and blocks until the session ends, the context is
// cancelled or the link fails.
func (p *ParticipantSession) Run(ctx context.Context) error {
	unsubscribe, err := p.channel.Subscribe(p.room, string(p.id), p.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to signal channel: %w", err)
	}
	defer unsubscribe()
	defer p.teardown()

	join, err := domain.NewSignalMessage(domain.MessageJoinRequest, string(p.id),
		domain.JoinRequestPayload{Name: p.name})
	if err != nil {
		return err
	}
	if err := p.channel.Send(ctx, p.room, domain.HostID, join); err != nil {
		return fmt.Errorf("failed to send join request: %w", err)
	}
	p.logger.Infow("join requested", "room", p.room, "participant_id", p.id, "name", p.name)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return nil
	}
}

func (p *ParticipantSession) handleMessage(msg domain.SignalMessage) {
	switch msg.Type {
	case domain.MessageOffer:
		p.handleOffer(msg)
	case domain.MessageICECandidate:
		p.handleCandidate(msg)
	case domain.MessageSessionStart:
		p.logger.Infow("session started", "room", p.room)
		p.startSampling()
	case domain.MessageSessionEnd:
		p.logger.Infow("session ended", "room", p.room)
		p.finish()
	default:
		p.logger.Debugw("ignoring unexpected message", "room", p.room, "type", msg.Type)
	}
}

func (p *ParticipantSession) handleOffer(msg domain.SignalMessage) {
	var payload domain.DescriptionPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		p.logger.Warnw("dropping malformed offer", "room", p.room, "error", err)
		return
	}
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload.Description, &offer); err != nil {
		p.logger.Warnw("dropping malformed offer description", "room", p.room, "error", err)
		return
	}

	answer, err := p.answer(offer)
	if err != nil {
		p.logger.Errorw("failed to answer offer", "room", p.room, "error", err)
		p.finish()
		return
	}

	reply, err := domain.NewSignalMessage(domain.MessageAnswer, string(p.id),
		domain.DescriptionPayload{Description: answer})
	if err != nil {
		p.finish()
		return
	}
	if err := p.channel.Send(context.Background(), p.room, domain.HostID, reply); err != nil {
		p.logger.Errorw("failed to send answer", "room", p.room, "error", err)
		p.finish()
	}
}

func (p *ParticipantSession) answer(offer webrtc.SessionDescription) (json.RawMessage, error) {
	pc, err := p.engine.api.NewPeerConnection(p.engine.rtcConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	if p.source != nil {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
			"audio", string(p.id))
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("failed to create audio track: %w", err)
		}
		if _, err := pc.AddTrack(track); err != nil {
			pc.Close()
			return nil, fmt.Errorf("failed to add audio track: %w", err)
		}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		msg, err := domain.NewSignalMessage(domain.MessageICECandidate, string(p.id),
			domain.CandidatePayload{Candidate: data})
		if err != nil {
			return
		}
		if err := p.channel.Send(context.Background(), p.room, domain.HostID, msg); err != nil {
			p.logger.Debugw("failed to send ice candidate", "room", p.room, "error", err)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			p.logger.Infow("peer connection lost", "room", p.room, "state", state.String())
			p.finish()
		}
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to set remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}

	p.mu.Lock()
	p.pc = pc
	p.hasRemote = true
	pending := p.pendingICE
	p.pendingICE = nil
	p.mu.Unlock()

	for _, c := range pending {
		if err := pc.AddICECandidate(c); err != nil {
			p.logger.Warnw("failed to apply buffered ice candidate", "room", p.room, "error", err)
		}
	}

	return json.Marshal(pc.LocalDescription())
}

func (p *ParticipantSession) handleCandidate(msg domain.SignalMessage) {
	var payload domain.CandidatePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return
	}
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(payload.Candidate, &init); err != nil {
		return
	}

	p.mu.Lock()
	if !p.hasRemote {
		p.pendingICE = append(p.pendingICE, init)
		p.mu.Unlock()
		return
	}
	pc := p.pc
	p.mu.Unlock()

	if err := pc.AddICECandidate(init); err != nil {
		p.logger.Warnw("failed to add ice candidate", "room", p.room, "error", err)
	}
}

// startSampling reports the local level over signaling while the session
// runs. The host also monitors the published track; the samples cover setups
// where media never connected or carries no usable level.
func (p *ParticipantSession) startSampling() {
	if p.source == nil {
		return
	}

	p.mu.Lock()
	if p.sampling {
		p.mu.Unlock()
		return
	}
	p.sampling = true
	p.stopSample = make(chan struct{})
	stop := p.stopSample
	p.mu.Unlock()

	go func() {
		ticker := time.NewTicker(p.sampleInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-p.done:
				return
			case <-ticker.C:
				level := float64(p.source.Level()) * 100.0 / 255.0
				msg, err := domain.NewSignalMessage(domain.MessageActivitySample, string(p.id),
					domain.ActivitySamplePayload{Level: level})
				if err != nil {
					continue
				}
				if err := p.channel.Send(context.Background(), p.room, domain.HostID, msg); err != nil {
					p.logger.Debugw("failed to send activity sample", "room", p.room, "error", err)
				}
			}
		}
	}()
}

func (p *ParticipantSession) finish() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

func (p *ParticipantSession) teardown() {
	p.mu.Lock()
	if p.stopSample != nil {
		select {
		case <-p.stopSample:
		default:
			close(p.stopSample)
		}
	}
	pc := p.pc
	p.pc = nil
	p.mu.Unlock()

	if pc != nil {
		pc.Close()
	}
	if p.source != nil {
		p.source.Close()
	}
}
