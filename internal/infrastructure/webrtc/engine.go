package webrtc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"gdroom/internal/core/ports"
	"gdroom/pkg/config"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Engine creates peer connections configured from the webrtc section of the
// config. It implements ports.MediaEngine for the host side of a room: each
// session sends an offer with a receive-only audio transceiver and surfaces
// the remote audio as a LevelSource once the track arrives.
type Engine struct {
	api       *webrtc.API
	rtcConfig webrtc.Configuration
	logger    *zap.SugaredLogger
}

func NewEngine(cfg *config.Config, logger *zap.SugaredLogger) (*Engine, error) {
	se := webrtc.SettingEngine{}
	if cfg.WebRTC.PortRange.Min > 0 {
		if err := se.SetEphemeralUDPPortRange(cfg.WebRTC.PortRange.Min, cfg.WebRTC.PortRange.Max); err != nil {
			return nil, fmt.Errorf("failed to set udp port range: %w", err)
		}
	}

	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}

	rtcConfig := webrtc.Configuration{}
	for _, s := range cfg.WebRTC.ICEServers {
		rtcConfig.ICEServers = append(rtcConfig.ICEServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	return &Engine{
		api:       webrtc.NewAPI(webrtc.WithSettingEngine(se), webrtc.WithMediaEngine(me)),
		rtcConfig: rtcConfig,
		logger:    logger,
	}, nil
}

func (e *Engine) NewSession(callbacks ports.MediaCallbacks) (ports.MediaSession, error) {
	pc, err := e.api.NewPeerConnection(e.rtcConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to add audio transceiver: %w", err)
	}

	s := &session{pc: pc, logger: e.logger}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || callbacks.OnCandidate == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			e.logger.Warnw("failed to marshal ice candidate", "error", err)
			return
		}
		callbacks.OnCandidate(data)
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		e.logger.Debugw("remote audio track established",
			"track_id", track.ID(), "codec", track.Codec().MimeType)
		if callbacks.OnTrack != nil {
			callbacks.OnTrack(NewTrackLevelSource(track, receiver, e.logger))
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		e.logger.Debugw("peer connection state changed", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed:
			if callbacks.OnDisconnected != nil {
				callbacks.OnDisconnected()
			}
		}
	})

	return s, nil
}

// session wraps one pion peer connection behind the ports.MediaSession
// contract. Trickle candidates flow through the callbacks, so CreateOffer
// returns without waiting for gathering.
type session struct {
	pc *webrtc.PeerConnection

	// Remote candidates may arrive before the answer; pion rejects them
	// until a remote description is set, so they are held back here.
	mu         sync.Mutex
	hasRemote  bool
	pendingICE []webrtc.ICECandidateInit

	logger *zap.SugaredLogger
}

func (s *session) CreateOffer(ctx context.Context) (json.RawMessage, error) {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}

	data, err := json.Marshal(s.pc.LocalDescription())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal offer: %w", err)
	}
	return data, nil
}

func (s *session) ApplyAnswer(ctx context.Context, answer json.RawMessage) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(answer, &desc); err != nil {
		return fmt.Errorf("failed to unmarshal answer: %w", err)
	}
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}

	s.mu.Lock()
	s.hasRemote = true
	pending := s.pendingICE
	s.pendingICE = nil
	s.mu.Unlock()

	for _, c := range pending {
		if err := s.pc.AddICECandidate(c); err != nil {
			s.logger.Warnw("failed to apply buffered ice candidate", "error", err)
		}
	}
	return nil
}

func (s *session) AddCandidate(ctx context.Context, candidate json.RawMessage) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(candidate, &init); err != nil {
		return fmt.Errorf("failed to unmarshal ice candidate: %w", err)
	}

	s.mu.Lock()
	if !s.hasRemote {
		s.pendingICE = append(s.pendingICE, init)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("failed to add ice candidate: %w", err)
	}
	return nil
}

func (s *session) Close() error {
	return s.pc.Close()
}
