package webrtc

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// TrackLevelSource derives a 0-255 audio energy level from a remote track.
// The RTP audio-level header extension carries the level when the remote
// negotiates it; otherwise a coarse proxy over the encoded payload is used.
// The latest value is held in an atomic so Level never blocks the sampler.
type TrackLevelSource struct {
	track  *webrtc.TrackRemote
	logger *zap.SugaredLogger

	level uint32 // latest raw level, 0-255

	closeOnce sync.Once
	done      chan struct{}
}

func NewTrackLevelSource(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver, logger *zap.SugaredLogger) *TrackLevelSource {
	s := &TrackLevelSource{
		track:  track,
		logger: logger,
		done:   make(chan struct{}),
	}
	go s.readRTP()
	go s.drainRTCP(receiver)
	return s
}

// Level returns the most recently observed raw level.
func (s *TrackLevelSource) Level() uint8 {
	return uint8(atomic.LoadUint32(&s.level))
}

func (s *TrackLevelSource) readRTP() {
	buf := make([]byte, 1500)
	var pkt rtp.Packet

	for {
		select {
		case <-s.done:
			return
		default:
		}

		n, _, err := s.track.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debugw("track read ended", "track_id", s.track.ID(), "error", err)
			}
			atomic.StoreUint32(&s.level, 0)
			return
		}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			continue
		}

		atomic.StoreUint32(&s.level, uint32(packetLevel(&pkt)))
	}
}

// drainRTCP keeps the receiver's report stream flowing so interceptors see
// feedback. The parsed reports themselves are not needed.
func (s *TrackLevelSource) drainRTCP(receiver *webrtc.RTPReceiver) {
	buf := make([]byte, 1500)
	for {
		select {
		case <-s.done:
			return
		default:
		}

		n, _, err := receiver.Read(buf)
		if err != nil {
			return
		}
		if _, err := rtcp.Unmarshal(buf[:n]); err != nil {
			s.logger.Debugw("discarding malformed rtcp packet", "error", err)
		}
	}
}

// audioLevelExtensionID is the conventional id for the ssrc-audio-level
// header extension (urn:ietf:params:rtp-hdrext:ssrc-audio-level).
const audioLevelExtensionID = 1

// packetLevel extracts a 0-255 level from one RTP packet. The audio-level
// extension encodes -dBov in its low 7 bits, 0 loudest and 127 silence.
func packetLevel(pkt *rtp.Packet) uint8 {
	if ext := pkt.GetExtension(audioLevelExtensionID); len(ext) == 1 {
		dbov := ext[0] & 0x7f
		return uint8((uint16(127-dbov) * 255) / 127)
	}
	return payloadEnergy(pkt.Payload)
}

// payloadEnergy is a crude fallback: larger encoded frames correlate with
// louder audio for variable-bitrate voice codecs. Silence frames are tiny.
func payloadEnergy(payload []byte) uint8 {
	// Opus DTX/comfort-noise frames run a few bytes; active speech frames
	// run tens to hundreds. Map the size band onto the raw level scale.
	size := len(payload)
	if size <= 8 {
		return 0
	}
	if size >= 160 {
		return 255
	}
	return uint8((size - 8) * 255 / 152)
}

func (s *TrackLevelSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}
