package webrtc

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// SyntheticLevelSource simulates a person alternating between speech bursts
// and silence. It exists for the participant test client, which has no
// microphone capture.
type SyntheticLevelSource struct {
	mu          sync.Mutex
	rng         *rand.Rand
	talking     bool
	phaseEndsAt time.Time
	talkPortion float64
	peak        uint8
}

// NewSyntheticLevelSource creates a source that talks roughly talkPortion of
// the time (0 to 1) with the given peak level.
func NewSyntheticLevelSource(talkPortion float64, peak uint8, seed int64) *SyntheticLevelSource {
	return &SyntheticLevelSource{
		rng:         rand.New(rand.NewSource(seed)),
		talkPortion: math.Max(0, math.Min(1, talkPortion)),
		peak:        peak,
	}
}

func (s *SyntheticLevelSource) Level() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.After(s.phaseEndsAt) {
		s.talking = s.rng.Float64() < s.talkPortion
		// Bursts run 2-6 seconds, mimicking conversational turns.
		s.phaseEndsAt = now.Add(time.Duration(2+s.rng.Intn(5)) * time.Second)
	}

	if !s.talking {
		return uint8(s.rng.Intn(10)) // ambient noise floor
	}
	jitter := s.rng.Intn(40)
	level := int(s.peak) - jitter
	if level < 0 {
		level = 0
	}
	return uint8(level)
}

func (s *SyntheticLevelSource) Close() error {
	return nil
}
