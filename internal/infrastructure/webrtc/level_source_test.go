package webrtc

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
)

func TestPacketLevelFromAudioLevelExtension(t *testing.T) {
	tests := []struct {
		name string
		dbov uint8
		want uint8
	}{
		{"loudest", 0, 255},
		{"silence", 127, 0},
		{"mid", 63, 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt := &rtp.Packet{}
			pkt.Header.Extension = true
			pkt.Header.ExtensionProfile = 0xBEDE
			err := pkt.SetExtension(audioLevelExtensionID, []byte{tt.dbov})
			assert.NoError(t, err)

			assert.Equal(t, tt.want, packetLevel(pkt))
		})
	}
}

func TestPacketLevelFallsBackToPayloadEnergy(t *testing.T) {
	pkt := &rtp.Packet{Payload: make([]byte, 200)}
	assert.Equal(t, uint8(255), packetLevel(pkt))

	pkt.Payload = make([]byte, 3)
	assert.Equal(t, uint8(0), packetLevel(pkt))
}

func TestPayloadEnergyBands(t *testing.T) {
	assert.Equal(t, uint8(0), payloadEnergy(nil))
	assert.Equal(t, uint8(0), payloadEnergy(make([]byte, 8)))
	assert.Equal(t, uint8(255), payloadEnergy(make([]byte, 160)))

	mid := payloadEnergy(make([]byte, 84))
	assert.Greater(t, mid, uint8(0))
	assert.Less(t, mid, uint8(255))
}

func TestSyntheticLevelSourceBounds(t *testing.T) {
	src := NewSyntheticLevelSource(0.5, 200, 42)
	defer src.Close()

	for i := 0; i < 100; i++ {
		level := src.Level()
		assert.LessOrEqual(t, level, uint8(200))
	}
}
