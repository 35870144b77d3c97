package ports

import (
	"context"
	"encoding/json"
)

// LevelSource exposes the latest raw audio energy level of an established
// media stream. Levels are on a 0-255 raw scale.
type LevelSource interface {
	Level() uint8
	Close() error
}

// MediaCallbacks are fired by a media session as negotiation progresses.
type MediaCallbacks struct {
	// OnCandidate delivers a discovered local network-path candidate blob.
	OnCandidate func(candidate json.RawMessage)
	// OnTrack fires once a bidirectional media stream is established and its
	// audio is readable.
	OnTrack func(source LevelSource)
	// OnDisconnected fires when an established link is lost.
	OnDisconnected func()
}

// MediaSession is one media-capable logical link under negotiation. The
// implementation owns the underlying transport and releases it on Close.
type MediaSession interface {
	// CreateOffer synthesizes and applies a local session description and
	// returns it as an opaque blob.
	CreateOffer(ctx context.Context) (json.RawMessage, error)
	// ApplyAnswer applies the remote session description.
	ApplyAnswer(ctx context.Context, answer json.RawMessage) error
	// AddCandidate applies a remote network-path candidate.
	AddCandidate(ctx context.Context, candidate json.RawMessage) error
	Close() error
}

// MediaEngine creates media sessions. Consumed as a black box; the core
// depends only on these operations and their callbacks.
type MediaEngine interface {
	NewSession(callbacks MediaCallbacks) (MediaSession, error)
}
