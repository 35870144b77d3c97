package ports

import (
	"context"

	"gdroom/internal/core/domain"
)

// SignalHandler is invoked once per observed message addressed to the subscriber.
type SignalHandler func(msg domain.SignalMessage)

// SignalChannel is a best-effort, fire-and-forget transport for signaling
// messages. Delivery is at-most-once per listener, FIFO per sender-recipient
// edge, with no acknowledgment, retry or backpressure. Higher layers must
// tolerate loss.
type SignalChannel interface {
	// Send publishes a message addressed to recipient within the room.
	// recipient is a participant id or domain.HostID.
	Send(ctx context.Context, room domain.RoomCode, to string, msg domain.SignalMessage) error

	// Subscribe registers a handler for messages addressed to selfID within
	// the room. The returned function cancels the subscription.
	Subscribe(room domain.RoomCode, selfID string, handler SignalHandler) (func(), error)

	Close() error
}
