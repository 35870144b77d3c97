package signal

import (
	"context"
	"fmt"
	"sync"

	"gdroom/internal/core/domain"
	"gdroom/internal/core/ports"
)

type mailboxKey struct {
	room domain.RoomCode
	id   string
}

type mailbox struct {
	handler ports.SignalHandler
	queue   chan domain.SignalMessage
	done    chan struct{}
}

// MemoryChannel is an in-process signal channel. Each subscriber owns a
// single FIFO queue drained by one goroutine, which preserves per-sender
// ordering. Messages to absent subscribers are dropped: the channel is
// best-effort by contract.
type MemoryChannel struct {
	mu        sync.RWMutex
	mailboxes map[mailboxKey]*mailbox
	closed    bool
}

func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{mailboxes: make(map[mailboxKey]*mailbox)}
}

func (c *MemoryChannel) Send(ctx context.Context, room domain.RoomCode, to string, msg domain.SignalMessage) error {
	c.mu.RLock()
	box, exists := c.mailboxes[mailboxKey{room, to}]
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return fmt.Errorf("signal channel closed")
	}
	if !exists {
		// No subscriber; fire-and-forget means the message is simply lost.
		return nil
	}

	select {
	case box.queue <- msg:
		return nil
	case <-box.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *MemoryChannel) Subscribe(room domain.RoomCode, selfID string, handler ports.SignalHandler) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("signal channel closed")
	}

	key := mailboxKey{room, selfID}
	if _, exists := c.mailboxes[key]; exists {
		return nil, fmt.Errorf("subscriber already registered for %s/%s", room, selfID)
	}

	box := &mailbox{
		handler: handler,
		queue:   make(chan domain.SignalMessage, 64),
		done:    make(chan struct{}),
	}
	c.mailboxes[key] = box

	go func() {
		for {
			select {
			case msg := <-box.queue:
				box.handler(msg)
			case <-box.done:
				return
			}
		}
	}()

	unsubscribe := func() {
		c.mu.Lock()
		if current, ok := c.mailboxes[key]; ok && current == box {
			delete(c.mailboxes, key)
			close(box.done)
		}
		c.mu.Unlock()
	}
	return unsubscribe, nil
}

func (c *MemoryChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	for key, box := range c.mailboxes {
		close(box.done)
		delete(c.mailboxes, key)
	}
	return nil
}
