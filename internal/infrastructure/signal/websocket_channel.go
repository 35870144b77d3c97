package signal

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"gdroom/internal/core/domain"
	"gdroom/internal/core/ports"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketChannel is the participant side of the relay: one websocket
// connection carries all signaling for a single room membership. Send wraps
// messages in the relay envelope; Subscribe drains incoming frames.
type WebSocketChannel struct {
	room   domain.RoomCode
	selfID string
	logger *zap.SugaredLogger

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu         sync.Mutex
	subscribed bool
	done       chan struct{}
}

// DialRelay connects to a relay server and identifies as the given
// participant. serverURL is the relay's ws endpoint, e.g.
// "ws://localhost:8080/ws".
func DialRelay(ctx context.Context, serverURL string, room domain.RoomCode, selfID string, logger *zap.SugaredLogger) (*WebSocketChannel, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay url: %w", err)
	}
	q := u.Query()
	q.Set("room", string(room))
	q.Set("participant_id", selfID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}

	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	return &WebSocketChannel{
		room:   room,
		selfID: selfID,
		logger: logger,
		conn:   conn,
		done:   make(chan struct{}),
	}, nil
}

func (c *WebSocketChannel) Send(ctx context.Context, room domain.RoomCode, to string, msg domain.SignalMessage) error {
	if room != c.room {
		return fmt.Errorf("channel is bound to room %s", c.room)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
	} else {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}
	return c.conn.WriteJSON(envelope{To: to, Message: msg})
}

// Subscribe starts the read loop. The connection already addresses this
// participant, so room and selfID must match the dialed identity.
func (c *WebSocketChannel) Subscribe(room domain.RoomCode, selfID string, handler ports.SignalHandler) (func(), error) {
	if room != c.room || selfID != c.selfID {
		return nil, fmt.Errorf("channel is bound to %s/%s", c.room, c.selfID)
	}

	c.mu.Lock()
	if c.subscribed {
		c.mu.Unlock()
		return nil, fmt.Errorf("already subscribed")
	}
	c.subscribed = true
	c.mu.Unlock()

	go func() {
		for {
			var msg domain.SignalMessage
			if err := c.conn.ReadJSON(&msg); err != nil {
				select {
				case <-c.done:
				default:
					c.logger.Infow("relay connection closed", "room", c.room, "error", err)
				}
				return
			}
			handler(msg)
		}
	}()

	unsubscribe := func() {
		c.closeOnce()
	}
	return unsubscribe, nil
}

func (c *WebSocketChannel) closeOnce() {
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return
	default:
		close(c.done)
	}
	c.mu.Unlock()

	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.conn.Close()
}

func (c *WebSocketChannel) Close() error {
	c.closeOnce()
	return nil
}
