package signal

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"gdroom/internal/core/domain"
	"gdroom/internal/core/ports"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// envelope is the client-to-relay frame: a signal message plus its recipient.
// Relay-to-client frames carry the bare SignalMessage.
type envelope struct {
	To      string               `json:"to"`
	Message domain.SignalMessage `json:"message"`
}

type relayConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

type connKey struct {
	room domain.RoomCode
	id   string
}

// RelayServerOptions tunes websocket keepalive and inbound rate limiting.
type RelayServerOptions struct {
	PingInterval      time.Duration
	PongTimeout       time.Duration
	WriteTimeout      time.Duration
	MessagesPerSecond float64
	MessageBurst      int
}

// RelayServer moves signaling messages between the host process and
// participant devices. Participants connect over websocket; the host
// subscribes in-process, so the relay doubles as the host's SignalChannel.
// Delivery is fire-and-forget: messages to absent recipients are dropped,
// and inbound messages beyond the per-connection rate limit are dropped too.
type RelayServer struct {
	opts   RelayServerOptions
	logger *zap.SugaredLogger

	mu          sync.RWMutex
	connections map[connKey]*relayConn
	hostSubs    map[domain.RoomCode]ports.SignalHandler
	closed      bool
}

func NewRelayServer(opts RelayServerOptions, logger *zap.SugaredLogger) *RelayServer {
	return &RelayServer{
		opts:        opts,
		logger:      logger,
		connections: make(map[connKey]*relayConn),
		hostSubs:    make(map[domain.RoomCode]ports.SignalHandler),
	}
}

// HandleWebSocket upgrades a participant connection and pumps its messages.
func (s *RelayServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	room := domain.RoomCode(r.URL.Query().Get("room"))
	participantID := r.URL.Query().Get("participant_id")
	if room == "" || participantID == "" || participantID == domain.HostID {
		http.Error(w, "room and participant_id query parameters are required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	rc := &relayConn{conn: conn}
	key := connKey{room, participantID}

	s.mu.Lock()
	if existing, reconnect := s.connections[key]; reconnect && existing != nil {
		existing.conn.Close()
		s.logger.Infow("closing old connection for reconnecting participant",
			"room", room, "participant_id", participantID)
	}
	s.connections[key] = rc
	s.mu.Unlock()

	s.logger.Infow("participant connected to relay", "room", room, "participant_id", participantID)

	conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.opts.PingInterval)
	defer pingTicker.Stop()

	limiter := rate.NewLimiter(rate.Limit(s.opts.MessagesPerSecond), s.opts.MessageBurst)

	envChan := make(chan envelope, 16)
	errChan := make(chan error, 1)
	handlerDone := make(chan struct{})
	defer close(handlerDone)

	go func() {
		for {
			var env envelope
			if err := conn.ReadJSON(&env); err != nil {
				errChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
			select {
			case envChan <- env:
			case <-handlerDone:
				return
			}
		}
	}()

	for {
		select {
		case env := <-envChan:
			if !limiter.Allow() {
				s.logger.Warnw("dropping over-rate signal message",
					"room", room, "participant_id", participantID, "type", env.Message.Type)
				continue
			}
			s.route(room, participantID, env)

		case <-pingTicker.C:
			rc.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			rc.writeMu.Unlock()
			if err != nil {
				s.logger.Infow("error sending ping",
					"room", room, "participant_id", participantID, "error", err)
				s.dropConn(key, rc)
				return
			}

		case err := <-errChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Infow("error reading from participant",
					"room", room, "participant_id", participantID, "error", err)
			}
			s.dropConn(key, rc)
			s.logger.Infow("participant disconnected from relay",
				"room", room, "participant_id", participantID)
			return
		}
	}
}

// route forwards one inbound participant message. The sender id is taken
// from the connection, not the message body, so clients cannot spoof it.
func (s *RelayServer) route(room domain.RoomCode, from string, env envelope) {
	env.Message.From = from

	if env.To == domain.HostID {
		s.mu.RLock()
		handler := s.hostSubs[room]
		s.mu.RUnlock()
		if handler == nil {
			s.logger.Debugw("dropping message for absent host", "room", room, "type", env.Message.Type)
			return
		}
		handler(env.Message)
		return
	}

	if err := s.writeTo(room, env.To, env.Message); err != nil {
		s.logger.Debugw("dropping message for absent participant",
			"room", room, "to", env.To, "error", err)
	}
}

// Send implements ports.SignalChannel for the host side.
func (s *RelayServer) Send(ctx context.Context, room domain.RoomCode, to string, msg domain.SignalMessage) error {
	if to == domain.HostID {
		s.mu.RLock()
		handler := s.hostSubs[room]
		s.mu.RUnlock()
		if handler != nil {
			handler(msg)
		}
		return nil
	}
	// Absent recipients are not an error: the channel is best-effort.
	if err := s.writeTo(room, to, msg); err != nil {
		s.logger.Debugw("dropping outbound message", "room", room, "to", to, "error", err)
	}
	return nil
}

// Subscribe implements ports.SignalChannel; only the host sentinel is served
// in-process, participants subscribe over websocket.
func (s *RelayServer) Subscribe(room domain.RoomCode, selfID string, handler ports.SignalHandler) (func(), error) {
	if selfID != domain.HostID {
		return nil, fmt.Errorf("relay only supports in-process subscription for the host")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("relay closed")
	}
	if _, exists := s.hostSubs[room]; exists {
		return nil, fmt.Errorf("host already subscribed for room %s", room)
	}
	s.hostSubs[room] = handler

	unsubscribe := func() {
		s.mu.Lock()
		delete(s.hostSubs, room)
		s.mu.Unlock()
	}
	return unsubscribe, nil
}

func (s *RelayServer) writeTo(room domain.RoomCode, to string, msg domain.SignalMessage) error {
	s.mu.RLock()
	rc, exists := s.connections[connKey{room, to}]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("recipient %s not connected", to)
	}

	rc.writeMu.Lock()
	defer rc.writeMu.Unlock()
	rc.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	return rc.conn.WriteJSON(msg)
}

func (s *RelayServer) dropConn(key connKey, rc *relayConn) {
	s.mu.Lock()
	if current, ok := s.connections[key]; ok && current == rc {
		delete(s.connections, key)
	}
	s.mu.Unlock()
}

// ConnectedParticipants returns the participant ids currently connected for
// a room.
func (s *RelayServer) ConnectedParticipants(room domain.RoomCode) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for key := range s.connections {
		if key.room == room {
			ids = append(ids, key.id)
		}
	}
	return ids
}

func (s *RelayServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for key, rc := range s.connections {
		rc.conn.Close()
		delete(s.connections, key)
	}
	for room := range s.hostSubs {
		delete(s.hostSubs, room)
	}
	return nil
}
