package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gdroom/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRelayOptions() RelayServerOptions {
	return RelayServerOptions{
		PingInterval:      time.Second,
		PongTimeout:       5 * time.Second,
		WriteTimeout:      time.Second,
		MessagesPerSecond: 100,
		MessageBurst:      200,
	}
}

func newTestRelay(t *testing.T, opts RelayServerOptions) (*RelayServer, string) {
	t.Helper()

	relay := NewRelayServer(opts, zap.NewNop().Sugar())
	t.Cleanup(func() { relay.Close() })

	server := httptest.NewServer(http.HandlerFunc(relay.HandleWebSocket))
	t.Cleanup(server.Close)

	return relay, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dialTestRelay(t *testing.T, url string, room domain.RoomCode, id string) *WebSocketChannel {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch, err := DialRelay(ctx, url, room, id, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { ch.Close() })
	return ch
}

func TestRelayRoutesParticipantToHost(t *testing.T) {
	relay, url := newTestRelay(t, testRelayOptions())
	room := domain.RoomCode("ABC123")

	var mu sync.Mutex
	var got []domain.SignalMessage
	unsubscribe, err := relay.Subscribe(room, domain.HostID, func(msg domain.SignalMessage) {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsubscribe()

	ch := dialTestRelay(t, url, room, "participant_1")
	_, err = ch.Subscribe(room, "participant_1", func(domain.SignalMessage) {})
	require.NoError(t, err)

	join, err := domain.NewSignalMessage(domain.MessageJoinRequest, "participant_1",
		domain.JoinRequestPayload{Name: "Alice"})
	require.NoError(t, err)
	require.NoError(t, ch.Send(context.Background(), room, domain.HostID, join))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, domain.MessageJoinRequest, got[0].Type)
	// The relay stamps the sender from the connection identity.
	assert.Equal(t, "participant_1", got[0].From)
}

func TestRelayRoutesHostToParticipant(t *testing.T) {
	relay, url := newTestRelay(t, testRelayOptions())
	room := domain.RoomCode("ABC123")

	ch := dialTestRelay(t, url, room, "participant_1")

	var mu sync.Mutex
	var got []domain.SignalMessage
	_, err := ch.Subscribe(room, "participant_1", func(msg domain.SignalMessage) {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
	})
	require.NoError(t, err)

	// Give the relay a moment to register the connection before sending.
	waitFor(t, func() bool {
		return len(relay.ConnectedParticipants(room)) == 1
	})

	offer, err := domain.NewSignalMessage(domain.MessageOffer, domain.HostID,
		domain.DescriptionPayload{Description: json.RawMessage(`{"sdp":"x"}`)})
	require.NoError(t, err)
	require.NoError(t, relay.Send(context.Background(), room, "participant_1", offer))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, domain.MessageOffer, got[0].Type)
	assert.Equal(t, domain.HostID, got[0].From)
}

func TestRelaySendToAbsentParticipantIsDropped(t *testing.T) {
	relay, _ := newTestRelay(t, testRelayOptions())

	msg, err := domain.NewSignalMessage(domain.MessageOffer, domain.HostID, nil)
	require.NoError(t, err)

	// Fire-and-forget: no error even though nobody is connected.
	assert.NoError(t, relay.Send(context.Background(), "ABC123", "participant_9", msg))
}

func TestRelayRejectsParticipantSubscription(t *testing.T) {
	relay, _ := newTestRelay(t, testRelayOptions())

	_, err := relay.Subscribe("ABC123", "participant_1", func(domain.SignalMessage) {})
	assert.Error(t, err)
}

func TestRelayRejectsMissingIdentity(t *testing.T) {
	_, url := newTestRelay(t, testRelayOptions())

	httpURL := "http" + strings.TrimPrefix(url, "ws")
	resp, err := http.Get(httpURL + "?room=ABC123")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRelayRateLimitDropsExcessMessages(t *testing.T) {
	opts := testRelayOptions()
	opts.MessagesPerSecond = 1
	opts.MessageBurst = 2
	relay, url := newTestRelay(t, opts)
	room := domain.RoomCode("ABC123")

	var mu sync.Mutex
	count := 0
	unsubscribe, err := relay.Subscribe(room, domain.HostID, func(domain.SignalMessage) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsubscribe()

	ch := dialTestRelay(t, url, room, "participant_1")

	msg, err := domain.NewSignalMessage(domain.MessageActivitySample, "participant_1",
		domain.ActivitySamplePayload{Level: 50})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, ch.Send(context.Background(), room, domain.HostID, msg))
	}

	// Burst of 2 passes; the rest of the flood is dropped.
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 2
	})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, count, 3)
}
