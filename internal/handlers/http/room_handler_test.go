package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"gdroom/internal/core/domain"
	"gdroom/internal/core/ports"
	"gdroom/internal/core/services"
	"gdroom/internal/infrastructure/signal"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMediaSession struct{}

func (fakeMediaSession) CreateOffer(ctx context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"type":"offer","sdp":""}`), nil
}
func (fakeMediaSession) ApplyAnswer(ctx context.Context, answer json.RawMessage) error { return nil }
func (fakeMediaSession) AddCandidate(ctx context.Context, c json.RawMessage) error     { return nil }
func (fakeMediaSession) Close() error                                                  { return nil }

type fakeMediaEngine struct{}

func (fakeMediaEngine) NewSession(callbacks ports.MediaCallbacks) (ports.MediaSession, error) {
	return fakeMediaSession{}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, ports.SignalChannel) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	channel := signal.NewMemoryChannel()
	t.Cleanup(func() { channel.Close() })

	cfg := services.SessionConfig{
		TickInterval:       time.Second,
		SampleInterval:     16 * time.Millisecond,
		SpeakingThreshold:  30,
		NegotiationTimeout: time.Hour,
		MaxParticipants:    12,
	}
	rooms := services.NewRoomService(channel, fakeMediaEngine{}, services.NopMetrics{}, cfg, zap.NewNop().Sugar())
	t.Cleanup(func() { rooms.CloseAll(context.Background()) })

	router := gin.New()
	NewRoomHandler(rooms).SetupRoutes(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, channel
}

func doRequest(t *testing.T, method, url string) (int, map[string]json.RawMessage) {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func createRoom(t *testing.T, server *httptest.Server) domain.RoomCode {
	t.Helper()

	status, body := doRequest(t, http.MethodPost, server.URL+"/api/v1/rooms")
	require.Equal(t, http.StatusCreated, status)

	var code string
	require.NoError(t, json.Unmarshal(body["room_code"], &code))
	return domain.RoomCode(code)
}

func TestCreateRoomReturnsCode(t *testing.T) {
	server, _ := newTestServer(t)

	code := createRoom(t, server)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{6}$`), string(code))
}

func TestGetRoomNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	status, _ := doRequest(t, http.MethodGet, server.URL+"/api/v1/rooms/NOPE99")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStartWithoutParticipantsConflicts(t *testing.T) {
	server, _ := newTestServer(t)
	code := createRoom(t, server)

	status, _ := doRequest(t, http.MethodPost, server.URL+"/api/v1/rooms/"+string(code)+"/start")
	assert.Equal(t, http.StatusConflict, status)
}

func TestReportNotReadyBeforeEnd(t *testing.T) {
	server, _ := newTestServer(t)
	code := createRoom(t, server)

	status, _ := doRequest(t, http.MethodGet, server.URL+"/api/v1/rooms/"+string(code)+"/report")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	server, channel := newTestServer(t)
	code := createRoom(t, server)

	join, err := domain.NewSignalMessage(domain.MessageJoinRequest, "participant_1",
		domain.JoinRequestPayload{Name: "Alice"})
	require.NoError(t, err)
	require.NoError(t, channel.Send(context.Background(), code, domain.HostID, join))

	// Signal delivery is asynchronous; wait for the join to land.
	participantsURL := server.URL + "/api/v1/rooms/" + string(code) + "/participants"
	require.Eventually(t, func() bool {
		_, body := doRequest(t, http.MethodGet, participantsURL)
		var parts []map[string]interface{}
		if json.Unmarshal(body["participants"], &parts) != nil {
			return false
		}
		return len(parts) == 1
	}, 2*time.Second, 10*time.Millisecond)

	status, _ := doRequest(t, http.MethodPost, server.URL+"/api/v1/rooms/"+string(code)+"/start")
	require.Equal(t, http.StatusOK, status)

	status, body := doRequest(t, http.MethodPost, server.URL+"/api/v1/rooms/"+string(code)+"/end")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "report")

	status, body = doRequest(t, http.MethodGet, server.URL+"/api/v1/rooms/"+string(code)+"/report")
	require.Equal(t, http.StatusOK, status)

	var report domain.AnalysisReport
	require.NoError(t, json.Unmarshal(body["report"], &report))
	assert.Equal(t, code, report.RoomCode)

	status, _ = doRequest(t, http.MethodDelete, server.URL+"/api/v1/rooms/"+string(code))
	require.Equal(t, http.StatusOK, status)

	status, _ = doRequest(t, http.MethodGet, server.URL+"/api/v1/rooms/"+string(code))
	assert.Equal(t, http.StatusNotFound, status)
}
