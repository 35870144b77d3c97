package http

import (
	"errors"
	"net/http"

	"gdroom/internal/core/domain"
	"gdroom/internal/core/services"
	"gdroom/pkg/utils"

	"github.com/gin-gonic/gin"
)

type RoomHandler struct {
	rooms *services.RoomService
}

func NewRoomHandler(rooms *services.RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

func (h *RoomHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)

	api := router.Group("/api/v1")
	{
		api.POST("/rooms", h.CreateRoom)
		api.GET("/rooms/:code", h.GetRoom)
		api.DELETE("/rooms/:code", h.CloseRoom)
		api.GET("/rooms/:code/participants", h.ListParticipants)
		api.POST("/rooms/:code/start", h.StartSession)
		api.POST("/rooms/:code/end", h.EndSession)
		api.GET("/rooms/:code/report", h.GetReport)
	}
}

func (h *RoomHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	session, err := h.rooms.CreateRoom()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"room_code": session.Room(),
	})
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	registry := session.Registry()
	c.JSON(http.StatusOK, gin.H{
		"room_code":       session.Room(),
		"created_at":      session.Info().CreatedAt,
		"participants":    registry.Count(),
		"running":         registry.Running(),
		"ended":           registry.Ended(),
		"elapsed_seconds": registry.Elapsed(),
		"elapsed_clock":   utils.FormatClock(registry.Elapsed()),
	})
}

func (h *RoomHandler) CloseRoom(c *gin.Context) {
	code := domain.RoomCode(c.Param("code"))

	if err := h.rooms.CloseRoom(c.Request.Context(), code); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

func (h *RoomHandler) ListParticipants(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	snapshot := session.Registry().Snapshot()
	out := make([]gin.H, 0, len(snapshot))
	for _, p := range snapshot {
		out = append(out, gin.H{
			"participant_id":        p.ID,
			"name":                  p.Name,
			"state":                 p.State,
			"speaking":              p.Speaking,
			"speaking_time_seconds": p.SpeakingTime,
			"contributions":         p.Contributions,
			"audio_level":           p.AudioLevel,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"participants": out,
	})
}

func (h *RoomHandler) StartSession(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	if err := session.Start(c.Request.Context()); err != nil {
		switch {
		case errors.Is(err, domain.ErrNoParticipants):
			c.JSON(http.StatusConflict, gin.H{"error": "no participants have joined"})
		case errors.Is(err, domain.ErrSessionEnded):
			c.JSON(http.StatusConflict, gin.H{"error": "session already ended"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

func (h *RoomHandler) EndSession(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	session.End(c.Request.Context())

	report, err := session.Registry().Report()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ended",
		"report": report,
	})
}

func (h *RoomHandler) GetReport(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	report, err := session.Registry().Report()
	if err != nil {
		if errors.Is(err, domain.ErrReportNotReady) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not ready, session still running"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report": report,
	})
}

func (h *RoomHandler) session(c *gin.Context) (*services.Session, bool) {
	code := domain.RoomCode(c.Param("code"))

	session, err := h.rooms.Get(code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return nil, false
	}
	return session, true
}
