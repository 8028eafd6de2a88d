package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/gradewise/gradewise-backend/internal/middleware"
	"github.com/gradewise/gradewise-backend/internal/model"
	"github.com/gradewise/gradewise-backend/internal/service"
	ws "github.com/gradewise/gradewise-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the authoritative attempt clock. Clients render the
// countdown from server ticks instead of trusting their local clock.
type WSHandler struct {
	attempts *service.AttemptService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attempts *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attempts: attempts,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// AttemptClockStream godoc
// WS /ws/v1/attempts/:attempt_id/clock
// Sends a tick event every second with the remaining time, then an expired
// event and a close when the window runs out.
func (h *WSHandler) AttemptClockStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	state, err := h.attempts.GetState(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		ws.WriteError(conn, "attempt not available")
		return
	}
	if state.Status != model.AttemptStatusInProgress {
		ws.WriteTyped(conn, ws.ExpiredResponse{Event: ws.EventExpired})
		return
	}

	wsLog := h.log.With().
		Int("student_id", claims.UserID).
		Str("attempt_id", attemptID.String()).
		Logger()
	wsLog.Info().Msg("Clock stream connected")

	// Reads only serve ping/pong and close detection.
	go func() {
		for {
			var msg ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &msg); err != nil {
				conn.Close()
				return
			}
			if msg.Action == ws.ActionPing {
				ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
			}
		}
	}()

	remaining := state.RemainingSeconds
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for remaining > 0 {
		if err := ws.WriteTyped(conn, ws.TickResponse{Event: ws.EventTick, RemainingSeconds: remaining}); err != nil {
			wsLog.Debug().Msg("Clock stream closed")
			return
		}

		select {
		case <-ticker.C:
			remaining--
		case <-c.Request.Context().Done():
			return
		}
	}

	ws.WriteTyped(conn, ws.ExpiredResponse{Event: ws.EventExpired})
	wsLog.Info().Msg("Attempt window elapsed, closing stream")
}
