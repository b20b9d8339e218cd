package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/config"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/realtime"
	"github.com/dmehra2102/prod-golang-projects/carequeue/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/carequeue/pkg/metrics"
)

type WSHandler struct {
	hub        *realtime.Hub
	jwtManager *auth.JWTManager
	upgrader   websocket.Upgrader
	collector  *metrics.Collector
	cfg        config.QueueConfig
	log        *zap.Logger
}

func NewWSHandler(
	hub *realtime.Hub,
	jwtManager *auth.JWTManager,
	collector *metrics.Collector,
	cfg config.QueueConfig,
	log *zap.Logger,
) *WSHandler {
	return &WSHandler{
		hub:        hub,
		jwtManager: jwtManager,
		upgrader:   realtime.Upgrader(nil),
		collector:  collector,
		cfg:        cfg,
		log:        log,
	}
}

// Serve authenticates and upgrades the connection, then hands it to the hub.
// Browsers cannot set headers on websocket requests, so the token is also
// accepted as a query parameter.
func (h *WSHandler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		if header := c.GetHeader("Authorization"); len(header) > 7 && header[:7] == "Bearer " {
			token = header[7:]
		}
	}
	if token == "" {
		respondError(c, http.StatusUnauthorized, "token required")
		return
	}

	claims, err := h.jwtManager.ValidateAccessToken(token)
	if err != nil {
		respondError(c, http.StatusUnauthorized, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	h.collector.WSConnections.Inc()
	realtime.ServeConn(h.hub, conn, claims.UserID, h.cfg.WriteTimeout, h.cfg.PongTimeout, h.log)
}
