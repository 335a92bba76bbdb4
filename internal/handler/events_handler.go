package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/famtime/rewards-api/pkg/events"
	appErrors "github.com/famtime/rewards-api/pkg/errors"
	"github.com/famtime/rewards-api/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Device agents and parent apps connect from native clients.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventsHandler upgrades subscribers onto the family event stream.
type EventsHandler struct {
	hub    *events.Hub
	logger *zap.Logger
}

// NewEventsHandler constructs the handler.
func NewEventsHandler(hub *events.Hub, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{hub: hub, logger: logger}
}

// Subscribe godoc
// @Summary Subscribe to family events over websocket
// @Tags Events
// @Param familyId query string true "Family ID"
// @Success 101 "Switching protocols"
// @Router /events/stream [get]
func (h *EventsHandler) Subscribe(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "event stream not configured"))
		return
	}
	familyID := strings.TrimSpace(c.Query("familyId"))
	if familyID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "familyId is required"))
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := events.NewClient(h.hub, conn, familyID)
	h.hub.Register(client)
	h.logger.Debug("websocket client connected", zap.String("family_id", familyID))

	go client.WritePump()
	client.ReadPump()
}
