package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"fanzone/internal/domain"
	"fanzone/internal/eventbus"
	"fanzone/pkg/logger"

	"github.com/labstack/echo/v4"
)

const maxEventBody = 64 << 10

// EventHandler lets backend producers publish events to every connected
// instance.
type EventHandler struct {
	broadcaster domain.Broadcaster
	log         logger.Logger
}

type PublishEventResponse struct {
	Event domain.EventType `json:"event"`
	Known bool             `json:"known"`
}

func NewEventHandler(broadcaster domain.Broadcaster, log logger.Logger) *EventHandler {
	return &EventHandler{
		broadcaster: broadcaster,
		log:         log,
	}
}

// Register mounts the publish route on a group guarded by a service
// credential. User sessions must not reach it.
func (h *EventHandler) Register(g *echo.Group) {
	g.POST("/:type", h.Publish)
}

func (h *EventHandler) Publish(c echo.Context) error {
	eventType := domain.EventType(c.Param("type"))

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxEventBody+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Failed to read body"})
	}
	if len(body) > maxEventBody {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": "Payload too large"})
	}
	if len(body) == 0 {
		body = []byte("null")
	}
	if !json.Valid(body) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Payload must be JSON"})
	}

	if !eventType.Known() {
		h.log.Warn("Publishing unknown event type", "event_type", eventType)
	}

	if err := h.broadcaster.Broadcast(c.Request().Context(), eventType, json.RawMessage(body)); err != nil {
		if errors.Is(err, eventbus.ErrInvalidPayload) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Payload is not serializable"})
		}
		h.log.Error("Failed to publish event", "event_type", eventType, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to publish event"})
	}

	return c.JSON(http.StatusAccepted, PublishEventResponse{Event: eventType, Known: eventType.Known()})
}
