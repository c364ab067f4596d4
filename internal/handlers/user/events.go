package user

import (
	"context"
	"net/http"
	"time"

	"byteshop/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// Subscriber streams the raw events published for a user.
type Subscriber interface {
	Subscribe(ctx context.Context, userID string) (<-chan []byte, func() error)
}

type EventsHandler struct {
	events   Subscriber
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

// NewEventsHandler accepts websocket upgrades from allowedOrigin, or from
// any origin when it is empty.
func NewEventsHandler(events Subscriber, allowedOrigin string, log logrus.FieldLogger) *EventsHandler {
	return &EventsHandler{
		events: events,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || origin == "" || origin == allowedOrigin
			},
		},
		log: log,
	}
}

// GET /api/events/ws
func (h *EventsHandler) Stream(c *gin.Context) {
	userID := c.GetString("user_id")
	log := h.log.WithField("user_id", userID)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, closeSub := h.events.Subscribe(ctx, userID)
	defer func() {
		if err := closeSub(); err != nil {
			log.WithError(err).Debug("event subscription close failed")
		}
	}()

	// The client never sends anything we use; reading only detects disconnects.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(models.Event{Type: "connected", Timestamp: time.Now().UTC()}); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.WithError(err).Debug("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
