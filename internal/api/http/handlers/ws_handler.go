package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/realtime"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const wsActorKey = "ws_actor"

var errSessionClosed = errors.New("session closed")

// wsCommand is the client-to-server frame: subscribe or unsubscribe from a
// ticket channel.
type wsCommand struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

// WSHandler upgrades authenticated connections into registered realtime
// sessions. Admin sessions are auto-subscribed to the admin broadcast
// channel; ticket channels require a read-visible ticket.
type WSHandler struct {
	hub       *realtime.Hub
	lifecycle *service.LifecycleService
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewWSHandler constructs handler.
func NewWSHandler(hub *realtime.Hub, lifecycle *service.LifecycleService, metrics *observability.Metrics, logger *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, lifecycle: lifecycle, metrics: metrics, logger: logger}
}

// Upgrade gates the route to websocket upgrade requests and stashes the
// authenticated actor for the connection handler.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return apperrors.NewValidationError("websocket upgrade required", nil)
	}
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	c.Locals(wsActorKey, actor)
	return c.Next()
}

// Handle serves one websocket connection for its full lifetime.
func (h *WSHandler) Handle() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		actor, ok := conn.Locals(wsActorKey).(*domain.User)
		if !ok {
			_ = conn.Close()
			return
		}

		session := &wsSession{
			id:     uuid.NewString(),
			userID: actor.ID,
			conn:   conn,
		}
		h.hub.Registry().Add(session)
		if h.metrics != nil {
			h.metrics.SessionsActive.Inc()
		}
		if actor.HasRole(domain.RoleAdmin) {
			h.hub.Subscribe(realtime.TopicAdmin, session)
		}
		h.logger.Info("websocket session opened",
			zap.String("session_id", session.id),
			zap.String("user_id", actor.ID))

		defer func() {
			session.markClosed()
			h.hub.DropSession(session)
			if h.metrics != nil {
				h.metrics.SessionsActive.Dec()
			}
			h.logger.Info("websocket session closed",
				zap.String("session_id", session.id),
				zap.String("user_id", actor.ID))
		}()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd wsCommand
			if err := json.Unmarshal(raw, &cmd); err != nil {
				h.sendError(session, "invalid frame")
				continue
			}
			h.dispatch(session, actor, cmd)
		}
	})
}

func (h *WSHandler) dispatch(session *wsSession, actor *domain.User, cmd wsCommand) {
	switch cmd.Action {
	case "subscribe":
		ticketID, ok := parseTicketTopic(cmd.Topic)
		if !ok {
			h.sendError(session, "unknown topic")
			return
		}
		// Subscribing requires read visibility on the ticket.
		if _, _, err := h.lifecycle.Get(context.Background(), actor, ticketID); err != nil {
			h.sendError(session, "ticket not visible")
			return
		}
		h.hub.Subscribe(realtime.TicketTopic(ticketID), session)
		h.ack(session, "subscribed", cmd.Topic)
	case "unsubscribe":
		if _, ok := parseTicketTopic(cmd.Topic); !ok {
			h.sendError(session, "unknown topic")
			return
		}
		h.hub.Unsubscribe(cmd.Topic, session.ID())
		h.ack(session, "unsubscribed", cmd.Topic)
	default:
		h.sendError(session, "unknown action")
	}
}

func (h *WSHandler) ack(session *wsSession, status, topic string) {
	payload, err := json.Marshal(realtime.Envelope{
		Channel: "control",
		Data:    map[string]string{"status": status, "topic": topic},
	})
	if err != nil {
		return
	}
	_ = session.Send(payload)
}

func (h *WSHandler) sendError(session *wsSession, message string) {
	payload, err := json.Marshal(realtime.Envelope{
		Channel: "control",
		Data:    map[string]string{"error": message},
	})
	if err != nil {
		return
	}
	_ = session.Send(payload)
}

func parseTicketTopic(topic string) (string, bool) {
	ticketID, found := strings.CutPrefix(topic, "ticket:")
	if !found || ticketID == "" {
		return "", false
	}
	return ticketID, true
}

// wsSession adapts a websocket connection to the realtime session
// contract. Writes are serialized; a failed write marks the session dead
// for the next registry sweep.
type wsSession struct {
	id     string
	userID string
	conn   *websocket.Conn

	mu     sync.Mutex
	closed atomic.Bool
}

func (s *wsSession) ID() string {
	return s.id
}

func (s *wsSession) UserID() string {
	return s.userID
}

func (s *wsSession) Send(payload []byte) error {
	if s.closed.Load() {
		return errSessionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		s.closed.Store(true)
		return err
	}
	return nil
}

func (s *wsSession) Alive() bool {
	return !s.closed.Load()
}

func (s *wsSession) markClosed() {
	s.closed.Store(true)
}
