package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// TopicAdmin receives fleet alerts and metrics snapshots; only admin
// sessions are subscribed to it.
const TopicAdmin = "admin"

// TicketTopic names the per-ticket channel visible to both parties.
func TicketTopic(ticketID string) string {
	return "ticket:" + ticketID
}

// Envelope frames every payload pushed to a client.
type Envelope struct {
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

// Hub fans events out to topic subscribers and to per-user queues. Topic
// subscription state uses the same per-entry locking discipline as the
// session registry.
type Hub struct {
	registry *Registry
	topics   sync.Map // topic -> *topicSubscribers
	logger   *zap.Logger
}

type topicSubscribers struct {
	mu       sync.RWMutex
	sessions map[string]Session
	// gone follows the registry's tombstone discipline: once an entry is
	// unmapped, subscribers must retry against a fresh one.
	gone bool
}

// NewHub builds a hub over the session registry.
func NewHub(registry *Registry, logger *zap.Logger) *Hub {
	return &Hub{registry: registry, logger: logger}
}

// Registry exposes the underlying session registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Subscribe adds the session to a topic.
func (h *Hub) Subscribe(topic string, session Session) {
	for {
		entry, _ := h.topics.LoadOrStore(topic, &topicSubscribers{sessions: make(map[string]Session)})
		subs := entry.(*topicSubscribers)
		subs.mu.Lock()
		if subs.gone {
			subs.mu.Unlock()
			h.topics.CompareAndDelete(topic, entry)
			continue
		}
		subs.sessions[session.ID()] = session
		subs.mu.Unlock()
		return
	}
}

// Unsubscribe removes the session from a topic. Unknown topic or session is
// a no-op.
func (h *Hub) Unsubscribe(topic, sessionID string) {
	entry, ok := h.topics.Load(topic)
	if !ok {
		return
	}
	subs := entry.(*topicSubscribers)
	subs.mu.Lock()
	delete(subs.sessions, sessionID)
	if len(subs.sessions) == 0 && !subs.gone {
		subs.gone = true
		h.topics.CompareAndDelete(topic, entry)
	}
	subs.mu.Unlock()
}

// Publish broadcasts data to every live subscriber of the topic.
func (h *Hub) Publish(topic string, data any) {
	payload, err := json.Marshal(Envelope{Channel: topic, Data: data})
	if err != nil {
		h.logger.Warn("marshal broadcast payload", zap.String("topic", topic), zap.Error(err))
		return
	}
	entry, ok := h.topics.Load(topic)
	if !ok {
		return
	}
	subs := entry.(*topicSubscribers)
	subs.mu.RLock()
	sessions := make([]Session, 0, len(subs.sessions))
	for _, session := range subs.sessions {
		sessions = append(sessions, session)
	}
	subs.mu.RUnlock()

	for _, session := range sessions {
		if !session.Alive() {
			continue
		}
		if err := session.Send(payload); err != nil {
			h.logger.Debug("topic push failed",
				zap.String("topic", topic),
				zap.String("session_id", session.ID()),
				zap.Error(err))
		}
	}
}

// PushUser delivers data to every live session of the user through the
// registry. Unknown user is a no-op.
func (h *Hub) PushUser(userID string, data any) int {
	payload, err := json.Marshal(Envelope{Channel: "user:" + userID, Data: data})
	if err != nil {
		h.logger.Warn("marshal user payload", zap.String("user_id", userID), zap.Error(err))
		return 0
	}
	return h.registry.Push(userID, payload)
}

// DropSession removes the session from the registry and every topic.
func (h *Hub) DropSession(session Session) {
	h.registry.Remove(session.UserID(), session.ID())
	h.topics.Range(func(key, value any) bool {
		subs := value.(*topicSubscribers)
		subs.mu.Lock()
		delete(subs.sessions, session.ID())
		if len(subs.sessions) == 0 && !subs.gone {
			subs.gone = true
			h.topics.CompareAndDelete(key, value)
		}
		subs.mu.Unlock()
		return true
	})
}

// Sweep drops dead sessions from topics and the registry.
func (h *Hub) Sweep() int {
	removed := h.registry.Sweep()
	h.topics.Range(func(key, value any) bool {
		subs := value.(*topicSubscribers)
		subs.mu.Lock()
		for id, session := range subs.sessions {
			if !session.Alive() {
				delete(subs.sessions, id)
			}
		}
		if len(subs.sessions) == 0 && !subs.gone {
			subs.gone = true
			h.topics.CompareAndDelete(key, value)
		}
		subs.mu.Unlock()
		return true
	})
	return removed
}
