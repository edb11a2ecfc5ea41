package realtime

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Registry is a concurrency-safe bidirectional mapping between users and
// their live sessions. Each user entry carries its own lock so connect and
// disconnect traffic for unrelated users never serializes.
type Registry struct {
	users  sync.Map // userID -> *userSessions
	count  atomic.Int64
	logger *zap.Logger
}

type userSessions struct {
	mu       sync.RWMutex
	sessions map[string]Session
	// gone marks an entry that has been unmapped from the registry. Writers
	// that acquire a gone entry must retry against a fresh one; without the
	// flag a session added during the last removal of a user's other session
	// would land in an unmapped entry and never receive pushes.
	gone bool
}

// NewRegistry builds an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{logger: logger}
}

// Add registers a live session for its user.
func (r *Registry) Add(session Session) {
	for {
		entry, _ := r.users.LoadOrStore(session.UserID(), &userSessions{sessions: make(map[string]Session)})
		us := entry.(*userSessions)
		us.mu.Lock()
		if us.gone {
			us.mu.Unlock()
			r.users.CompareAndDelete(session.UserID(), entry)
			continue
		}
		if _, exists := us.sessions[session.ID()]; !exists {
			us.sessions[session.ID()] = session
			r.count.Add(1)
		}
		us.mu.Unlock()
		return
	}
}

// Remove drops a session. Unknown sessions are a no-op.
func (r *Registry) Remove(userID, sessionID string) {
	entry, ok := r.users.Load(userID)
	if !ok {
		return
	}
	us := entry.(*userSessions)
	us.mu.Lock()
	if _, exists := us.sessions[sessionID]; exists {
		delete(us.sessions, sessionID)
		r.count.Add(-1)
	}
	if len(us.sessions) == 0 && !us.gone {
		// Tombstone before unmapping so a concurrent Add that already
		// loaded this entry retries instead of writing into it.
		us.gone = true
		r.users.CompareAndDelete(userID, entry)
	}
	us.mu.Unlock()
}

// Push fans a payload out to every session of the user and returns the
// number of successful deliveries. Unknown user is a no-op. Send failures
// are logged and swallowed; the durable notification record is the source
// of truth.
func (r *Registry) Push(userID string, payload []byte) int {
	entry, ok := r.users.Load(userID)
	if !ok {
		return 0
	}
	us := entry.(*userSessions)
	us.mu.RLock()
	sessions := make([]Session, 0, len(us.sessions))
	for _, session := range us.sessions {
		sessions = append(sessions, session)
	}
	us.mu.RUnlock()

	delivered := 0
	for _, session := range sessions {
		if err := session.Send(payload); err != nil {
			r.logger.Debug("session push failed",
				zap.String("user_id", userID),
				zap.String("session_id", session.ID()),
				zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}

// Sessions returns a snapshot of the user's live sessions.
func (r *Registry) Sessions(userID string) []Session {
	entry, ok := r.users.Load(userID)
	if !ok {
		return nil
	}
	us := entry.(*userSessions)
	us.mu.RLock()
	defer us.mu.RUnlock()
	sessions := make([]Session, 0, len(us.sessions))
	for _, session := range us.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	return int(r.count.Load())
}

// Sweep removes sessions whose connections have died and returns how many
// were dropped. Run periodically from the background runner.
func (r *Registry) Sweep() int {
	removed := 0
	r.users.Range(func(key, value any) bool {
		us := value.(*userSessions)
		us.mu.Lock()
		for id, session := range us.sessions {
			if !session.Alive() {
				delete(us.sessions, id)
				r.count.Add(-1)
				removed++
			}
		}
		if len(us.sessions) == 0 && !us.gone {
			us.gone = true
			r.users.CompareAndDelete(key, value)
		}
		us.mu.Unlock()
		return true
	})
	return removed
}
