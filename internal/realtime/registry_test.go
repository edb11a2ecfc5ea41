package realtime_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/realtime"
)

type fakeSession struct {
	id     string
	userID string

	mu       sync.Mutex
	payloads [][]byte
	dead     bool
	sendErr  error
}

func (s *fakeSession) ID() string     { return s.id }
func (s *fakeSession) UserID() string { return s.userID }

func (s *fakeSession) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *fakeSession) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.dead
}

func (s *fakeSession) kill() {
	s.mu.Lock()
	s.dead = true
	s.mu.Unlock()
}

func (s *fakeSession) received() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

func newRegistry() *realtime.Registry {
	return realtime.NewRegistry(zap.NewNop())
}

func TestAddRemoveAndCount(t *testing.T) {
	registry := newRegistry()

	s1 := &fakeSession{id: "s1", userID: "u1"}
	s2 := &fakeSession{id: "s2", userID: "u1"}
	registry.Add(s1)
	registry.Add(s1) // duplicate add is a no-op
	registry.Add(s2)
	require.Equal(t, 2, registry.Count())

	registry.Remove("u1", "s1")
	require.Equal(t, 1, registry.Count())
	registry.Remove("u1", "s1") // already gone
	registry.Remove("u-unknown", "sX")
	require.Equal(t, 1, registry.Count())
}

func TestPushFansOutToAllUserSessions(t *testing.T) {
	registry := newRegistry()

	s1 := &fakeSession{id: "s1", userID: "u1"}
	s2 := &fakeSession{id: "s2", userID: "u1"}
	other := &fakeSession{id: "s3", userID: "u2"}
	registry.Add(s1)
	registry.Add(s2)
	registry.Add(other)

	delivered := registry.Push("u1", []byte("hello"))
	require.Equal(t, 2, delivered)
	require.Equal(t, 1, s1.received())
	require.Equal(t, 1, s2.received())
	require.Zero(t, other.received())
}

func TestPushUnknownUserIsNoOp(t *testing.T) {
	registry := newRegistry()
	require.Zero(t, registry.Push("ghost", []byte("x")))
}

func TestPushSwallowsSendFailures(t *testing.T) {
	registry := newRegistry()

	ok := &fakeSession{id: "s1", userID: "u1"}
	broken := &fakeSession{id: "s2", userID: "u1", sendErr: fmt.Errorf("gone")}
	registry.Add(ok)
	registry.Add(broken)

	delivered := registry.Push("u1", []byte("hello"))
	require.Equal(t, 1, delivered)
	require.Equal(t, 1, ok.received())
}

func TestSweepDropsDeadSessions(t *testing.T) {
	registry := newRegistry()

	alive := &fakeSession{id: "s1", userID: "u1"}
	dying := &fakeSession{id: "s2", userID: "u1"}
	registry.Add(alive)
	registry.Add(dying)
	dying.kill()

	require.Equal(t, 1, registry.Sweep())
	require.Equal(t, 1, registry.Count())
	require.Len(t, registry.Sessions("u1"), 1)
}

func TestConcurrentChurnAcrossUsers(t *testing.T) {
	registry := newRegistry()

	const users = 16
	const perUser = 8
	var wg sync.WaitGroup

	for u := 0; u < users; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			userID := fmt.Sprintf("u%d", u)
			for i := 0; i < perUser; i++ {
				session := &fakeSession{id: fmt.Sprintf("%s-s%d", userID, i), userID: userID}
				registry.Add(session)
				registry.Push(userID, []byte("ping"))
			}
			for i := 0; i < perUser/2; i++ {
				registry.Remove(userID, fmt.Sprintf("%s-s%d", userID, i))
			}
		}(u)
	}
	wg.Wait()

	require.Equal(t, users*perUser/2, registry.Count())
}

func TestReconnectChurnNeverStrandsSessions(t *testing.T) {
	registry := newRegistry()

	// Two goroutines churn connect/disconnect for the same user. Each Add
	// can race the removal of the user's last other session; a session that
	// lands in an unmapped entry would survive the final removals below.
	const rounds = 20000
	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", w)
			for i := 0; i < rounds; i++ {
				registry.Add(&fakeSession{id: id, userID: "u1"})
				registry.Remove("u1", id)
			}
		}(w)
	}
	wg.Wait()

	registry.Remove("u1", "s0")
	registry.Remove("u1", "s1")
	require.Zero(t, registry.Count())
	require.Empty(t, registry.Sessions("u1"))
}
