package realtime_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/realtime"
)

func newHub() *realtime.Hub {
	logger := zap.NewNop()
	return realtime.NewHub(realtime.NewRegistry(logger), logger)
}

func TestPublishReachesSubscribersOnly(t *testing.T) {
	hub := newHub()

	subscribed := &fakeSession{id: "s1", userID: "u1"}
	bystander := &fakeSession{id: "s2", userID: "u2"}
	hub.Registry().Add(subscribed)
	hub.Registry().Add(bystander)
	hub.Subscribe("ticket:t1", subscribed)

	hub.Publish("ticket:t1", map[string]string{"hello": "world"})

	require.Equal(t, 1, subscribed.received())
	require.Zero(t, bystander.received())

	var envelope realtime.Envelope
	require.NoError(t, json.Unmarshal(subscribed.payloads[0], &envelope))
	require.Equal(t, "ticket:t1", envelope.Channel)
}

func TestPublishUnknownTopicIsNoOp(t *testing.T) {
	hub := newHub()
	hub.Publish("ticket:ghost", "data")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := newHub()

	session := &fakeSession{id: "s1", userID: "u1"}
	hub.Registry().Add(session)
	hub.Subscribe("ticket:t1", session)
	hub.Unsubscribe("ticket:t1", session.ID())

	hub.Publish("ticket:t1", "data")
	require.Zero(t, session.received())

	// Unknown topic/session unsubscribe is a no-op.
	hub.Unsubscribe("ticket:ghost", "sX")
}

func TestDropSessionRemovesEverywhere(t *testing.T) {
	hub := newHub()

	session := &fakeSession{id: "s1", userID: "u1"}
	hub.Registry().Add(session)
	hub.Subscribe(realtime.TopicAdmin, session)
	hub.Subscribe("ticket:t1", session)

	hub.DropSession(session)

	require.Zero(t, hub.Registry().Count())
	hub.Publish(realtime.TopicAdmin, "data")
	hub.Publish("ticket:t1", "data")
	require.Zero(t, session.received())
}

func TestSweepPurgesDeadTopicSubscribers(t *testing.T) {
	hub := newHub()

	alive := &fakeSession{id: "s1", userID: "u1"}
	dying := &fakeSession{id: "s2", userID: "u2"}
	hub.Registry().Add(alive)
	hub.Registry().Add(dying)
	hub.Subscribe("ticket:t1", alive)
	hub.Subscribe("ticket:t1", dying)
	dying.kill()

	require.Equal(t, 1, hub.Sweep())

	hub.Publish("ticket:t1", "data")
	require.Equal(t, 1, alive.received())
	require.Zero(t, dying.received())
}

func TestPushUserWrapsEnvelope(t *testing.T) {
	hub := newHub()

	session := &fakeSession{id: "s1", userID: "u1"}
	hub.Registry().Add(session)

	require.Equal(t, 1, hub.PushUser("u1", map[string]string{"k": "v"}))

	var envelope realtime.Envelope
	require.NoError(t, json.Unmarshal(session.payloads[0], &envelope))
	require.Equal(t, "user:u1", envelope.Channel)
}

func TestTicketTopicNaming(t *testing.T) {
	require.Equal(t, "ticket:abc", realtime.TicketTopic("abc"))
}

func TestSubscribeChurnKeepsTopicReachable(t *testing.T) {
	hub := newHub()

	// Subscribe racing the unsubscribe that empties the topic must never
	// leave a subscriber in an unmapped topic entry.
	const rounds = 20000
	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			session := &fakeSession{id: fmt.Sprintf("s%d", w), userID: "u1"}
			for i := 0; i < rounds; i++ {
				hub.Subscribe("ticket:t1", session)
				hub.Unsubscribe("ticket:t1", session.ID())
			}
		}(w)
	}
	wg.Wait()

	hub.Unsubscribe("ticket:t1", "s0")
	hub.Unsubscribe("ticket:t1", "s1")

	late := &fakeSession{id: "late", userID: "u2"}
	hub.Registry().Add(late)
	hub.Subscribe("ticket:t1", late)
	hub.Publish("ticket:t1", "data")
	require.Equal(t, 1, late.received())
}
