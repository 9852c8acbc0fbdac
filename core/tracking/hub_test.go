package tracking

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shulebus/core"
)

type fakeConn struct {
	id      string
	mu      sync.Mutex
	msgs    []Message
	sendErr error
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeConn) messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.msgs...)
}

func TestRooms(t *testing.T) {
	assert.Equal(t, "trip-42", TripRoom("42"))
	assert.Equal(t, "tracking-abc", TokenRoom("abc"))
	assert.Equal(t, "trip", roomKind(TripRoom("42")))
	assert.Equal(t, "token", roomKind(TokenRoom("abc")))
	assert.Equal(t, "other", roomKind("lobby"))
}

func TestHub_Subscribe(t *testing.T) {
	hub := NewHub(core.NopLogger{})
	c1 := newFakeConn("c1")

	assert.ErrorIs(t, hub.Subscribe(TripRoom("1"), "c1"), errUnknownConn)

	hub.Register(c1)
	assert.ErrorIs(t, hub.Subscribe("", "c1"), errEmptyRoom)

	require.NoError(t, hub.Subscribe(TripRoom("1"), "c1"))
	require.NoError(t, hub.Subscribe(TripRoom("1"), "c1")) // idempotent
	assert.Equal(t, 1, hub.SubscriberCount(TripRoom("1")))

	hub.Unsubscribe(TripRoom("1"), "c1")
	hub.Unsubscribe(TripRoom("1"), "c1")
	assert.Equal(t, 0, hub.SubscriberCount(TripRoom("1")))
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(core.NopLogger{})
	c1, c2, c3 := newFakeConn("c1"), newFakeConn("c2"), newFakeConn("c3")
	for _, c := range []*fakeConn{c1, c2, c3} {
		hub.Register(c)
	}
	require.NoError(t, hub.Subscribe(TripRoom("1"), "c1"))
	require.NoError(t, hub.Subscribe(TripRoom("1"), "c2"))
	require.NoError(t, hub.Subscribe(TokenRoom("tok"), "c3"))

	require.NoError(t, hub.Broadcast(TripRoom("1"), EventLocationUpdate, map[string]interface{}{"tripId": "1"}))

	assert.Len(t, c1.messages(), 1)
	assert.Len(t, c2.messages(), 1)
	assert.Empty(t, c3.messages())
	assert.Equal(t, EventLocationUpdate, c1.messages()[0].Event)

	// an empty room is not an error
	assert.NoError(t, hub.Broadcast(TripRoom("nobody"), EventLocationUpdate, nil))
}

func TestHub_Broadcast_DeliveryFailure(t *testing.T) {
	hub := NewHub(core.NopLogger{})
	bad, good := newFakeConn("bad"), newFakeConn("good")
	bad.sendErr = errors.New("broken pipe")
	hub.Register(bad)
	hub.Register(good)
	require.NoError(t, hub.Subscribe(TripRoom("1"), "bad"))
	require.NoError(t, hub.Subscribe(TripRoom("1"), "good"))

	err := hub.Broadcast(TripRoom("1"), EventLocationUpdate, nil)
	assert.Error(t, err)
	assert.Len(t, good.messages(), 1, "other members still receive the message")
}

func TestHub_OnDisconnect(t *testing.T) {
	hub := NewHub(core.NopLogger{})
	c1, c2 := newFakeConn("c1"), newFakeConn("c2")
	hub.Register(c1)
	hub.Register(c2)
	require.NoError(t, hub.Subscribe(TripRoom("1"), "c1"))
	require.NoError(t, hub.Subscribe(TripRoom("2"), "c1"))
	require.NoError(t, hub.Subscribe(TokenRoom("tok"), "c1"))
	require.NoError(t, hub.Subscribe(TripRoom("1"), "c2"))

	hub.OnDisconnect("c1")

	assert.Equal(t, 1, hub.SubscriberCount(TripRoom("1")))
	assert.Equal(t, 0, hub.SubscriberCount(TripRoom("2")))
	assert.Equal(t, 0, hub.SubscriberCount(TokenRoom("tok")))
	assert.NotContains(t, hub.memberships, "c1")
	assert.NotContains(t, hub.conns, "c1")
	assert.ErrorIs(t, hub.Subscribe(TripRoom("1"), "c1"), errUnknownConn)
}

func TestHub_Concurrent(t *testing.T) {
	hub := NewHub(core.NopLogger{})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		c := newFakeConn(string(rune('a' + i)))
		hub.Register(c)
		wg.Add(1)
		go func(c *fakeConn) {
			defer wg.Done()
			_ = hub.Subscribe(TripRoom("1"), c.ID())
			_ = hub.Broadcast(TripRoom("1"), EventLocationUpdate, nil)
			hub.OnDisconnect(c.ID())
		}(c)
	}
	wg.Wait()
	assert.Equal(t, 0, hub.SubscriberCount(TripRoom("1")))
}

func TestGateway_Handle(t *testing.T) {
	tests := []struct {
		name      string
		in        Inbound
		wantEvent string
		wantAck   Ack
		wantRoom  string
		wantCount int
	}{
		{
			name:      "subscribe trip",
			in:        Inbound{Event: EventSubscribeTrip, Data: InboundData{TripID: "7"}},
			wantEvent: EventSubscribed,
			wantAck:   Ack{TripID: "7", Message: "Subscribed to trip 7"},
			wantRoom:  TripRoom("7"),
			wantCount: 1,
		},
		{
			name:      "subscribe trip without id",
			in:        Inbound{Event: EventSubscribeTrip},
			wantEvent: EventError,
			wantAck:   Ack{Message: "Failed to subscribe to trip"},
			wantRoom:  TripRoom(""),
		},
		{
			name:      "subscribe tracking token",
			in:        Inbound{Event: EventSubscribeTracking, Data: InboundData{Token: "tok"}},
			wantEvent: EventSubscribed,
			wantAck:   Ack{Message: "Subscribed to student tracking"},
			wantRoom:  TokenRoom("tok"),
			wantCount: 1,
		},
		{
			name:      "unknown event",
			in:        Inbound{Event: "dance"},
			wantEvent: EventError,
			wantAck:   Ack{Message: "Unknown event: dance"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			hub := NewHub(core.NopLogger{})
			gw := NewGateway(hub, core.NopLogger{})
			conn := newFakeConn("c1")
			gw.Connect(conn)

			gw.Handle(conn, tc.in)

			msgs := conn.messages()
			require.Len(t, msgs, 1)
			assert.Equal(t, tc.wantEvent, msgs[0].Event)
			assert.Equal(t, tc.wantAck, msgs[0].Data)
			if tc.wantRoom != "" {
				assert.Equal(t, tc.wantCount, hub.SubscriberCount(tc.wantRoom))
			}
		})
	}
}

func TestGateway_UnsubscribeAndDisconnect(t *testing.T) {
	hub := NewHub(core.NopLogger{})
	gw := NewGateway(hub, core.NopLogger{})
	conn := newFakeConn("c1")
	gw.Connect(conn)

	gw.Handle(conn, Inbound{Event: EventSubscribeTrip, Data: InboundData{TripID: "7"}})
	gw.Handle(conn, Inbound{Event: EventUnsubscribeTrip, Data: InboundData{TripID: "7"}})
	assert.Equal(t, 0, hub.SubscriberCount(TripRoom("7")))

	msgs := conn.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, EventUnsubscribed, msgs[1].Event)
	assert.Equal(t, Ack{TripID: "7", Message: "Unsubscribed from trip 7"}, msgs[1].Data)

	gw.Handle(conn, Inbound{Event: EventSubscribeTracking, Data: InboundData{Token: "tok"}})
	gw.Disconnect(conn)
	assert.Equal(t, 0, hub.SubscriberCount(TokenRoom("tok")))
}
