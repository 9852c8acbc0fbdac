package echoapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shulebus/core/route"
	"github.com/trezcool/shulebus/core/tracking"
	"github.com/trezcool/shulebus/core/trip"
)

type wsMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dialTracking(t *testing.T, a *testApp) *websocket.Conn {
	srv := httptest.NewServer(a.srv)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/tracking"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) wsMessage {
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wsMessage
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func TestTracking_SubscribeTrip(t *testing.T) {
	a := newTestApp(t)
	r := a.createRoute(route.MorningPickup)
	tr := a.createTrip(r.ID, nil)
	ws := dialTracking(t, a)

	require.NoError(t, ws.WriteJSON(tracking.Inbound{Event: tracking.EventSubscribeTrip, Data: tracking.InboundData{TripID: tr.ID}}))
	msg := readMessage(t, ws)
	assert.Equal(t, tracking.EventSubscribed, msg.Event)

	var ack tracking.Ack
	require.NoError(t, json.Unmarshal(msg.Data, &ack))
	assert.Equal(t, tr.ID, ack.TripID)
	assert.Equal(t, "Subscribed to trip "+tr.ID, ack.Message)
	assert.Equal(t, 1, a.hub.SubscriberCount(tracking.TripRoom(tr.ID)))

	code, res := a.call(http.MethodPost, "/v1/trips/"+tr.ID+"/location", map[string]float64{"latitude": -1.29, "longitude": 36.82})
	require.Equal(t, http.StatusCreated, code, res.Error)

	msg = readMessage(t, ws)
	assert.Equal(t, tracking.EventLocationUpdate, msg.Event)
	var update trip.LocationUpdate
	require.NoError(t, json.Unmarshal(msg.Data, &update))
	assert.Equal(t, tr.ID, update.TripID)
}

func TestTracking_Errors(t *testing.T) {
	a := newTestApp(t)
	ws := dialTracking(t, a)

	tests := []struct {
		name    string
		payload string
		wantMsg string
	}{
		{name: "invalid json", payload: "{oops", wantMsg: "Invalid message"},
		{name: "unknown event", payload: `{"event":"dance"}`, wantMsg: "Unknown event: dance"},
		{name: "missing trip id", payload: `{"event":"subscribe-trip","data":{}}`, wantMsg: "Failed to subscribe to trip"},
		{name: "missing token", payload: `{"event":"subscribe-tracking","data":{}}`, wantMsg: "Failed to subscribe to student tracking"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(tt.payload)))
			msg := readMessage(t, ws)
			assert.Equal(t, tracking.EventError, msg.Event)

			var ack tracking.Ack
			require.NoError(t, json.Unmarshal(msg.Data, &ack))
			assert.Equal(t, tt.wantMsg, ack.Message)
		})
	}
}

func TestTracking_DisconnectLeavesRooms(t *testing.T) {
	a := newTestApp(t)
	ws := dialTracking(t, a)

	require.NoError(t, ws.WriteJSON(tracking.Inbound{Event: tracking.EventSubscribeTracking, Data: tracking.InboundData{Token: "tok"}}))
	assert.Equal(t, tracking.EventSubscribed, readMessage(t, ws).Event)
	assert.Equal(t, 1, a.hub.SubscriberCount(tracking.TokenRoom("tok")))

	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool {
		return a.hub.SubscriberCount(tracking.TokenRoom("tok")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWSConn_Send_FullQueue(t *testing.T) {
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- ws
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	// no writePump, so nothing drains the queue
	conn := newWSConn(<-serverConns)
	msg := tracking.Message{Event: tracking.EventLocationUpdate}
	for i := 0; i < wsSendBuffer; i++ {
		require.NoError(t, conn.Send(msg))
	}

	start := time.Now()
	assert.Equal(t, errSendBufferFull, conn.Send(msg))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, websocket.ErrCloseSent, conn.Send(msg), "closed after overflowing")
}
