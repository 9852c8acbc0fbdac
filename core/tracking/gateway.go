package tracking

import (
	"fmt"
	"strings"

	"github.com/trezcool/shulebus/core"
)

// Inbound is a client request on a tracking connection.
type Inbound struct {
	Event string      `json:"event"`
	Data  InboundData `json:"data"`
}

type InboundData struct {
	TripID string `json:"tripId,omitempty"`
	Token  string `json:"token,omitempty"`
}

// Ack is the payload of subscribed, unsubscribed and error events.
type Ack struct {
	TripID  string `json:"tripId,omitempty"`
	Message string `json:"message"`
}

// Gateway speaks the client protocol on top of a Registry.
// Every request is answered with an ack or an error event; nothing is returned to the transport.
type Gateway struct {
	reg Registry
	log core.Logger
}

func NewGateway(reg Registry, logger core.Logger) *Gateway {
	return &Gateway{reg: reg, log: logger}
}

// Connect registers the connection with the registry.
func (gw *Gateway) Connect(conn Conn) {
	gw.reg.Register(conn)
}

// Disconnect drops the connection from every room.
func (gw *Gateway) Disconnect(conn Conn) {
	gw.reg.OnDisconnect(conn.ID())
}

func (gw *Gateway) Handle(conn Conn, in Inbound) {
	var ack Message
	switch in.Event {
	case EventSubscribeTrip:
		ack = gw.join(conn, TripRoom, in.Data.TripID, Ack{
			TripID:  in.Data.TripID,
			Message: fmt.Sprintf("Subscribed to trip %s", in.Data.TripID),
		}, "Failed to subscribe to trip")
	case EventUnsubscribeTrip:
		ack = gw.leave(conn, TripRoom, in.Data.TripID, Ack{
			TripID:  in.Data.TripID,
			Message: fmt.Sprintf("Unsubscribed from trip %s", in.Data.TripID),
		}, "Failed to unsubscribe from trip")
	case EventSubscribeTracking:
		ack = gw.join(conn, TokenRoom, in.Data.Token, Ack{Message: "Subscribed to student tracking"}, "Failed to subscribe to student tracking")
	case EventUnsubscribeTracking:
		ack = gw.leave(conn, TokenRoom, in.Data.Token, Ack{Message: "Unsubscribed from student tracking"}, "Failed to unsubscribe from student tracking")
	default:
		ack = Message{Event: EventError, Data: Ack{Message: fmt.Sprintf("Unknown event: %s", in.Event)}}
	}

	if err := conn.Send(ack); err != nil {
		gw.log.Warn("could not acknowledge tracking request", err, map[string]interface{}{"connId": conn.ID(), "event": in.Event})
	}
}

func (gw *Gateway) join(conn Conn, room func(string) string, key string, ok Ack, failure string) Message {
	key = strings.TrimSpace(key)
	if key == "" {
		return Message{Event: EventError, Data: Ack{Message: failure}}
	}
	if err := gw.reg.Subscribe(room(key), conn.ID()); err != nil {
		gw.log.Warn(failure, err, map[string]interface{}{"connId": conn.ID()})
		return Message{Event: EventError, Data: Ack{Message: failure}}
	}
	return Message{Event: EventSubscribed, Data: ok}
}

func (gw *Gateway) leave(conn Conn, room func(string) string, key string, ok Ack, failure string) Message {
	key = strings.TrimSpace(key)
	if key == "" {
		return Message{Event: EventError, Data: Ack{Message: failure}}
	}
	gw.reg.Unsubscribe(room(key), conn.ID())
	return Message{Event: EventUnsubscribed, Data: ok}
}
