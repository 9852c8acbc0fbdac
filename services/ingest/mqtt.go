// Package ingest feeds readings published by bus devices over MQTT into the trip service.
//
// Devices publish JSON to:
//
//	<prefix>/trips/<tripId>/location    trip.NewLocation
//	<prefix>/trips/<tripId>/rfid        trip.Scan
//	<prefix>/trips/<tripId>/rfid/bulk   trip.BulkScan
package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/trip"
)

const (
	qos            = 1
	connectTimeout = 10 * time.Second
	handleTimeout  = 15 * time.Second
	quiesceMillis  = 250
)

var errUnknownTopic = errors.New("unknown topic")

type (
	kind int

	// Bridge subscribes to the device topics and forwards every message to the trip service.
	Bridge struct {
		client   mqtt.Client
		prefix   string
		trips    trip.Service
		validate *validator.Validate
		logger   core.Logger
	}
)

const (
	kindLocation kind = iota + 1
	kindScan
	kindBulkScan
)

func NewBridge(conf *core.Config, trips trip.Service, validate *validator.Validate, logger core.Logger) *Bridge {
	b := &Bridge{
		prefix:   strings.Trim(conf.MQTT.TopicPrefix, "/"),
		trips:    trips,
		validate: validate,
		logger:   logger,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(conf.MQTT.Broker).
		SetClientID(conf.MQTT.ClientID).
		SetUsername(conf.MQTT.Username).
		SetPassword(conf.MQTT.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(b.subscribe).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", err)
		})
	b.client = mqtt.NewClient(opts)
	return b
}

// Topics returns the subscription filters.
func (b *Bridge) Topics() []string {
	return []string{
		b.prefix + "/trips/+/location",
		b.prefix + "/trips/+/rfid",
		b.prefix + "/trips/+/rfid/bulk",
	}
}

func (b *Bridge) Start() error {
	token := b.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errors.New("mqtt connect timed out")
	}
	return errors.Wrap(token.Error(), "connecting to mqtt broker")
}

func (b *Bridge) Stop() {
	b.client.Disconnect(quiesceMillis)
}

// subscribe runs on every (re)connection.
func (b *Bridge) subscribe(c mqtt.Client) {
	filters := make(map[string]byte)
	for _, t := range b.Topics() {
		filters[t] = qos
	}
	token := c.SubscribeMultiple(filters, func(_ mqtt.Client, msg mqtt.Message) {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		if err := b.handle(ctx, msg.Topic(), msg.Payload()); err != nil {
			b.logger.Warn("dropping device message", err, map[string]interface{}{"topic": msg.Topic()})
		}
	})
	if token.WaitTimeout(connectTimeout) && token.Error() == nil {
		b.logger.Info("mqtt ingest subscribed", map[string]interface{}{"topics": b.Topics()})
		return
	}
	b.logger.Error("mqtt subscribe failed", token.Error())
}

// parseTopic returns the trip id and message kind of topic.
func (b *Bridge) parseTopic(topic string) (string, kind, error) {
	rest := strings.TrimPrefix(topic, b.prefix+"/trips/")
	if rest == topic {
		return "", 0, errUnknownTopic
	}
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] == "" {
		return "", 0, errUnknownTopic
	}

	switch strings.Join(parts[1:], "/") {
	case "location":
		return parts[0], kindLocation, nil
	case "rfid":
		return parts[0], kindScan, nil
	case "rfid/bulk":
		return parts[0], kindBulkScan, nil
	}
	return "", 0, errUnknownTopic
}

func (b *Bridge) handle(ctx context.Context, topic string, payload []byte) error {
	tripID, k, err := b.parseTopic(topic)
	if err != nil {
		return err
	}

	switch k {
	case kindLocation:
		var nl trip.NewLocation
		if err := b.decode(payload, &nl, nl.Validate); err != nil {
			return err
		}
		_, err = b.trips.UpdateLocation(ctx, tripID, nl)

	case kindScan:
		var scan trip.Scan
		if err := b.decode(payload, &scan, scan.Validate); err != nil {
			return err
		}
		var res trip.ScanResult
		if scan.StudentID != "" {
			res, err = b.trips.LogEvent(ctx, tripID, scan)
		} else {
			res, err = b.trips.LogEventByTag(ctx, tripID, scan)
		}
		if err == nil {
			b.logger.Debug("device scan recorded", map[string]interface{}{"tripId": tripID, "eventId": res.Event.ID})
		}

	case kindBulkScan:
		var bulk trip.BulkScan
		if err := b.decode(payload, &bulk, bulk.Validate); err != nil {
			return err
		}
		var results []trip.BulkScanResult
		if results, err = b.trips.LogEventsBulk(ctx, tripID, bulk); err == nil {
			for _, r := range results {
				if !r.Success {
					b.logger.Warn("device bulk scan rejected", map[string]interface{}{"tripId": tripID, "rfidTagId": r.RFIDTagID, "error": r.Error})
				}
			}
		}
	}
	return errors.Wrapf(err, "handling %s", topic)
}

func (b *Bridge) decode(payload []byte, dst interface{}, validate func(*validator.Validate) error) error {
	if err := sonic.Unmarshal(payload, dst); err != nil {
		return errors.Wrap(err, "decoding payload")
	}
	return validate(b.validate)
}
