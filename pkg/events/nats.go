package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glestaris/ice/pkg/log"
	"github.com/glestaris/ice/pkg/metrics"
	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject registry events are forwarded to
const DefaultSubject = "ice.registry.events"

// Publisher sends a payload on a subject
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher is a Publisher backed by a NATS connection
type NATSPublisher struct {
	nc *nats.Conn
}

// ConnectNATS dials the NATS server at url, reconnecting forever
func ConnectNATS(url string) (*NATSPublisher, error) {
	logger := log.WithComponent("nats")
	opts := []nats.Option{
		nats.Name("ice-registry"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
			metrics.UpdateComponent(metrics.ComponentNATS, false, "disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
			metrics.UpdateComponent(metrics.ComponentNATS, true, "")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{nc: nc}, nil
}

// Publish implements Publisher
func (p *NATSPublisher) Publish(subject string, data []byte) error {
	if p.nc == nil || p.nc.IsClosed() {
		return fmt.Errorf("nats not connected")
	}
	return p.nc.Publish(subject, data)
}

// Close drains and closes the connection
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

// Forwarder relays every broker event to a Publisher as JSON
type Forwarder struct {
	broker    *Broker
	publisher Publisher
	subject   string
}

// NewForwarder creates a forwarder. An empty subject means DefaultSubject.
func NewForwarder(broker *Broker, publisher Publisher, subject string) *Forwarder {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Forwarder{broker: broker, publisher: publisher, subject: subject}
}

// Run forwards events until ctx is cancelled. Publish failures are logged
// and do not stop forwarding.
func (f *Forwarder) Run(ctx context.Context) {
	logger := log.WithComponent("events")
	sub := f.broker.Subscribe()
	defer f.broker.Unsubscribe(sub)

	for {
		select {
		case event, ok := <-sub:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error().Err(err).Str("type", string(event.Type)).Msg("Failed to encode event")
				continue
			}
			if err := f.publisher.Publish(f.subject, data); err != nil {
				logger.Warn().Err(err).Str("type", string(event.Type)).Msg("Failed to forward event")
			}
		case <-ctx.Done():
			return
		}
	}
}
