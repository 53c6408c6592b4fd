// Package mqtt publishes the derived binary sensor over MQTT so Home
// Assistant (or anything else) can consume it as a retained on/off topic.
package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/alexprokopov1992/svitlobot-HA/internal/watchdog"
)

const connectTimeout = 10 * time.Second

// StateTopic returns the retained ON/OFF topic for an entity.
func StateTopic(entityID string) string {
	return fmt.Sprintf("svitlobot/%s/state", entityID)
}

// AttributesTopic returns the retained JSON attributes topic for an entity.
func AttributesTopic(entityID string) string {
	return fmt.Sprintf("svitlobot/%s/attributes", entityID)
}

// FormatState renders the binary state payload (hqtt-style ON/OFF).
func FormatState(s watchdog.Snapshot) []byte {
	if s.Online {
		return []byte("ON")
	}
	return []byte("OFF")
}

// FormatAttributes renders the attributes payload.
func FormatAttributes(s watchdog.Snapshot) ([]byte, error) {
	return json.Marshal(s.Attributes())
}

// Publisher implements watchdog.StatePublisher on top of a paho client.
type Publisher struct {
	client paho.Client
}

// NewPublisher connects to the broker. The paho client reconnects on its own
// afterwards; publish failures while disconnected surface as errors the
// watcher logs and ignores.
func NewPublisher(broker, clientID string) (*Publisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	client := paho.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("timeout connecting to MQTT broker %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", broker, err)
	}

	log.Info().Str("broker", broker).Msg("Connected to MQTT broker")

	return &Publisher{client: client}, nil
}

// PublishState publishes the binary state and attributes, retained.
func (p *Publisher) PublishState(s watchdog.Snapshot) error {
	if err := p.publish(StateTopic(s.EntityID), FormatState(s)); err != nil {
		return err
	}

	attrs, err := FormatAttributes(s)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}
	return p.publish(AttributesTopic(s.EntityID), attrs)
}

func (p *Publisher) publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 1, true, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
