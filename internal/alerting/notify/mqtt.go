package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	alerting "fleetops-cloud/internal/alerting/domain"
)

// MQTTOptions configures the MQTT alert channel.
type MQTTOptions struct {
	BrokerURL string
	Topic     string
	ClientID  string
	Username  string
	Password  string
	QoS       byte
}

// MQTTChannel publishes structured alert messages to an MQTT topic.
type MQTTChannel struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// NewMQTTChannel connects to the broker and returns the channel.
func NewMQTTChannel(opts MQTTOptions) (*MQTTChannel, error) {
	if opts.BrokerURL == "" {
		return nil, errors.New("mqtt channel: empty broker url")
	}
	if opts.Topic == "" {
		return nil, errors.New("mqtt channel: empty topic")
	}

	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetCleanSession(true)

	client := mqtt.NewClient(clientOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt channel: connect: %w", token.Error())
	}
	return &MQTTChannel{client: client, topic: opts.Topic, qos: opts.QoS}, nil
}

// Send publishes the message as JSON.
func (c *MQTTChannel) Send(_ context.Context, msg alerting.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	token := c.client.Publish(c.topic, c.qos, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt channel: publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (c *MQTTChannel) Close() {
	if c != nil && c.client != nil {
		c.client.Disconnect(250)
	}
}
