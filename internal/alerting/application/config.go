package application

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// MQTTConfig defines the MQTT alert channel endpoint. The channel is
// wired only when BrokerURL is set.
type MQTTConfig struct {
	BrokerURL string `yaml:"broker_url"`
	Topic     string `yaml:"topic"`
	ClientID  string `yaml:"client_id"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	QoS       int    `yaml:"qos"`
}

// AMQPConfig defines the AMQP alert channel endpoint. The channel is
// wired only when URL is set.
type AMQPConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
}

// Config defines alerting configuration: the sliding-window rule plus
// the dispatch channel endpoints. Environment variables provide the
// defaults; a YAML file named by ALERTING_CONFIG overlays them.
type Config struct {
	Namespace  string     `yaml:"namespace"`
	Threshold  int        `yaml:"threshold"`
	WindowRaw  string     `yaml:"window"`
	TimeoutRaw string     `yaml:"notify_timeout"`
	WebhookURL string     `yaml:"webhook_url"`
	Template   string     `yaml:"template"`
	MQTT       MQTTConfig `yaml:"mqtt"`
	AMQP       AMQPConfig `yaml:"amqp"`

	Window        time.Duration `yaml:"-"`
	NotifyTimeout time.Duration `yaml:"-"`
}

// LoadConfig loads alerting config from env and an optional YAML overlay.
func LoadConfig() (Config, error) {
	cfg := Config{
		Namespace:  getenvDefault("ALERT_NAMESPACE", "fleetops"),
		Threshold:  getenvIntDefault("ALERT_THRESHOLD", 3),
		WindowRaw:  getenvDefault("ALERT_WINDOW", "5m"),
		TimeoutRaw: getenvDefault("ALERT_NOTIFY_TIMEOUT", "5s"),
		WebhookURL: os.Getenv("ALERT_WEBHOOK_URL"),
		Template:   os.Getenv("ALERT_TEMPLATE"),
		MQTT: MQTTConfig{
			BrokerURL: os.Getenv("MQTT_BROKER_URL"),
			Topic:     getenvDefault("MQTT_TOPIC", "fleetops/alerts"),
			ClientID:  getenvDefault("MQTT_CLIENT_ID", "fleetops-cloud"),
			Username:  os.Getenv("MQTT_USERNAME"),
			Password:  os.Getenv("MQTT_PASSWORD"),
			QoS:       getenvIntDefault("MQTT_QOS", 1),
		},
		AMQP: AMQPConfig{
			URL:        os.Getenv("AMQP_URL"),
			Exchange:   getenvDefault("AMQP_EXCHANGE", "fleetops.alerts"),
			RoutingKey: os.Getenv("AMQP_ROUTING_KEY"),
		},
	}

	if path := os.Getenv("ALERTING_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	window, err := time.ParseDuration(cfg.WindowRaw)
	if err != nil {
		return cfg, fmt.Errorf("alerting: invalid window %q: %w", cfg.WindowRaw, err)
	}
	if window <= 0 {
		return cfg, errors.New("alerting: window must be positive")
	}
	cfg.Window = window

	timeout, err := time.ParseDuration(cfg.TimeoutRaw)
	if err != nil {
		return cfg, fmt.Errorf("alerting: invalid notify timeout %q: %w", cfg.TimeoutRaw, err)
	}
	cfg.NotifyTimeout = timeout

	if cfg.Threshold < 1 {
		return cfg, errors.New("alerting: threshold must be at least 1")
	}
	if cfg.Namespace == "" {
		return cfg, errors.New("alerting: namespace required")
	}
	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		return cfg, fmt.Errorf("alerting: invalid mqtt qos %d", cfg.MQTT.QoS)
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
