package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/runnerr0/chargebook/internal/config"
	"github.com/runnerr0/chargebook/internal/log"
	"github.com/runnerr0/chargebook/internal/stats"
)

const (
	qos          = 1
	publishWait  = 10 * time.Second
	disconnectMs = 250
)

// Publisher pushes aggregates to an MQTT broker as retained messages, so a
// dashboard subscribing later still gets the latest values.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	log         *log.Logger
}

// New connects to the broker described by cfg.
func New(cfg config.MQTTConfig, logger *log.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("MQTT publishing is not enabled in config")
	}
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "chargebook"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return newPublisher(client, cfg.TopicPrefix, logger), nil
}

func newPublisher(client mqtt.Client, prefix string, logger *log.Logger) *Publisher {
	if prefix == "" {
		prefix = "chargebook"
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Publisher{
		client:      client,
		topicPrefix: prefix,
		log:         logger.WithComponent(log.ComponentPublisher),
	}
}

// SummaryTopic is where the whole-history summary is published.
func (p *Publisher) SummaryTopic() string { return p.topicPrefix + "/summary" }

// MonthlyTopic is where the monthly series is published.
func (p *Publisher) MonthlyTopic() string { return p.topicPrefix + "/monthly" }

// Publish sends the summary and the series, in that order.
func (p *Publisher) Publish(snap Snapshot) error {
	summary, err := json.Marshal(SummaryPayload{Summary: snap.Summary, Currency: snap.Currency, UpdatedAt: snap.At.UTC()})
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	monthly, err := json.Marshal(MonthlyPayload{Months: snap.Series, Currency: snap.Currency, UpdatedAt: snap.At.UTC()})
	if err != nil {
		return fmt.Errorf("encoding monthly series: %w", err)
	}

	if err := p.send(p.SummaryTopic(), summary); err != nil {
		return err
	}
	return p.send(p.MonthlyTopic(), monthly)
}

func (p *Publisher) send(topic string, payload []byte) error {
	token := p.client.Publish(topic, qos, true, payload)
	if !token.WaitTimeout(publishWait) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		p.log.Error("Publish failed", log.FieldTopic, topic, log.FieldError, err)
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	p.log.Debug("Published", log.FieldOperation, log.OpPublish, log.FieldTopic, topic, log.FieldBytes, len(payload))
	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(disconnectMs)
	}
}

// Snapshot is everything one Publish call sends.
type Snapshot struct {
	Summary  stats.Summary
	Series   []stats.MonthlyBucket
	Currency string
	At       time.Time
}

// SummaryPayload is the JSON body on the summary topic.
type SummaryPayload struct {
	stats.Summary
	Currency  string    `json:"currency"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MonthlyPayload is the JSON body on the monthly topic.
type MonthlyPayload struct {
	Months    []stats.MonthlyBucket `json:"months"`
	Currency  string                `json:"currency"`
	UpdatedAt time.Time             `json:"updatedAt"`
}
