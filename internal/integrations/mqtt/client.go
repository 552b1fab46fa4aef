package mqtt

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/captain-yun7/facefalcon-sub000/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

var logFields = log.Fields{
	"component": "mqtt",
}

const publishTimeout = 5 * time.Second

// MessageHandler verarbeitet Nachrichten eines abonnierten Topics
type MessageHandler func(topic string, payload []byte)

// Client ist der MQTT-Client für Statusmeldungen und Steuerbefehle
type Client struct {
	config      config.MQTTConfig
	client      mqtt.Client
	isConnected atomic.Bool
	handlers    map[string]MessageHandler
}

// NewClient erstellt einen neuen MQTT-Client
func NewClient(cfg config.MQTTConfig) *Client {
	return &Client{
		config:   cfg,
		handlers: make(map[string]MessageHandler),
	}
}

// Topic setzt ein Topic unterhalb des konfigurierten Präfixes zusammen
func (c *Client) Topic(suffix string) string {
	return c.config.TopicPrefix + "/" + suffix
}

// Subscribe registriert einen Handler. Abonniert wird beim (Wieder-)Verbinden.
func (c *Client) Subscribe(topic string, handler MessageHandler) {
	c.handlers[topic] = handler
	log.WithFields(logFields).Debugf("Registered MQTT handler for %s", topic)
}

// Start verbindet den Client mit dem Broker
func (c *Client) Start() error {
	if !c.config.Enabled {
		log.WithFields(logFields).Info("MQTT client is disabled in configuration")
		return nil
	}

	opts := mqtt.NewClientOptions()

	brokerURL := fmt.Sprintf("tcp://%s:%d", c.config.Broker, c.config.Port)
	opts.AddBroker(brokerURL)
	opts.SetClientID(c.config.ClientID)

	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
		opts.SetPassword(c.config.Password)
	}

	// Bei Verbindungsabbruch meldet der Broker den Dienst als offline
	opts.SetWill(c.Topic("availability"), "offline", 1, true)

	opts.SetOnConnectHandler(c.onConnectHandler)
	opts.SetConnectionLostHandler(c.connectionLostHandler)

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	c.client = mqtt.NewClient(opts)

	log.WithFields(logFields).Infof("Connecting to MQTT broker at %s", brokerURL)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		log.WithFields(logFields).Errorf("Failed to connect to MQTT broker: %v", token.Error())
		return token.Error()
	}

	log.WithFields(logFields).Info("MQTT client connected successfully")
	return nil
}

// Stop meldet den Dienst offline und trennt die Verbindung
func (c *Client) Stop() {
	if c.client != nil && c.client.IsConnected() {
		log.WithFields(logFields).Info("Disconnecting MQTT client...")
		if err := c.PublishMessage(c.Topic("availability"), "offline", true); err != nil {
			log.WithFields(logFields).Warnf("Failed to publish offline state: %v", err)
		}
		c.client.Disconnect(250)
		c.isConnected.Store(false)
		log.WithFields(logFields).Info("MQTT client disconnected")
	}
}

// IsConnected prüft, ob der Client verbunden ist
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

func (c *Client) onConnectHandler(client mqtt.Client) {
	log.WithFields(logFields).Infof("Connected to MQTT broker at %s:%d", c.config.Broker, c.config.Port)
	c.isConnected.Store(true)

	if token := client.Publish(c.Topic("availability"), 1, true, "online"); token.Wait() && token.Error() != nil {
		log.WithFields(logFields).Errorf("Failed to publish availability: %v", token.Error())
	}

	for topic, handler := range c.handlers {
		h := handler
		token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			log.WithFields(logFields).Debugf("Received MQTT message on topic: %s", msg.Topic())
			h(msg.Topic(), msg.Payload())
		})
		if token.Wait() && token.Error() != nil {
			log.WithFields(logFields).Errorf("Failed to subscribe to topic %s: %v", topic, token.Error())
		} else {
			log.WithFields(logFields).Infof("Successfully subscribed to topic: %s", topic)
		}
	}
}

func (c *Client) connectionLostHandler(client mqtt.Client, err error) {
	log.WithFields(logFields).Errorf("MQTT connection lost: %v", err)
	c.isConnected.Store(false)
}

// PublishMessage veröffentlicht eine Nachricht an ein MQTT-Topic
func (c *Client) PublishMessage(topic string, payload any, retain bool) error {
	if !c.IsConnected() {
		return fmt.Errorf("MQTT client is not connected")
	}

	payloadBytes, err := encodePayload(payload)
	if err != nil {
		return err
	}

	// Während eines Reconnects bleibt ein QoS-1-Token offen, bis der Broker zurück ist
	token := c.client.Publish(topic, 1, retain, payloadBytes)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timed out publishing to topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}

	log.WithFields(logFields).Debugf("Published message to topic: %s", topic)
	return nil
}

func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	case int, int64, float64, bool:
		return []byte(fmt.Sprintf("%v", p)), nil
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload to JSON: %w", err)
		}
		return b, nil
	}
}
