package mqtt

import (
	"encoding/json"
	"sync"

	fr "github.com/captain-yun7/facefalcon-sub000/internal/integrations/facerecognition"
	"github.com/captain-yun7/facefalcon-sub000/internal/integrations/provider"

	log "github.com/sirupsen/logrus"
)

// messagePublisher ist der Teil des Clients, den der Publisher braucht
type messagePublisher interface {
	PublishMessage(topic string, payload any, retain bool) error
	IsConnected() bool
}

// ConfigUpdater übernimmt Konfigurationsänderungen aus dem Steuer-Topic
type ConfigUpdater interface {
	UpdateConfig(update provider.ConfigUpdate) fr.Result[provider.Config]
}

// publishQueueSize begrenzt die wartenden Nachrichten, weitere werden verworfen
const publishQueueSize = 100

type outgoing struct {
	topic   string
	payload any
	retain  bool
}

// Publisher veröffentlicht Router-Ereignisse und implementiert provider.EventSink.
// Gesendet wird in einer eigenen Goroutine, damit Anfragen nie auf den Broker warten.
type Publisher struct {
	client        messagePublisher
	statusTopic   string
	fallbackTopic string

	queue    chan outgoing
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewPublisher erstellt einen Publisher für die Topics unterhalb des Präfixes
func NewPublisher(client *Client) *Publisher {
	return newPublisher(client, client.config.TopicPrefix)
}

func newPublisher(client messagePublisher, prefix string) *Publisher {
	p := &Publisher{
		client:        client,
		statusTopic:   prefix + "/status",
		fallbackTopic: prefix + "/fallback",
		queue:         make(chan outgoing, publishQueueSize),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go p.run()
	return p
}

// Close sendet noch wartende Nachrichten und beendet die Sende-Goroutine
func (p *Publisher) Close() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

// PublishStatus veröffentlicht den Gesundheitszustand als Retained-Nachricht
func (p *Publisher) PublishStatus(status fr.HealthStatus) {
	p.publish(p.statusTopic, status, true)
}

// PublishFallback veröffentlicht einen Wechsel auf den Ersatzdienst
func (p *Publisher) PublishFallback(event provider.FallbackEvent) {
	p.publish(p.fallbackTopic, event, false)
}

func (p *Publisher) publish(topic string, payload any, retain bool) {
	select {
	case <-p.stop:
		return
	default:
	}
	select {
	case p.queue <- outgoing{topic: topic, payload: payload, retain: retain}:
	default:
		log.WithFields(logFields).Warnf("MQTT publish queue full, dropping message for %s", topic)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for {
		select {
		case msg := <-p.queue:
			p.send(msg)
		case <-p.stop:
			for {
				select {
				case msg := <-p.queue:
					p.send(msg)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) send(msg outgoing) {
	if !p.client.IsConnected() {
		return
	}
	if err := p.client.PublishMessage(msg.topic, msg.payload, msg.retain); err != nil {
		log.WithFields(logFields).Warnf("Failed to publish to %s: %v", msg.topic, err)
	}
}

// ConfigHandler liefert einen Handler für das Steuer-Topic <prefix>/config/set
func ConfigHandler(updater ConfigUpdater) MessageHandler {
	return func(topic string, payload []byte) {
		var update provider.ConfigUpdate
		if err := json.Unmarshal(payload, &update); err != nil {
			log.WithFields(logFields).Errorf("Invalid config update on %s: %v", topic, err)
			return
		}
		res := updater.UpdateConfig(update)
		if !res.Success {
			log.WithFields(logFields).Errorf("Config update from %s rejected: %s", topic, res.Error.Message)
			return
		}
		log.WithFields(logFields).Infof("Config updated via MQTT: mode=%s", res.Data.Mode)
	}
}

var _ provider.EventSink = (*Publisher)(nil)
