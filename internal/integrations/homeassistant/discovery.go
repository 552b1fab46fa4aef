package homeassistant

import (
	"errors"
	"fmt"

	"github.com/captain-yun7/facefalcon-sub000/config"

	log "github.com/sirupsen/logrus"
)

// Konstanten für Home Assistant MQTT Discovery
const (
	// Discovery-Präfix für Home Assistant (Standard ist "homeassistant")
	DiscoveryPrefix = "homeassistant"

	ComponentBinarySensor = "binary_sensor"
	ComponentSensor       = "sensor"
)

var logFields = log.Fields{
	"component": "homeassistant",
}

// SensorConfig repräsentiert die MQTT-Discovery-Konfiguration einer Entität
type SensorConfig struct {
	Name                string  `json:"name"`
	UniqueID            string  `json:"unique_id"`
	StateTopic          string  `json:"state_topic"`
	Icon                string  `json:"icon,omitempty"`
	DeviceClass         string  `json:"device_class,omitempty"`
	ValueTemplate       string  `json:"value_template,omitempty"`
	PayloadOn           string  `json:"payload_on,omitempty"`
	PayloadOff          string  `json:"payload_off,omitempty"`
	AvailabilityTopic   string  `json:"availability_topic,omitempty"`
	PayloadAvailable    string  `json:"payload_available,omitempty"`
	PayloadNotAvailable string  `json:"payload_not_available,omitempty"`
	Device              *Device `json:"device,omitempty"`
}

// Device repräsentiert die Geräteinformationen für Home Assistant
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// retainPublisher ist der Teil des MQTT-Clients, den die Discovery braucht
type retainPublisher interface {
	PublishMessage(topic string, payload any, retain bool) error
}

// DiscoveryManager meldet die Dienst-Sensoren bei Home Assistant an
type DiscoveryManager struct {
	client retainPublisher
	cfg    config.MQTTConfig
}

// NewDiscoveryManager erstellt einen neuen Manager für Home Assistant Discovery
func NewDiscoveryManager(client retainPublisher, cfg config.MQTTConfig) *DiscoveryManager {
	return &DiscoveryManager{client: client, cfg: cfg}
}

// Register veröffentlicht die Discovery-Konfiguration für Cloud- und lokalen Dienst sowie den Modus.
// Die Zustände stammen aus dem Status-Topic des Routers.
func (dm *DiscoveryManager) Register() error {
	var errs []error
	for _, e := range dm.entities() {
		topic := fmt.Sprintf("%s/%s/%s/%s/config", DiscoveryPrefix, e.component, dm.nodeID(), e.objectID)
		log.WithFields(logFields).Debugf("Registering Home Assistant entity %s", e.config.UniqueID)
		if err := dm.client.PublishMessage(topic, e.config, true); err != nil {
			errs = append(errs, fmt.Errorf("failed to publish discovery for %s: %w", e.objectID, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	log.WithFields(logFields).Info("Home Assistant discovery published")
	return nil
}

type entity struct {
	component string
	objectID  string
	config    SensorConfig
}

func (dm *DiscoveryManager) nodeID() string {
	return dm.cfg.ClientID
}

func (dm *DiscoveryManager) entities() []entity {
	prefix := dm.cfg.TopicPrefix
	device := &Device{
		Identifiers:  []string{dm.nodeID()},
		Name:         "FaceFalcon",
		Manufacturer: "FaceFalcon",
		Model:        "Face analysis router",
	}
	base := func(name, objectID string) SensorConfig {
		return SensorConfig{
			Name:                name,
			UniqueID:            dm.nodeID() + "_" + objectID,
			StateTopic:          prefix + "/status",
			AvailabilityTopic:   prefix + "/availability",
			PayloadAvailable:    "online",
			PayloadNotAvailable: "offline",
			Device:              device,
		}
	}

	providerSensor := func(name, objectID, field string) entity {
		c := base(name, objectID)
		c.DeviceClass = "connectivity"
		c.ValueTemplate = fmt.Sprintf("{{ 'ON' if value_json.%s.available else 'OFF' }}", field)
		c.PayloadOn = "ON"
		c.PayloadOff = "OFF"
		return entity{component: ComponentBinarySensor, objectID: objectID, config: c}
	}

	mode := base("Provider mode", "provider_mode")
	mode.ValueTemplate = "{{ value_json.current }}"
	mode.Icon = "mdi:face-recognition"

	return []entity{
		providerSensor("Cloud provider", "cloud_provider", "cloud"),
		providerSensor("Local provider", "local_provider", "local"),
		{component: ComponentSensor, objectID: "provider_mode", config: mode},
	}
}
