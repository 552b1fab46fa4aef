package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config repräsentiert die Hauptkonfiguration der Anwendung
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Provider    ProviderConfig    `mapstructure:"provider"`
	InsightFace InsightFaceConfig `mapstructure:"insightface"`
	Rekognition RekognitionConfig `mapstructure:"rekognition"`
	MQTT        MQTTConfig        `mapstructure:"mqtt"`
	I18n        I18nConfig        `mapstructure:"i18n"`
}

// ServerConfig enthält Server-bezogene Einstellungen
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	SessionSecret  string   `mapstructure:"session_secret"`
	MaxBodyMB      int      `mapstructure:"max_body_mb"`
}

// LogConfig enthält Log-Einstellungen
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text oder json
	File   string `mapstructure:"file"`
}

// ProviderConfig steuert die Auswahl zwischen Cloud- und lokalem Dienst
type ProviderConfig struct {
	Mode             string  `mapstructure:"mode"`              // cloud, local oder hybrid
	Primary          string  `mapstructure:"primary"`           // cloud oder local (nur hybrid)
	FallbackEnabled  bool    `mapstructure:"fallback_enabled"`  // bei Fehlern des lokalen Dienstes auf Cloud ausweichen
	UseLocalForBatch bool    `mapstructure:"use_local_for_batch"`
	BatchConcurrency int     `mapstructure:"batch_concurrency"` // parallele Vergleiche im Batch, 1 = sequentiell
	MatchEpsilon     float64 `mapstructure:"match_epsilon"`     // Toleranz für die Zuordnung ungematchter Gesichter
}

// InsightFaceConfig enthält die Einstellungen für den lokalen Inferenzdienst
type InsightFaceConfig struct {
	URL       string `mapstructure:"url"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// Timeout gibt das Zeitlimit für Anfragen an den lokalen Dienst zurück
func (c InsightFaceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// RekognitionConfig enthält die AWS-Einstellungen für den Cloud-Dienst
type RekognitionConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// HasCredentials prüft nur, ob Zugangsdaten konfiguriert sind (keine Netzwerkprüfung)
func (c RekognitionConfig) HasCredentials() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// MQTTConfig enthält die Konfiguration für den MQTT-Client
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	Discovery   bool   `mapstructure:"homeassistant_discovery"` // Sensoren bei Home Assistant anmelden
}

// I18nConfig enthält die Spracheinstellungen
type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
}

// Load lädt die Konfiguration aus Datei, Umgebungsvariablen und Standardwerten
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Standardwerte festlegen
	setDefaults(v)

	// Konfigurationsdatei laden, wenn vorhanden
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	// Umgebungsvariablen überlagern die Konfiguration
	v.SetEnvPrefix("FACEFALCON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// AWS-Standardvariablen gelten, wenn nichts Eigenes gesetzt ist
	if cfg.Rekognition.AccessKeyID == "" {
		cfg.Rekognition.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if cfg.Rekognition.SecretAccessKey == "" {
		cfg.Rekognition.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// Validate prüft die Provider-Einstellungen
func (c *Config) Validate() error {
	c.Provider.Mode = strings.ToLower(c.Provider.Mode)
	c.Provider.Primary = strings.ToLower(c.Provider.Primary)
	c.Log.Level = strings.ToLower(c.Log.Level)

	switch c.Provider.Mode {
	case "cloud", "local", "hybrid":
	default:
		return fmt.Errorf("invalid provider mode %q (expected cloud, local or hybrid)", c.Provider.Mode)
	}
	switch c.Provider.Primary {
	case "cloud", "local":
	default:
		return fmt.Errorf("invalid primary provider %q (expected cloud or local)", c.Provider.Primary)
	}
	if c.Provider.BatchConcurrency < 1 {
		c.Provider.BatchConcurrency = 1
	}
	if c.InsightFace.TimeoutMS <= 0 {
		return fmt.Errorf("insightface.timeout_ms must be positive, got %d", c.InsightFace.TimeoutMS)
	}
	return nil
}

// setDefaults legt Standardwerte für die Konfiguration fest
func setDefaults(v *viper.Viper) {
	// Server-Standardwerte
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.session_secret", "facefalcon-dev-secret")
	v.SetDefault("server.max_body_mb", 20)

	// Log-Standardwerte
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	// Provider-Standardwerte
	v.SetDefault("provider.mode", "hybrid")
	v.SetDefault("provider.primary", "local")
	v.SetDefault("provider.fallback_enabled", true)
	v.SetDefault("provider.use_local_for_batch", true)
	v.SetDefault("provider.batch_concurrency", 1)
	v.SetDefault("provider.match_epsilon", 0.01)

	// InsightFace-Standardwerte
	v.SetDefault("insightface.url", "http://localhost:8000")
	v.SetDefault("insightface.timeout_ms", 30000)

	// Rekognition-Standardwerte
	v.SetDefault("rekognition.region", "us-east-1")
	v.SetDefault("rekognition.access_key_id", "")
	v.SetDefault("rekognition.secret_access_key", "")

	// MQTT-Standardwerte
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "facefalcon")
	v.SetDefault("mqtt.topic_prefix", "facefalcon")
	v.SetDefault("mqtt.homeassistant_discovery", true)

	// Sprach-Standardwerte
	v.SetDefault("i18n.default_language", "ko")
	v.SetDefault("i18n.languages", []string{"ko", "en"})
}

// ensureDirectories stellt sicher, dass alle erforderlichen Verzeichnisse existieren
func ensureDirectories(cfg *Config) error {
	if cfg.Log.File != "" {
		logDir := filepath.Dir(cfg.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	return nil
}
