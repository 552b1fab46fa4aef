package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/captain-yun7/facefalcon-sub000/config"
	fr "github.com/captain-yun7/facefalcon-sub000/internal/integrations/facerecognition"
)

// Config ist die Laufzeitkonfiguration des Routers. Sie wird nie verändert,
// sondern bei UpdateConfig als Kopie ersetzt.
type Config struct {
	Mode             fr.Mode         `json:"provider"`
	Primary          fr.ProviderType `json:"primaryProvider"`
	FallbackEnabled  bool            `json:"fallbackEnabled"`
	UseLocalForBatch bool            `json:"useLocalForBatch"`
	LocalTimeoutMS   int             `json:"localTimeoutMs"`
	BatchConcurrency int             `json:"batchConcurrency"`
}

// ConfigUpdate enthält die zu ändernden Felder. nil bedeutet unverändert.
type ConfigUpdate struct {
	Mode             *fr.Mode         `json:"provider,omitempty"`
	Primary          *fr.ProviderType `json:"primaryProvider,omitempty"`
	FallbackEnabled  *bool            `json:"fallbackEnabled,omitempty"`
	UseLocalForBatch *bool            `json:"useLocalForBatch,omitempty"`
	LocalTimeoutMS   *int             `json:"localTimeoutMs,omitempty"`
	BatchConcurrency *int             `json:"batchConcurrency,omitempty"`
}

// ConfigFromSettings übernimmt die Router-Einstellungen aus der Anwendungskonfiguration
func ConfigFromSettings(cfg *config.Config) Config {
	return Config{
		Mode:             fr.Mode(strings.ToLower(cfg.Provider.Mode)),
		Primary:          fr.ProviderType(strings.ToLower(cfg.Provider.Primary)),
		FallbackEnabled:  cfg.Provider.FallbackEnabled,
		UseLocalForBatch: cfg.Provider.UseLocalForBatch,
		LocalTimeoutMS:   cfg.InsightFace.TimeoutMS,
		BatchConcurrency: cfg.Provider.BatchConcurrency,
	}
}

// Validate prüft die Konfiguration
func (c Config) Validate() error {
	if !c.Mode.Valid() {
		return fmt.Errorf("invalid provider mode %q", c.Mode)
	}
	if !c.Primary.Valid() {
		return fmt.Errorf("invalid primary provider %q", c.Primary)
	}
	if c.LocalTimeoutMS <= 0 {
		return fmt.Errorf("local timeout must be positive, got %d", c.LocalTimeoutMS)
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("batch concurrency must be at least 1, got %d", c.BatchConcurrency)
	}
	return nil
}

// LocalTimeout gibt das Timeout für Aufrufe des lokalen Dienstes zurück
func (c Config) LocalTimeout() time.Duration {
	return time.Duration(c.LocalTimeoutMS) * time.Millisecond
}

// apply übernimmt die gesetzten Felder in eine Kopie
func (u ConfigUpdate) apply(c Config) Config {
	if u.Mode != nil {
		c.Mode = *u.Mode
	}
	if u.Primary != nil {
		c.Primary = *u.Primary
	}
	if u.FallbackEnabled != nil {
		c.FallbackEnabled = *u.FallbackEnabled
	}
	if u.UseLocalForBatch != nil {
		c.UseLocalForBatch = *u.UseLocalForBatch
	}
	if u.LocalTimeoutMS != nil {
		c.LocalTimeoutMS = *u.LocalTimeoutMS
	}
	if u.BatchConcurrency != nil {
		c.BatchConcurrency = *u.BatchConcurrency
	}
	return c
}
