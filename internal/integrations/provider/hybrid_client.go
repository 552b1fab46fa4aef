package provider

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	fr "github.com/captain-yun7/facefalcon-sub000/internal/integrations/facerecognition"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var logFields = log.Fields{
	"component": "provider",
}

// FallbackEvent beschreibt einen Wechsel auf den Ersatzdienst
type FallbackEvent struct {
	Operation fr.Operation    `json:"operation"`
	From      fr.ProviderType `json:"from"`
	To        fr.ProviderType `json:"to"`
	Reason    string          `json:"reason"`
	Time      time.Time       `json:"time"`
}

// EventSink empfängt Router-Ereignisse, z.B. für MQTT
type EventSink interface {
	PublishFallback(event FallbackEvent)
	PublishStatus(status fr.HealthStatus)
}

// Sinks verteilt Ereignisse an mehrere Empfänger
type Sinks []EventSink

func (s Sinks) PublishFallback(event FallbackEvent) {
	for _, sink := range s {
		sink.PublishFallback(event)
	}
}

func (s Sinks) PublishStatus(status fr.HealthStatus) {
	for _, sink := range s {
		sink.PublishStatus(status)
	}
}

// HybridClient ist der einzige Einstiegspunkt für Gesichtsanalysen.
// Er wählt pro Aufruf einen Dienst und weicht bei Fehlern einmalig auf die Cloud aus.
type HybridClient struct {
	cloud fr.Backend
	local fr.Backend

	cfg    atomic.Pointer[Config]
	events atomic.Pointer[sinkHolder]
}

// sinkHolder erlaubt das atomare Austauschen eines EventSink beliebigen Typs
type sinkHolder struct {
	sink EventSink
}

// NewHybridClient erstellt einen Router. cloud oder local dürfen nil sein und gelten dann als nicht verfügbar.
func NewHybridClient(cfg Config, cloud, local fr.Backend) (*HybridClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &HybridClient{cloud: cloud, local: local}
	c.cfg.Store(&cfg)
	return c, nil
}

// SetEventSink registriert einen Empfänger für Fallback- und Statusereignisse.
// Darf auch während laufender Anfragen aufgerufen werden; nil entfernt den Empfänger.
func (c *HybridClient) SetEventSink(sink EventSink) {
	if sink == nil {
		c.events.Store(nil)
		return
	}
	c.events.Store(&sinkHolder{sink: sink})
}

func (c *HybridClient) eventSink() EventSink {
	if h := c.events.Load(); h != nil {
		return h.sink
	}
	return nil
}

// GetConfig gibt eine Kopie der aktuellen Konfiguration zurück
func (c *HybridClient) GetConfig() Config {
	return *c.cfg.Load()
}

// UpdateConfig übernimmt die gesetzten Felder. Laufende Aufrufe behalten ihre Konfiguration.
func (c *HybridClient) UpdateConfig(update ConfigUpdate) fr.Result[Config] {
	for {
		current := c.cfg.Load()
		next := update.apply(*current)
		if err := next.Validate(); err != nil {
			return fr.Fail[Config](err)
		}
		if c.cfg.CompareAndSwap(current, &next) {
			log.WithFields(logFields).Infof("Provider config updated: mode=%s primary=%s fallback=%t batch_local=%t",
				next.Mode, next.Primary, next.FallbackEnabled, next.UseLocalForBatch)
			return fr.Ok(next)
		}
	}
}

// GetProvider gibt den Dienst mit dem angegebenen Namen zurück
func (c *HybridClient) GetProvider(name fr.ProviderType) (fr.Backend, bool) {
	var b fr.Backend
	switch name {
	case fr.ProviderCloud:
		b = c.cloud
	case fr.ProviderLocal:
		b = c.local
	}
	return b, b != nil
}

// SelectProvider wählt den Dienst für eine Operation.
// Die Cloud wird nie live geprüft, der lokale Dienst immer.
func (c *HybridClient) SelectProvider(ctx context.Context, op fr.Operation, isBatch bool) (fr.ProviderType, error) {
	return c.selectProvider(ctx, c.cfg.Load(), op, isBatch)
}

func (c *HybridClient) selectProvider(ctx context.Context, cfg *Config, op fr.Operation, isBatch bool) (fr.ProviderType, error) {
	if isBatch && cfg.UseLocalForBatch && c.localHealthy(ctx) {
		return fr.ProviderLocal, nil
	}

	switch cfg.Mode {
	case fr.ModeCloud:
		return fr.ProviderCloud, nil
	case fr.ModeLocal:
		return c.localOrFallback(ctx, cfg, op)
	case fr.ModeHybrid:
		if cfg.Primary == fr.ProviderLocal {
			return c.localOrFallback(ctx, cfg, op)
		}
		return fr.ProviderCloud, nil
	}
	return fr.ProviderCloud, nil
}

func (c *HybridClient) localOrFallback(ctx context.Context, cfg *Config, op fr.Operation) (fr.ProviderType, error) {
	if c.localHealthy(ctx) {
		return fr.ProviderLocal, nil
	}
	if cfg.FallbackEnabled {
		log.WithFields(logFields).Warnf("Local provider unhealthy, using cloud for %s", op)
		c.publishFallback(op, fr.ProviderLocal, fr.ProviderCloud, "local provider unhealthy")
		return fr.ProviderCloud, nil
	}
	return "", fr.NewError(fr.KindProviderUnavailable, fr.ProviderLocal, op, errors.New("local provider unhealthy and fallback disabled"))
}

func (c *HybridClient) localHealthy(ctx context.Context) bool {
	return c.local != nil && c.local.IsHealthy(ctx)
}

// backend liefert den gewählten Dienst oder ProviderUnavailable, falls er nicht eingerichtet ist
func (c *HybridClient) backend(name fr.ProviderType, op fr.Operation) (fr.Backend, error) {
	b, ok := c.GetProvider(name)
	if !ok {
		return nil, fr.NewError(fr.KindProviderUnavailable, name, op, fmt.Errorf("%s provider not configured", name))
	}
	return b, nil
}

// withBackend führt call gegen den gewählten Dienst aus. Scheitert der lokale Dienst und
// ist der Fallback aktiv, wird call genau einmal gegen die Cloud wiederholt.
func withBackend[T any](ctx context.Context, c *HybridClient, op fr.Operation, isBatch bool,
	call func(ctx context.Context, b fr.Backend) (T, error)) (T, fr.ProviderType, error) {
	var zero T
	cfg := c.cfg.Load()

	selected, err := c.selectProvider(ctx, cfg, op, isBatch)
	if err != nil {
		return zero, "", err
	}
	b, err := c.backend(selected, op)
	if err != nil {
		return zero, selected, err
	}

	res, err := invoke(ctx, cfg, op, b, call)
	if err == nil {
		return res, selected, nil
	}
	err = fr.Classify(err, selected, op)

	if selected != fr.ProviderLocal || !cfg.FallbackEnabled || ctx.Err() != nil || c.cloud == nil {
		return zero, selected, err
	}

	log.WithFields(logFields).Warnf("Local %s failed, retrying with cloud: %v", op, err)
	c.publishFallback(op, fr.ProviderLocal, fr.ProviderCloud, err.Error())

	res, cloudErr := invoke(ctx, cfg, op, c.cloud, call)
	if cloudErr != nil {
		return zero, fr.ProviderCloud, fr.Classify(cloudErr, fr.ProviderCloud, op)
	}
	return res, fr.ProviderCloud, nil
}

// invoke begrenzt Aufrufe des lokalen Dienstes auf das konfigurierte Timeout.
// FindSimilarFaces besteht aus mehreren Aufrufen und begrenzt jeden Einzelvergleich selbst.
func invoke[T any](ctx context.Context, cfg *Config, op fr.Operation, b fr.Backend,
	call func(context.Context, fr.Backend) (T, error)) (T, error) {
	if b.Name() == fr.ProviderLocal && op != fr.OpFindSimilarFaces {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.LocalTimeout())
		defer cancel()
	}
	return call(ctx, b)
}

// CompareFaces vergleicht zwei Bilder. threshold liegt auf der Skala 0-100.
func (c *HybridClient) CompareFaces(ctx context.Context, source, target []byte, threshold float64) fr.Result[*fr.FaceComparisonResult] {
	res, provider, err := withBackend(ctx, c, fr.OpCompareFaces, false,
		func(ctx context.Context, b fr.Backend) (*fr.FaceComparisonResult, error) {
			return b.CompareFaces(ctx, source, target, threshold)
		})
	if err != nil {
		log.WithFields(logFields).Errorf("CompareFaces failed: %v", err)
		return fr.Fail[*fr.FaceComparisonResult](err)
	}
	log.WithFields(logFields).Debugf("CompareFaces served by %s", provider)
	return fr.Ok(res)
}

// DetectFaces erkennt Gesichter in einem Bild
func (c *HybridClient) DetectFaces(ctx context.Context, image []byte) fr.Result[[]fr.FaceDetails] {
	res, provider, err := withBackend(ctx, c, fr.OpDetectFaces, false,
		func(ctx context.Context, b fr.Backend) ([]fr.FaceDetails, error) {
			return b.DetectFaces(ctx, image)
		})
	if err != nil {
		log.WithFields(logFields).Errorf("DetectFaces failed: %v", err)
		return fr.Fail[[]fr.FaceDetails](err)
	}
	log.WithFields(logFields).Debugf("DetectFaces served by %s, %d faces", provider, len(res))
	return fr.Ok(res)
}

// CompareFamilyFaces vergleicht Eltern- und Kindergesicht. Nur der lokale Dienst unterstützt das,
// einen Fallback gibt es nicht.
func (c *HybridClient) CompareFamilyFaces(ctx context.Context, parent, child []byte, parentAge, childAge *int) fr.Result[*fr.FamilySimilarity] {
	op := fr.OpCompareFamilyFaces
	cfg := c.cfg.Load()

	selected, err := c.selectProvider(ctx, cfg, op, false)
	if err != nil {
		return fr.Fail[*fr.FamilySimilarity](err)
	}
	b, err := c.backend(selected, op)
	if err != nil {
		return fr.Fail[*fr.FamilySimilarity](err)
	}
	fc, ok := b.(fr.FamilyComparer)
	if !ok {
		return fr.Fail[*fr.FamilySimilarity](fr.NewError(fr.KindUnsupportedOperation, selected, op,
			fmt.Errorf("family comparison is not supported by the %s provider", selected)))
	}

	res, err := invoke(ctx, cfg, op, b, func(ctx context.Context, _ fr.Backend) (*fr.FamilySimilarity, error) {
		return fc.CompareFamilyFaces(ctx, parent, child, parentAge, childAge)
	})
	if err != nil {
		return fr.Fail[*fr.FamilySimilarity](fr.Classify(err, selected, op))
	}
	return fr.Ok(res)
}

// GetProviderStatus prüft beide Dienste parallel. Das Ergebnis wird nicht zwischengespeichert.
func (c *HybridClient) GetProviderStatus(ctx context.Context) fr.Result[fr.HealthStatus] {
	status := fr.HealthStatus{Current: c.cfg.Load().Mode}

	var g errgroup.Group
	g.Go(func() error {
		status.Cloud = checkHealth(ctx, c.cloud)
		return nil
	})
	g.Go(func() error {
		status.Local = checkHealth(ctx, c.local)
		return nil
	})
	_ = g.Wait()

	if sink := c.eventSink(); sink != nil {
		sink.PublishStatus(status)
	}
	return fr.Ok(status)
}

func checkHealth(ctx context.Context, b fr.Backend) fr.ProviderHealth {
	if b == nil {
		return fr.ProviderHealth{Available: false, Error: "not configured"}
	}
	if hc, ok := b.(fr.HealthChecker); ok {
		if err := hc.CheckHealth(ctx); err != nil {
			return fr.ProviderHealth{Available: false, Error: err.Error()}
		}
		return fr.ProviderHealth{Available: true}
	}
	if !b.IsHealthy(ctx) {
		return fr.ProviderHealth{Available: false, Error: "unavailable"}
	}
	return fr.ProviderHealth{Available: true}
}

func (c *HybridClient) publishFallback(op fr.Operation, from, to fr.ProviderType, reason string) {
	sink := c.eventSink()
	if sink == nil {
		return
	}
	sink.PublishFallback(FallbackEvent{
		Operation: op,
		From:      from,
		To:        to,
		Reason:    reason,
		Time:      time.Now(),
	})
}
