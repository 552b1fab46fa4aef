package insightface

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/captain-yun7/facefalcon-sub000/config"
	fr "github.com/captain-yun7/facefalcon-sub000/internal/integrations/facerecognition"

	log "github.com/sirupsen/logrus"
)

// Service implementiert das facerecognition.Backend-Interface für InsightFace
type Service struct {
	client       *APIClient
	matchEpsilon float64
}

// NewService erstellt einen neuen InsightFace-Service
func NewService(cfg config.InsightFaceConfig, matchEpsilon float64) *Service {
	return NewServiceWithClient(NewAPIClient(cfg), matchEpsilon)
}

// NewServiceWithClient erstellt einen Service mit vorhandenem APIClient
func NewServiceWithClient(client *APIClient, matchEpsilon float64) *Service {
	if matchEpsilon <= 0 {
		matchEpsilon = DefaultMatchEpsilon
	}
	return &Service{client: client, matchEpsilon: matchEpsilon}
}

// Name gibt den Namen des Providers zurück
func (s *Service) Name() fr.ProviderType {
	return fr.ProviderLocal
}

// CheckHealth prüft live, ob der Dienst läuft und das Modell geladen ist
func (s *Service) CheckHealth(ctx context.Context) error {
	health, err := s.client.Health(ctx)
	if err != nil {
		return err
	}
	if health.Status != "healthy" && health.Status != "ok" {
		return fmt.Errorf("service status is %q", health.Status)
	}
	if !health.ModelLoaded {
		return errors.New("model not loaded")
	}
	return nil
}

// IsHealthy prüft, ob der InsightFace-Dienst verfügbar ist
func (s *Service) IsHealthy(ctx context.Context) bool {
	if err := s.CheckHealth(ctx); err != nil {
		log.WithFields(logFields).Debugf("InsightFace health check failed: %v", err)
		return false
	}
	return true
}

// CompareFaces vergleicht zwei Bilder. threshold liegt auf der Cloud-Skala 0-100.
func (s *Service) CompareFaces(ctx context.Context, source, target []byte, threshold float64) (*fr.FaceComparisonResult, error) {
	startTime := time.Now()

	data, err := s.client.CompareFaces(ctx, source, target, fr.ThresholdToLocalScale(threshold))
	if err != nil {
		return nil, err
	}

	fr.ValidateResponseData(&data.Similarity, fr.ProviderLocal)

	result := NormalizeFaceComparison(data, s.matchEpsilon)
	log.WithFields(logFields).Debugf("Compared faces in %s: similarity %.2f, %d matches, %d unmatched",
		time.Since(startTime), result.Similarity, len(result.FaceMatches), len(result.UnmatchedFaces))
	return result, nil
}

// DetectFaces erkennt Gesichter in einem Bild
func (s *Service) DetectFaces(ctx context.Context, image []byte) ([]fr.FaceDetails, error) {
	data, err := s.client.DetectFaces(ctx, image)
	if err != nil {
		return nil, err
	}
	return NormalizeFaceDetection(data.Faces), nil
}

// CompareFamilyFaces vergleicht Eltern- und Kindergesicht (nur lokal verfügbar)
func (s *Service) CompareFamilyFaces(ctx context.Context, parent, child []byte, parentAge, childAge *int) (*fr.FamilySimilarity, error) {
	data, err := s.client.CompareFamilyFaces(ctx, parent, child, parentAge, childAge)
	if err != nil {
		return nil, err
	}
	fr.ValidateResponseData(&data.Similarity, fr.ProviderLocal)
	return NormalizeFamilySimilarity(data), nil
}

// ExtractEmbedding liefert den rohen Gesichtsvektor
func (s *Service) ExtractEmbedding(ctx context.Context, image []byte) (*EmbeddingData, error) {
	return s.client.ExtractEmbedding(ctx, image)
}

var (
	_ fr.Backend        = (*Service)(nil)
	_ fr.FamilyComparer = (*Service)(nil)
	_ fr.HealthChecker  = (*Service)(nil)
)
