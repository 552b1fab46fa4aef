package rekognition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/captain-yun7/facefalcon-sub000/config"
	fr "github.com/captain-yun7/facefalcon-sub000/internal/integrations/facerecognition"

	log "github.com/sirupsen/logrus"
)

var logFields = log.Fields{
	"component": "rekognition",
}

// API ist der Teil des Rekognition-Clients, den wir verwenden
type API interface {
	CompareFaces(ctx context.Context, params *rekognition.CompareFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.CompareFacesOutput, error)
	DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
}

// Service implementiert das facerecognition.Backend-Interface für AWS Rekognition
type Service struct {
	api            API
	hasCredentials bool
}

// NewService lädt die AWS-Konfiguration und erstellt den Rekognition-Client.
// Statische Zugangsdaten aus der Konfiguration haben Vorrang vor der AWS-Standardkette.
// Ob Zugangsdaten vorhanden sind, wird einmalig beim Erstellen ermittelt.
func NewService(ctx context.Context, cfg config.RekognitionConfig) (*Service, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.HasCredentials() {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	hasCredentials := credentialsAvailable(ctx, awsCfg.Credentials)
	log.WithFields(logFields).Infof("Rekognition client initialized (region %s, credentials available: %t)", cfg.Region, hasCredentials)
	return NewServiceWithAPI(rekognition.NewFromConfig(awsCfg), hasCredentials), nil
}

// credentialRetrieveTimeout begrenzt die Abfrage von Profil, SSO oder Instanz-Rolle beim Start
const credentialRetrieveTimeout = 5 * time.Second

// credentialsAvailable prüft, ob die AWS-Standardkette (statisch, Umgebung, Profil, IAM-Rolle)
// Zugangsdaten liefert. Rekognition selbst wird dabei nicht aufgerufen.
func credentialsAvailable(ctx context.Context, provider aws.CredentialsProvider) bool {
	if provider == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, credentialRetrieveTimeout)
	defer cancel()
	creds, err := provider.Retrieve(ctx)
	if err != nil {
		log.WithFields(logFields).Debugf("No AWS credentials resolved: %v", err)
		return false
	}
	return creds.HasKeys()
}

// NewServiceWithAPI erstellt einen Service mit vorhandenem API-Client
func NewServiceWithAPI(api API, hasCredentials bool) *Service {
	return &Service{api: api, hasCredentials: hasCredentials}
}

// Name gibt den Namen des Providers zurück
func (s *Service) Name() fr.ProviderType {
	return fr.ProviderCloud
}

// IsHealthy prüft nur, ob Zugangsdaten vorhanden sind. Es findet keine Netzwerkprüfung statt.
func (s *Service) IsHealthy(ctx context.Context) bool {
	return s.hasCredentials
}

// CheckHealth liefert den Grund, warum der Dienst nicht verfügbar ist
func (s *Service) CheckHealth(ctx context.Context) error {
	if !s.hasCredentials {
		return errors.New("AWS credentials not configured")
	}
	return nil
}

// CompareFaces vergleicht das größte Gesicht im Quellbild mit allen Gesichtern im Zielbild
func (s *Service) CompareFaces(ctx context.Context, source, target []byte, threshold float64) (*fr.FaceComparisonResult, error) {
	start := time.Now()

	out, err := s.api.CompareFaces(ctx, &rekognition.CompareFacesInput{
		SourceImage:         &types.Image{Bytes: source},
		TargetImage:         &types.Image{Bytes: target},
		SimilarityThreshold: aws.Float32(float32(fr.NormalizeConfidence(threshold, fr.ProviderCloud))),
	})
	if err != nil {
		return nil, classify(err, fr.OpCompareFaces)
	}

	result := NormalizeFaceComparison(out)
	fr.ValidateResponseData(&result.Similarity, fr.ProviderCloud)

	log.WithFields(logFields).Debugf("Rekognition CompareFaces took %s: similarity %.2f, %d matches",
		time.Since(start), result.Similarity, len(result.FaceMatches))
	return result, nil
}

// DetectFaces erkennt Gesichter mit allen Attributen
func (s *Service) DetectFaces(ctx context.Context, image []byte) ([]fr.FaceDetails, error) {
	out, err := s.api.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: image},
		Attributes: []types.Attribute{types.AttributeAll},
	})
	if err != nil {
		return nil, classify(err, fr.OpDetectFaces)
	}
	return NormalizeFaceDetails(out.FaceDetails), nil
}

// FindSimilarFaces vergleicht das Quellbild mit mehreren Zielbildern und sortiert nach Ähnlichkeit.
// Einzelne fehlgeschlagene Ziele werden übersprungen; schlagen alle fehl, wird der letzte Fehler zurückgegeben.
func (s *Service) FindSimilarFaces(ctx context.Context, source []byte, targets [][]byte) ([]fr.SimilarFace, error) {
	results := make([]fr.SimilarFace, 0, len(targets))
	var lastErr error

	for i, target := range targets {
		res, err := s.CompareFaces(ctx, source, target, 0)
		if err != nil {
			if ctx.Err() != nil {
				return nil, classify(ctx.Err(), fr.OpFindSimilarFaces)
			}
			log.WithFields(logFields).Warnf("Comparison with target %d failed: %v", i, err)
			lastErr = err
			continue
		}
		results = append(results, fr.SimilarFace{
			ImageIndex:  i,
			Similarity:  res.Similarity,
			FaceMatches: res.FaceMatches,
		})
	}

	if len(results) == 0 && lastErr != nil {
		return nil, lastErr
	}
	fr.RankSimilarFaces(results)
	return results, nil
}

func classify(err error, op fr.Operation) error {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return fr.RequestFailed(fr.ProviderCloud, op, respErr.HTTPStatusCode(), err)
	}
	return fr.Classify(err, fr.ProviderCloud, op)
}

var (
	_ fr.Backend       = (*Service)(nil)
	_ fr.BatchComparer = (*Service)(nil)
	_ fr.HealthChecker = (*Service)(nil)
)
