package insightface

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/captain-yun7/facefalcon-sub000/config"
	"github.com/captain-yun7/facefalcon-sub000/internal/integrations/facerecognition"

	log "github.com/sirupsen/logrus"
)

// Log-Felder für InsightFace-Komponente definieren
var logFields = log.Fields{
	"component": "insightface",
}

// HealthTimeout ist das feste Zeitlimit für die Verfügbarkeitsprüfung
const HealthTimeout = 5 * time.Second

const defaultTimeout = 30 * time.Second

// APIClient implementiert die Kommunikation mit dem InsightFace-Dienst
type APIClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// BoundingBox ist die native Box des Dienstes (x, y, Breite, Höhe als Anteil 0-1)
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Pose ist die native Kopfhaltung
type Pose struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// Face ist ein vom Dienst erkanntes Gesicht
type Face struct {
	BoundingBox      BoundingBox `json:"bounding_box"`
	Confidence       float64     `json:"confidence"`
	FaceID           string      `json:"face_id,omitempty"`
	Age              *float64    `json:"age,omitempty"`
	Gender           string      `json:"gender,omitempty"`
	GenderConfidence *float64    `json:"gender_confidence,omitempty"`
	Landmarks        [][]float64 `json:"landmarks,omitempty"`
	Pose             *Pose       `json:"pose,omitempty"`
	Quality          *float64    `json:"quality,omitempty"`
}

// FaceMatch ist ein Treffer im Zielbild
type FaceMatch struct {
	Similarity  float64     `json:"similarity"`
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  float64     `json:"confidence"`
	FaceID      string      `json:"face_id,omitempty"`
}

// CompareData enthält die Antwort von /compare-faces
type CompareData struct {
	Similarity  float64     `json:"similarity"`
	Confidence  float64     `json:"confidence"`
	FaceMatches []FaceMatch `json:"face_matches"`
	SourceFace  *Face       `json:"source_face,omitempty"`
	TargetFaces []Face      `json:"target_faces"`
}

// DetectData enthält die Antwort von /detect-faces
type DetectData struct {
	Faces     []Face `json:"faces"`
	FaceCount int    `json:"face_count"`
}

// EmbeddingData enthält die Antwort von /extract-embedding
type EmbeddingData struct {
	Embedding   []float32   `json:"embedding"`
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  float64     `json:"confidence"`
}

// FamilyData enthält die Antwort von /compare-family-faces
type FamilyData struct {
	Similarity float64 `json:"similarity"`
	Confidence float64 `json:"confidence"`
	ParentFace Face    `json:"parent_face"`
	ChildFace  Face    `json:"child_face"`
}

// HealthResponse enthält die Antwort von /health
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// apiResponse ist der gemeinsame Umschlag aller Antworten
type apiResponse[T any] struct {
	Success  bool           `json:"success"`
	Data     *T             `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type compareRequest struct {
	SourceImage         string  `json:"source_image"`
	TargetImage         string  `json:"target_image"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

type imageRequest struct {
	Image string `json:"image"`
}

type familyRequest struct {
	ParentImage string `json:"parent_image"`
	ChildImage  string `json:"child_image"`
	ParentAge   *int   `json:"parent_age,omitempty"`
	ChildAge    *int   `json:"child_age,omitempty"`
}

// NewAPIClient erstellt einen neuen InsightFace-APIClient
func NewAPIClient(cfg config.InsightFaceConfig) *APIClient {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &APIClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		timeout: timeout,
		// Zeitlimits werden pro Anfrage über den Kontext gesetzt
		httpClient: &http.Client{},
	}
}

// Health prüft mit festem Zeitlimit, ob der Dienst erreichbar ist
func (c *APIClient) Health(ctx context.Context) (*HealthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, facerecognition.OpHealth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, facerecognition.RequestFailed(facerecognition.ProviderLocal, facerecognition.OpHealth, resp.StatusCode,
			fmt.Errorf("health check returned status %d", resp.StatusCode))
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, facerecognition.RequestFailed(facerecognition.ProviderLocal, facerecognition.OpHealth, resp.StatusCode,
			fmt.Errorf("failed to decode health response: %w", err))
	}
	return &health, nil
}

// CompareFaces sendet zwei Bilder an /compare-faces. threshold liegt auf der lokalen Skala 0-1.
func (c *APIClient) CompareFaces(ctx context.Context, source, target []byte, threshold float64) (*CompareData, error) {
	payload := compareRequest{
		SourceImage:         DataURI(source),
		TargetImage:         DataURI(target),
		SimilarityThreshold: threshold,
	}
	var resp apiResponse[CompareData]
	if err := c.post(ctx, facerecognition.OpCompareFaces, "/compare-faces", payload, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// DetectFaces sendet ein Bild an /detect-faces
func (c *APIClient) DetectFaces(ctx context.Context, image []byte) (*DetectData, error) {
	var resp apiResponse[DetectData]
	if err := c.post(ctx, facerecognition.OpDetectFaces, "/detect-faces", imageRequest{Image: DataURI(image)}, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ExtractEmbedding liefert den Gesichtsvektor des größten Gesichts
func (c *APIClient) ExtractEmbedding(ctx context.Context, image []byte) (*EmbeddingData, error) {
	var resp apiResponse[EmbeddingData]
	if err := c.post(ctx, "extractEmbedding", "/extract-embedding", imageRequest{Image: DataURI(image)}, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CompareFamilyFaces sendet Eltern- und Kinderbild an /compare-family-faces
func (c *APIClient) CompareFamilyFaces(ctx context.Context, parent, child []byte, parentAge, childAge *int) (*FamilyData, error) {
	payload := familyRequest{
		ParentImage: DataURI(parent),
		ChildImage:  DataURI(child),
		ParentAge:   parentAge,
		ChildAge:    childAge,
	}
	var resp apiResponse[FamilyData]
	if err := c.post(ctx, facerecognition.OpCompareFamilyFaces, "/compare-family-faces", payload, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// envelope erlaubt post, den Umschlag unabhängig vom Datentyp zu prüfen
type envelope interface {
	ok() (bool, string, bool)
}

func (r *apiResponse[T]) ok() (bool, string, bool) {
	return r.Success, r.Error, r.Data != nil
}

// post sendet eine JSON-Anfrage mit dem konfigurierten Zeitlimit
func (c *APIClient) post(ctx context.Context, op facerecognition.Operation, path string, payload any, out envelope) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(ctx, op, err)
	}
	defer resp.Body.Close()

	log.WithFields(logFields).Debugf("InsightFace %s took %s (status %d)", path, time.Since(start), resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return facerecognition.RequestFailed(facerecognition.ProviderLocal, op, resp.StatusCode,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return c.transportError(ctx, op, err)
		}
		return facerecognition.RequestFailed(facerecognition.ProviderLocal, op, resp.StatusCode,
			fmt.Errorf("failed to decode response: %w", err))
	}

	success, msg, hasData := out.ok()
	if !success {
		if msg == "" {
			msg = "service reported failure"
		}
		// Fachliche Fehler (z.B. kein Gesicht gefunden) sind nicht vorübergehend
		return facerecognition.RequestFailed(facerecognition.ProviderLocal, op, http.StatusUnprocessableEntity, errors.New(msg))
	}
	if !hasData {
		return facerecognition.RequestFailed(facerecognition.ProviderLocal, op, resp.StatusCode, errors.New("response contains no data"))
	}
	return nil
}

func (c *APIClient) transportError(ctx context.Context, op facerecognition.Operation, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return facerecognition.NewError(facerecognition.KindBackendTimeout, facerecognition.ProviderLocal, op, err)
	}
	return facerecognition.RequestFailed(facerecognition.ProviderLocal, op, 0, fmt.Errorf("request failed: %w", err))
}

// DataURI kodiert Bilddaten als data-URI, wie vom Dienst erwartet
func DataURI(image []byte) string {
	mimeType := http.DetectContentType(image)
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
}
