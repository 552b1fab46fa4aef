package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/captain-yun7/facefalcon-sub000/internal/api/middleware"
	"github.com/captain-yun7/facefalcon-sub000/internal/calibration"
	fr "github.com/captain-yun7/facefalcon-sub000/internal/integrations/facerecognition"
	"github.com/captain-yun7/facefalcon-sub000/internal/integrations/provider"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// FaceAnalyzer ist die Router-Schnittstelle, die die API verwendet
type FaceAnalyzer interface {
	CompareFaces(ctx context.Context, source, target []byte, threshold float64) fr.Result[*fr.FaceComparisonResult]
	DetectFaces(ctx context.Context, image []byte) fr.Result[[]fr.FaceDetails]
	FindSimilarFaces(ctx context.Context, source []byte, targets [][]byte) fr.Result[[]fr.SimilarFace]
	CompareFamilyFaces(ctx context.Context, parent, child []byte, parentAge, childAge *int) fr.Result[*fr.FamilySimilarity]
	GetProviderStatus(ctx context.Context) fr.Result[fr.HealthStatus]
	GetConfig() provider.Config
	UpdateConfig(update provider.ConfigUpdate) fr.Result[provider.Config]
}

// APIHandler behandelt die Anfragen der Gesichtsanalyse-API
type APIHandler struct {
	analyzer   FaceAnalyzer
	calibrator *calibration.Calibrator
	maxBody    int64
}

// NewAPIHandler erstellt einen neuen API-Handler. maxBodyMB begrenzt die Größe einer Anfrage.
func NewAPIHandler(analyzer FaceAnalyzer, calibrator *calibration.Calibrator, maxBodyMB int) *APIHandler {
	if maxBodyMB <= 0 {
		maxBodyMB = 20
	}
	return &APIHandler{
		analyzer:   analyzer,
		calibrator: calibrator,
		maxBody:    int64(maxBodyMB) << 20,
	}
}

// RegisterRoutes registriert alle API-Routen
func (h *APIHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Analyse-Endpunkte
	router.POST("/compare", h.CompareFaces)
	router.POST("/detect", h.DetectFaces)
	router.POST("/find-similar", h.FindSimilarFaces)
	router.POST("/family", h.CompareFamilyFaces)

	// Provider-Endpunkte
	router.GET("/status", h.GetStatus)
	router.GET("/config", h.GetConfig)
	router.PATCH("/config", h.UpdateConfig)

	// System-Endpunkte
	router.GET("/system", h.GetSystemStats)
}

type compareRequest struct {
	SourceImage string   `json:"source_image" binding:"required"`
	TargetImage string   `json:"target_image" binding:"required"`
	Threshold   *float64 `json:"similarity_threshold"`
	SourceAge   *int     `json:"source_age"`
	TargetAge   *int     `json:"target_age"`
}

type detectRequest struct {
	Image string `json:"image" binding:"required"`
}

type findSimilarRequest struct {
	SourceImage  string   `json:"source_image" binding:"required"`
	TargetImages []string `json:"target_images" binding:"required"`
}

type familyRequest struct {
	ParentImage string `json:"parent_image" binding:"required"`
	ChildImage  string `json:"child_image" binding:"required"`
	ParentAge   *int   `json:"parent_age"`
	ChildAge    *int   `json:"child_age"`
}

// calibrationView ergänzt die Kalibrierung um die übersetzten Texte
type calibrationView struct {
	calibration.Calibration
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CompareFaces vergleicht zwei Bilder und kalibriert die Ähnlichkeit für die Anzeige
func (h *APIHandler) CompareFaces(c *gin.Context) {
	var req compareRequest
	if !h.bind(c, &req) {
		return
	}
	source, target, ok := h.decodePair(c, req.SourceImage, req.TargetImage)
	if !ok {
		return
	}

	threshold := 0.0
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	res := h.analyzer.CompareFaces(c.Request.Context(), source, target, threshold)
	if !res.Success {
		h.fail(c, res.Err(), res.Error)
		return
	}

	// Die Kalibrierung arbeitet auf der Modellskala 0-1
	cal := h.calibrator.Calibrate(res.Data.Similarity/100, req.SourceAge, req.TargetAge)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"comparison":  res.Data,
			"calibration": h.view(c, cal),
		},
	})
}

// DetectFaces erkennt Gesichter in einem Bild
func (h *APIHandler) DetectFaces(c *gin.Context) {
	var req detectRequest
	if !h.bind(c, &req) {
		return
	}
	image, err := DecodeImage(req.Image)
	if err != nil {
		h.badImage(c, err)
		return
	}

	res := h.analyzer.DetectFaces(c.Request.Context(), image)
	if !res.Success {
		h.fail(c, res.Err(), res.Error)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"faces":     res.Data,
			"faceCount": len(res.Data),
		},
	})
}

// FindSimilarFaces sortiert mehrere Zielbilder nach Ähnlichkeit zum Quellbild
func (h *APIHandler) FindSimilarFaces(c *gin.Context) {
	var req findSimilarRequest
	if !h.bind(c, &req) {
		return
	}
	source, err := DecodeImage(req.SourceImage)
	if err != nil {
		h.badImage(c, err)
		return
	}
	targets := make([][]byte, 0, len(req.TargetImages))
	for _, t := range req.TargetImages {
		img, err := DecodeImage(t)
		if err != nil {
			h.badImage(c, err)
			return
		}
		targets = append(targets, img)
	}

	res := h.analyzer.FindSimilarFaces(c.Request.Context(), source, targets)
	if !res.Success {
		h.fail(c, res.Err(), res.Error)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res.Data})
}

// CompareFamilyFaces vergleicht Eltern und Kind mit Altersausgleich
func (h *APIHandler) CompareFamilyFaces(c *gin.Context) {
	var req familyRequest
	if !h.bind(c, &req) {
		return
	}
	parent, child, ok := h.decodePair(c, req.ParentImage, req.ChildImage)
	if !ok {
		return
	}

	res := h.analyzer.CompareFamilyFaces(c.Request.Context(), parent, child, req.ParentAge, req.ChildAge)
	if !res.Success {
		h.fail(c, res.Err(), res.Error)
		return
	}

	cal := h.calibrator.Calibrate(res.Data.Similarity, req.ParentAge, req.ChildAge)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"family":      res.Data,
			"calibration": h.view(c, cal),
		},
	})
}

// GetStatus prüft beide Dienste
func (h *APIHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.analyzer.GetProviderStatus(c.Request.Context()))
}

// GetConfig gibt die aktuelle Router-Konfiguration zurück
func (h *APIHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, fr.Ok(h.analyzer.GetConfig()))
}

// UpdateConfig ändert einzelne Felder der Router-Konfiguration
func (h *APIHandler) UpdateConfig(c *gin.Context) {
	var update provider.ConfigUpdate
	if !h.bind(c, &update) {
		return
	}
	res := h.analyzer.UpdateConfig(update)
	if !res.Success {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   res.Error,
			"message": middleware.T(c, "error.invalid_config"),
		})
		return
	}
	log.WithField("request_id", middleware.RequestID(c)).Infof("Provider config changed via API")
	c.JSON(http.StatusOK, res)
}

func (h *APIHandler) bind(c *gin.Context, req any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	if err := c.ShouldBindJSON(req); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, gin.H{
			"success": false,
			"error":   gin.H{"kind": "InvalidRequest", "message": err.Error()},
			"message": middleware.T(c, "error.invalid_request"),
		})
		return false
	}
	return true
}

func (h *APIHandler) decodePair(c *gin.Context, a, b string) ([]byte, []byte, bool) {
	first, err := DecodeImage(a)
	if err != nil {
		h.badImage(c, err)
		return nil, nil, false
	}
	second, err := DecodeImage(b)
	if err != nil {
		h.badImage(c, err)
		return nil, nil, false
	}
	return first, second, true
}

func (h *APIHandler) badImage(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   gin.H{"kind": "InvalidImage", "message": err.Error()},
		"message": middleware.T(c, "error.invalid_image"),
	})
}

// fail übersetzt einen Router-Fehler in HTTP-Status und Nutzertext
func (h *APIHandler) fail(c *gin.Context, err error, info *fr.ErrorInfo) {
	status, key := http.StatusInternalServerError, "error.analysis_failed"
	switch fr.KindOf(err) {
	case fr.KindProviderUnavailable:
		status, key = http.StatusServiceUnavailable, "error.provider_unavailable"
	case fr.KindUnsupportedOperation:
		status, key = http.StatusNotImplemented, "error.unsupported_operation"
	case fr.KindBackendTimeout:
		status = http.StatusGatewayTimeout
	case fr.KindBackendRequestFailed:
		status = http.StatusBadGateway
		if info != nil && !info.Retryable {
			key = "error.analysis_failed_permanent"
		}
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   info,
		"message": middleware.T(c, key),
	})
}

func (h *APIHandler) view(c *gin.Context, cal calibration.Calibration) calibrationView {
	return calibrationView{
		Calibration: cal,
		Title:       middleware.T(c, cal.TitleKey),
		Description: middleware.T(c, cal.MessageKey),
	}
}
