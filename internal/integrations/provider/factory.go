package provider

import (
	"context"

	"github.com/captain-yun7/facefalcon-sub000/config"
	fr "github.com/captain-yun7/facefalcon-sub000/internal/integrations/facerecognition"
	"github.com/captain-yun7/facefalcon-sub000/internal/integrations/insightface"
	"github.com/captain-yun7/facefalcon-sub000/internal/integrations/rekognition"

	log "github.com/sirupsen/logrus"
)

// CreateClient erstellt beide Dienste und den Router aus der Konfiguration.
// Kann der Cloud-Client nicht erstellt werden, läuft der Router nur mit dem lokalen Dienst.
func CreateClient(ctx context.Context, cfg *config.Config) (*HybridClient, error) {
	log.Infof("Registering InsightFace as local provider (%s)", cfg.InsightFace.URL)
	local := insightface.NewService(cfg.InsightFace, cfg.Provider.MatchEpsilon)

	var cloud fr.Backend
	rekognitionService, err := rekognition.NewService(ctx, cfg.Rekognition)
	if err != nil {
		log.Warnf("Cloud provider disabled: %v", err)
	} else {
		cloud = rekognitionService
		if !rekognitionService.IsHealthy(ctx) {
			log.Warn("No AWS credentials available, cloud provider will report as unavailable")
		}
	}

	client, err := NewHybridClient(ConfigFromSettings(cfg), cloud, local)
	if err != nil {
		return nil, err
	}

	c := client.GetConfig()
	log.Infof("Face analysis router ready: mode=%s primary=%s fallback=%t", c.Mode, c.Primary, c.FallbackEnabled)
	return client, nil
}
