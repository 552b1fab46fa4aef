package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/captain-yun7/facefalcon-sub000/config"
	"github.com/captain-yun7/facefalcon-sub000/internal/api"
	"github.com/captain-yun7/facefalcon-sub000/internal/api/middleware"
	"github.com/captain-yun7/facefalcon-sub000/internal/calibration"
	"github.com/captain-yun7/facefalcon-sub000/internal/integrations/homeassistant"
	"github.com/captain-yun7/facefalcon-sub000/internal/integrations/mqtt"
	"github.com/captain-yun7/facefalcon-sub000/internal/integrations/provider"
	"github.com/captain-yun7/facefalcon-sub000/internal/logger"
	"github.com/captain-yun7/facefalcon-sub000/internal/server/sse"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "/config/config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logFile, err := logger.Init(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logFile.Close()

	log.Info("Starting FaceFalcon...")
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Face analysis router with both providers
	hybrid, err := provider.CreateClient(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create face analysis client: %v", err)
	}

	// Live events for connected browsers
	hub := sse.NewHub()
	go hub.Run(ctx)
	sinks := provider.Sinks{hub}

	// MQTT: status and fallback events, remote config changes
	mqttClient := mqtt.NewClient(cfg.MQTT)
	if cfg.MQTT.Enabled {
		mqttClient.Subscribe(mqttClient.Topic("config/set"), mqtt.ConfigHandler(hybrid))
		if err := mqttClient.Start(); err != nil {
			log.Warnf("Failed to start MQTT client: %v. Continuing without MQTT.", err)
		} else {
			defer mqttClient.Stop()
			publisher := mqtt.NewPublisher(mqttClient)
			defer publisher.Close()
			sinks = append(sinks, publisher)
			if cfg.MQTT.Discovery {
				if err := homeassistant.NewDiscoveryManager(mqttClient, cfg.MQTT).Register(); err != nil {
					log.Warnf("Home Assistant discovery failed: %v", err)
				}
			}
		}
	} else {
		log.Info("MQTT is disabled in config.")
	}

	hybrid.SetEventSink(sinks)

	translator, err := middleware.NewTranslator(cfg.I18n)
	if err != nil {
		log.Fatalf("Failed to load translations: %v", err)
	}

	router := api.NewRouter(cfg.Server, hybrid, calibration.New(nil), translator, hub)

	// Initial health check, also publishes the retained status
	if status := hybrid.GetProviderStatus(ctx); status.Success {
		log.Infof("Provider status: cloud=%t local=%t", status.Data.Cloud.Available, status.Data.Local.Available)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	stop()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped.")
}
