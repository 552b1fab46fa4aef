package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/captain-yun7/facefalcon-sub000/config"
	"github.com/captain-yun7/facefalcon-sub000/internal/api/handlers"
	"github.com/captain-yun7/facefalcon-sub000/internal/api/middleware"
	"github.com/captain-yun7/facefalcon-sub000/internal/calibration"
	"github.com/captain-yun7/facefalcon-sub000/internal/server/sse"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const sessionName = "facefalcon_session"

// NewRouter baut die gin-Engine mit Middleware und allen Routen. Ohne hub entfällt der Event-Stream.
func NewRouter(cfg config.ServerConfig, analyzer handlers.FaceAnalyzer, calibrator *calibration.Calibrator,
	translator *middleware.Translator, hub *sse.Hub) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int((30 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(sessionName, store))
	router.Use(middleware.I18n(translator))

	router.GET("/health", handlers.Health)

	apiHandler := handlers.NewAPIHandler(analyzer, calibrator, cfg.MaxBodyMB)
	apiGroup := router.Group("/api")
	apiHandler.RegisterRoutes(apiGroup)
	if hub != nil {
		handlers.NewEventHandler(hub).RegisterRoutes(apiGroup)
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	c.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions}
	c.AllowHeaders = append(c.AllowHeaders, "Accept-Language", middleware.RequestIDHeader)
	c.ExposeHeaders = []string{middleware.RequestIDHeader}
	return c
}
