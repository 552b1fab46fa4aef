package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/captain-yun7/facefalcon-sub000/config"
	"github.com/captain-yun7/facefalcon-sub000/internal/api/middleware"
	"github.com/captain-yun7/facefalcon-sub000/internal/calibration"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T, origins []string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tr, err := middleware.NewTranslator(config.I18nConfig{DefaultLanguage: "ko", Languages: []string{"ko", "en"}})
	if err != nil {
		t.Fatalf("NewTranslator failed: %v", err)
	}
	cfg := config.ServerConfig{AllowedOrigins: origins, SessionSecret: "secret", MaxBodyMB: 1}
	return NewRouter(cfg, nil, calibration.NewSeeded(1), tr, nil)
}

func TestRouter_Health(t *testing.T) {
	r := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("request id header missing")
	}
}

func TestRouter_CORS(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		want    string
	}{
		{"wildcard", []string{"*"}, "http://example.com", "*"},
		{"allowed", []string{"http://app.local"}, "http://app.local", "http://app.local"},
		{"rejected", []string{"http://app.local"}, "http://evil.local", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, tt.origins)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodOptions, "/api/compare", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			r.ServeHTTP(w, req)
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}
