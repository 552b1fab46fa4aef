package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/captain-yun7/facefalcon-sub000/config"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTranslator(t *testing.T) *Translator {
	t.Helper()
	tr, err := NewTranslator(config.I18nConfig{DefaultLanguage: "ko", Languages: []string{"ko", "en"}})
	if err != nil {
		t.Fatalf("NewTranslator failed: %v", err)
	}
	return tr
}

func TestTranslator(t *testing.T) {
	tr := newTranslator(t)

	if got := tr.T("en", "error.analysis_failed", nil); got != "Analysis failed, please try again." {
		t.Errorf("en translation = %q", got)
	}
	if got := tr.T("ko", "result.clear_family.title.1", nil); got != "분명한 가족" {
		t.Errorf("ko translation = %q", got)
	}
	if got := tr.T("fr", "error.invalid_image", nil); got != "이미지를 해석할 수 없습니다." {
		t.Errorf("unknown language should use default, got %q", got)
	}
	if got := tr.T("en", "does.not.exist", nil); got != "does.not.exist" {
		t.Errorf("missing key should return the key, got %q", got)
	}
}

func TestMatchAcceptLanguage(t *testing.T) {
	tr := newTranslator(t)
	tests := []struct {
		header string
		want   string
	}{
		{"", "ko"},
		{"en-US,en;q=0.9", "en"},
		{"ko-KR", "ko"},
		{"de-DE", "ko"},
		{"de;q=0.9,en;q=0.5", "en"},
		{"!!invalid", "ko"},
	}
	for _, tt := range tests {
		if got := tr.MatchAcceptLanguage(tt.header); got != tt.want {
			t.Errorf("MatchAcceptLanguage(%q) = %s, want %s", tt.header, got, tt.want)
		}
	}
}

func newRouter(t *testing.T) *gin.Engine {
	r := gin.New()
	r.Use(sessions.Sessions("test", cookie.NewStore([]byte("secret"))))
	r.Use(RequestLogger())
	r.Use(I18n(newTranslator(t)))
	r.GET("/lang", func(c *gin.Context) {
		c.String(http.StatusOK, Language(c)+"|"+T(c, "error.invalid_request"))
	})
	return r
}

func TestI18nMiddleware(t *testing.T) {
	r := newRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/lang?lang=en", nil)
	r.ServeHTTP(w, req)
	if w.Body.String() != "en|The request could not be read." {
		t.Fatalf("query language not applied: %s", w.Body.String())
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("language should be stored in the session")
	}

	// Die Session hat Vorrang vor Accept-Language
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/lang", nil)
	req.Header.Set("Accept-Language", "ko-KR")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	r.ServeHTTP(w, req)
	if w.Body.String()[:2] != "en" {
		t.Errorf("session language ignored: %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/lang?lang=xx", nil)
	req.Header.Set("Accept-Language", "en-GB")
	r.ServeHTTP(w, req)
	if w.Body.String()[:2] != "en" {
		t.Errorf("unsupported query should fall back to Accept-Language: %s", w.Body.String())
	}
}

func TestRequestLogger_RequestID(t *testing.T) {
	r := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lang", nil))
	id := w.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("expected generated uuid, got %q", id)
	}

	given := uuid.NewString()
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/lang", nil)
	req.Header.Set(RequestIDHeader, given)
	r.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != given {
		t.Errorf("request id = %q, want %q", got, given)
	}
}
