package middleware

import (
	"embed"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/captain-yun7/facefalcon-sub000/config"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

const (
	languageKey   = "language"
	translatorKey = "translator"
)

// Translator hält die Übersetzungen aller unterstützten Sprachen
type Translator struct {
	defaultLanguage string
	languages       []string
	matcher         language.Matcher
	localizers      map[string]*i18n.Localizer
}

// NewTranslator lädt die eingebetteten Übersetzungsdateien
func NewTranslator(cfg config.I18nConfig) (*Translator, error) {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "ko"
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{cfg.DefaultLanguage}
	}
	if !slices.Contains(cfg.Languages, cfg.DefaultLanguage) {
		cfg.Languages = append([]string{cfg.DefaultLanguage}, cfg.Languages...)
	}

	defaultTag, err := language.Parse(cfg.DefaultLanguage)
	if err != nil {
		return nil, fmt.Errorf("invalid default language %q: %w", cfg.DefaultLanguage, err)
	}

	bundle := i18n.NewBundle(defaultTag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	t := &Translator{
		defaultLanguage: cfg.DefaultLanguage,
		localizers:      make(map[string]*i18n.Localizer),
	}

	// Die Standardsprache steht im Matcher an erster Stelle
	tags := []language.Tag{defaultTag}
	t.languages = []string{cfg.DefaultLanguage}
	for _, lang := range cfg.Languages {
		if lang != cfg.DefaultLanguage {
			tag, err := language.Parse(lang)
			if err != nil {
				return nil, fmt.Errorf("invalid language %q: %w", lang, err)
			}
			tags = append(tags, tag)
			t.languages = append(t.languages, lang)
		}
	}

	for _, lang := range t.languages {
		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+lang+".json"); err != nil {
			return nil, fmt.Errorf("failed to load translations for %s: %w", lang, err)
		}
		t.localizers[lang] = i18n.NewLocalizer(bundle, lang, cfg.DefaultLanguage)
	}

	t.matcher = language.NewMatcher(tags)
	return t, nil
}

// Languages gibt die unterstützten Sprachen zurück, die Standardsprache zuerst
func (t *Translator) Languages() []string {
	return append([]string(nil), t.languages...)
}

// Supported prüft, ob eine Sprache unterstützt wird
func (t *Translator) Supported(lang string) bool {
	return slices.Contains(t.languages, lang)
}

// MatchAcceptLanguage wählt die beste Sprache für einen Accept-Language-Header
func (t *Translator) MatchAcceptLanguage(header string) string {
	if header == "" {
		return t.defaultLanguage
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return t.defaultLanguage
	}
	_, index, confidence := t.matcher.Match(tags...)
	if confidence == language.No {
		return t.defaultLanguage
	}
	return t.languages[index]
}

// T übersetzt einen Schlüssel. Fehlt die Übersetzung, wird der Schlüssel zurückgegeben.
func (t *Translator) T(lang, key string, data map[string]any) string {
	localizer, ok := t.localizers[lang]
	if !ok {
		localizer = t.localizers[t.defaultLanguage]
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: key, TemplateData: data})
	if err != nil {
		log.Debugf("Missing translation for %s (%s): %v", key, lang, err)
		return key
	}
	return msg
}

// I18n ermittelt die Sprache pro Anfrage: ?lang= (wird in der Session gespeichert),
// dann die Session, dann Accept-Language, sonst die Standardsprache.
func I18n(translator *Translator) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		lang := c.Query("lang")

		if lang != "" && translator.Supported(lang) {
			session.Set(languageKey, lang)
			if err := session.Save(); err != nil {
				log.Warnf("Failed to save language in session: %v", err)
			}
		} else if stored, ok := session.Get(languageKey).(string); ok && translator.Supported(stored) {
			lang = stored
		} else {
			lang = translator.MatchAcceptLanguage(c.GetHeader("Accept-Language"))
		}

		c.Set(languageKey, lang)
		c.Set(translatorKey, translator)
		c.Next()
	}
}

// Language gibt die Sprache der Anfrage zurück
func Language(c *gin.Context) string {
	return c.GetString(languageKey)
}

// T übersetzt einen Schlüssel in der Sprache der Anfrage
func T(c *gin.Context, key string) string {
	translator, ok := c.Get(translatorKey)
	if !ok {
		return key
	}
	return translator.(*Translator).T(Language(c), key, nil)
}
