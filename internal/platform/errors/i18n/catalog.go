// Package i18n provides internationalization support for error messages.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
)

// BaseLocale is the canonical source locale for error catalogs.
const BaseLocale = "en-US"

// Code is a machine-readable error code (duplicated from errors package to avoid cycle).
type Code = string

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[Code]string
}

var (
	catalogsMu sync.RWMutex
	catalogs   = map[string]*Catalog{}

	matcherMu sync.RWMutex
	matcher   language.Matcher
	supported []language.Tag
)

// GetCatalog returns the catalog for the given locale.
// Locale matching uses x/text language matching (e.g. "pt" resolves to
// "pt-BR"); unknown locales fall back to en-US.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = BaseLocale
	}

	if c, ok := lookupCatalog(requested); ok {
		return c
	}

	if c, ok := lookupCatalog(matchLocale(requested)); ok {
		return c
	}

	if c, ok := lookupCatalog(BaseLocale); ok {
		return c
	}
	return NewCatalog(BaseLocale, nil)
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template with the given metadata.
// Falls back to the error code itself if no template is found.
// Templates are always executed even with nil/empty metadata to ensure
// consistent output (template variables without metadata render as empty).
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	tmpl, ok := c.messages[code]
	if !ok {
		return code
	}

	if metadata == nil {
		metadata = map[string]string{}
	}

	t, err := template.New("msg").Parse(tmpl)
	if err != nil {
		return tmpl
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}

// RegisterCatalog registers a catalog for the given locale and adds the
// locale to the language matcher. Called from locale file init functions.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogsMu.Lock()
	catalogs[locale] = cat
	catalogsMu.Unlock()

	tag, err := language.Parse(locale)
	if err != nil {
		return
	}
	matcherMu.Lock()
	defer matcherMu.Unlock()
	if tag == language.AmericanEnglish || locale == BaseLocale {
		// Base locale leads the matcher so it wins ambiguous matches.
		supported = append([]language.Tag{tag}, supported...)
	} else {
		supported = append(supported, tag)
	}
	matcher = language.NewMatcher(supported)
}

// NewCatalog creates a new catalog with the given locale and messages.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	cloned := make(map[Code]string, len(messages))
	for key, value := range messages {
		cloned[key] = value
	}
	return &Catalog{
		locale:   locale,
		messages: cloned,
	}
}

func lookupCatalog(locale string) (*Catalog, bool) {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	cat, ok := catalogs[locale]
	return cat, ok
}

func matchLocale(requested string) string {
	matcherMu.RLock()
	m := matcher
	tags := supported
	matcherMu.RUnlock()
	if m == nil || len(tags) == 0 {
		return BaseLocale
	}

	desired, err := language.Parse(requested)
	if err != nil {
		return BaseLocale
	}
	_, index, confidence := m.Match(desired)
	if confidence == language.No {
		return BaseLocale
	}
	resolved := tags[index]
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	for locale := range catalogs {
		if tag, err := language.Parse(locale); err == nil && tag == resolved {
			return locale
		}
	}
	return BaseLocale
}
