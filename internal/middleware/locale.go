package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type languageContextKey struct{}
type countryContextKey struct{}

var (
	LanguageKey = languageContextKey{}
	CountryKey  = countryContextKey{}
)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// countryLanguages maps countries to their dominant supported language for
// requests that carry no language hint at all.
var countryLanguages = map[string]string{
	"ES": "es", "MX": "es", "AR": "es", "CO": "es",
	"FR": "fr", "DE": "de", "AT": "de",
	"BR": "pt", "PT": "pt",
	"JP": "ja", "KR": "ko", "CN": "zh", "TW": "zh",
	"SA": "ar", "EG": "ar", "IN": "hi",
	"IT": "it", "NL": "nl", "RU": "ru",
}

// Language detects the preferred alt text language for each request and
// stores it in the context. Precedence: X-Language header, Accept-Language,
// GeoIP country, configured default. supported lists the ISO codes the
// service generates in; the first entry is the matcher fallback.
func Language(defaultLanguage string, supported []string, lookup CountryLookup) func(http.Handler) http.Handler {
	matcher := newLanguageMatcher(defaultLanguage, supported)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := resolveCountry(r, lookup)
			lang := detectLanguage(r, matcher, defaultLanguage, country)
			ctx := context.WithValue(r.Context(), LanguageKey, lang)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, strings.ToUpper(country))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type languageMatcher struct {
	matcher language.Matcher
	tags    []language.Tag
	codes   []string
}

func newLanguageMatcher(defaultLanguage string, supported []string) *languageMatcher {
	codes := make([]string, 0, len(supported)+1)
	tags := make([]language.Tag, 0, len(supported)+1)
	add := func(code string) {
		tag, err := language.Parse(code)
		if err != nil {
			return
		}
		codes = append(codes, code)
		tags = append(tags, tag)
	}
	add(defaultLanguage)
	for _, code := range supported {
		if code != defaultLanguage {
			add(code)
		}
	}
	return &languageMatcher{matcher: language.NewMatcher(tags), tags: tags, codes: codes}
}

// match maps an Accept-Language style value onto a supported code, or ""
// when nothing in the value is usable.
func (m *languageMatcher) match(header string) string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return ""
	}
	_, index, conf := m.matcher.Match(tags...)
	if conf == language.No {
		return ""
	}
	return m.codes[index]
}

func detectLanguage(r *http.Request, m *languageMatcher, fallback, country string) string {
	if v := strings.TrimSpace(r.Header.Get("X-Language")); v != "" {
		if code := m.match(v); code != "" {
			return code
		}
	}
	if v := r.Header.Get("Accept-Language"); v != "" {
		if code := m.match(v); code != "" {
			return code
		}
	}
	if code, ok := countryLanguages[strings.ToUpper(country)]; ok {
		return code
	}
	if fallback != "" {
		return fallback
	}
	return "en"
}

func resolveCountry(r *http.Request, lookup CountryLookup) string {
	headerHints := []string{"X-Country-Code", "CF-IPCountry", "X-Appengine-Country"}
	for _, key := range headerHints {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" {
			return strings.ToUpper(val)
		}
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && country != "" {
				return strings.ToUpper(country)
			}
		}
	}
	return ""
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func LanguageFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LanguageKey).(string); ok {
		return v
	}
	return "en"
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}
