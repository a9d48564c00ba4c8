package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type localeContextKey struct{}

var LocaleKey = localeContextKey{}

// Supported lists the locales responses can be rendered in. The first
// entry is the fallback.
var Supported = []language.Tag{language.English, language.Indonesian}

var matcher = language.NewMatcher(Supported)

// I18N resolves the request locale from X-Locale, then Accept-Language,
// then defaultLocale, and stores it on the context.
func I18N(defaultLocale string) func(http.Handler) http.Handler {
	fallback := matchLocale(defaultLocale)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := detectLocale(r, fallback)
			w.Header().Set("Content-Language", locale.String())
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback language.Tag) language.Tag {
	if v := strings.TrimSpace(r.Header.Get("X-Locale")); v != "" {
		return matchLocale(v)
	}
	if v := strings.TrimSpace(r.Header.Get("Accept-Language")); v != "" {
		tags, _, err := language.ParseAcceptLanguage(v)
		if err == nil && len(tags) > 0 {
			_, idx, conf := matcher.Match(tags...)
			if conf != language.No {
				return Supported[idx]
			}
		}
	}
	return fallback
}

func matchLocale(raw string) language.Tag {
	tag, err := language.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Supported[0]
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return Supported[0]
	}
	return Supported[idx]
}

func LocaleFromContext(ctx context.Context) language.Tag {
	if v, ok := ctx.Value(LocaleKey).(language.Tag); ok {
		return v
	}
	return Supported[0]
}

// Localize translates an English user-facing message into the request
// locale. Unknown messages are returned unchanged.
func Localize(ctx context.Context, msg string) string {
	if msg == "" {
		return ""
	}
	return message.NewPrinter(LocaleFromContext(ctx)).Sprintf(msg)
}

// RegisterTranslations adds Indonesian renderings for English messages.
func RegisterTranslations(indonesian map[string]string) error {
	for en, id := range indonesian {
		if err := message.SetString(language.Indonesian, en, id); err != nil {
			return err
		}
	}
	return nil
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
