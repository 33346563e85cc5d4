package i18n

import (
	"net/http"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Middleware picks the best loaded language for each request's
// Accept-Language header and injects its localizer into the context.
// Init must have been called.
func Middleware() func(http.Handler) http.Handler {
	tags := Languages()
	matcher := language.NewMatcher(tags)
	locs := make(map[string]*i18n.Localizer, len(tags))
	for _, t := range tags {
		locs[t.String()] = NewLocalizer(t.String())
	}
	fallback := NewLocalizer()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := fallback
			if accept := r.Header.Get("Accept-Language"); accept != "" && len(tags) > 0 {
				prefs, _, err := language.ParseAcceptLanguage(accept)
				if err == nil && len(prefs) > 0 {
					_, i, _ := matcher.Match(prefs...)
					loc = locs[tags[i].String()]
				}
			}
			next.ServeHTTP(w, r.WithContext(WithLocalizer(r.Context(), loc)))
		})
	}
}
