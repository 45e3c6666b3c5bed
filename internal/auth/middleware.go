package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sakif/snippet-box/internal/apperror"
)

// contextKey keeps our context values private to this package.
type contextKey string

const subjectKey contextKey = "subject"

// CookieName is checked when no Authorization header is present, so a browser
// panel can authenticate with an HttpOnly cookie instead.
const CookieName = "snipbox_token"

// RequireToken rejects requests without a valid token with 401 and stores the
// token subject in the request context for the rest.
func RequireToken(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r)
			if raw == "" {
				unauthorized(w, "missing bearer token")
				return
			}
			subject, err := tokens.Validate(raw)
			if err != nil {
				unauthorized(w, "valid authentication required")
				return
			}
			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext returns the subject of the token that authenticated the request.
func SubjectFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectKey).(string)
	return sub, ok && sub != ""
}

// tokenFromRequest reads "Authorization: Bearer <token>", falling back to the cookie.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	err := apperror.Unauthorized(message)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="snippet-box"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   apperror.ErrUnauthorized.Error(),
		"message": err.Message,
	})
}
