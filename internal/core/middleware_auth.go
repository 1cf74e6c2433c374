package core

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"parkwatch/internal/types"
)

// RequireBearerSecret guards a route with a shared secret sent as
// "Authorization: Bearer <secret>". Scheduled callers (cron, EventBridge API
// destinations) use it to trigger scrapes. An empty secret leaves the route
// open.
//
// Failures return 401 with distinct codes:
//   - auth_token_missing: no Authorization header or no Bearer token.
//   - auth_token_invalid: the token does not match.
func (s *Server) RequireBearerSecret(secret types.SecretString) func(http.Handler) http.Handler {
	expected := []byte(secret.Unmask())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Authorization header is required")
				return
			}

			token := extractBearerToken(authHeader)
			if token == "" {
				s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Bearer token is required")
				return
			}

			if subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
				s.Logger.WarnContext(r.Context(), "authentication failed: secret mismatch",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Invalid authentication token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken returns the token of a "Bearer <token>" header value
// (scheme compared case-insensitively per RFC 7235), or "" if malformed.
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	Error(w, r, types.NewAppError(code, message, nil))
}
