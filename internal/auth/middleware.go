package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"github.com/JC-Coder/w-wire-api-test/internal/user"
)

// Middleware guards authenticated routes. A request passes when its bearer
// token carries a valid signature, belongs to an existing user, and its
// nonce still tracks a live session. All rejection paths answer with the
// same generic unauthorized message; infrastructure failures answer 500 so
// an outage is never reported as a revoked session.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := extractBearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims, err := s.ParseToken(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		if _, err := s.LookupUser(r.Context(), claims.Subject); err != nil {
			if errors.Is(err, user.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "authentication error")
			return
		}

		live, err := s.ValidateSession(r.Context(), claims)
		if err != nil {
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "authentication error")
			return
		}
		if !live {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}
