package middleware

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gorilla/sessions"
)

const csrfTokenKey contextKey = "csrf_token"

// CSRFMiddleware provides CSRF protection functionality
type CSRFMiddleware struct {
	store       sessions.Store
	sessionName string
}

// NewCSRFMiddleware creates a CSRF middleware keeping its token in the named session
func NewCSRFMiddleware(store sessions.Store, sessionName string) *CSRFMiddleware {
	return &CSRFMiddleware{
		store:       store,
		sessionName: sessionName,
	}
}

// CSRFProtection rejects state-changing requests without the session's token.
// It also makes the token available to handlers via CSRFToken.
func (m *CSRFMiddleware) CSRFProtection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := m.store.Get(r, m.sessionName)
		if err != nil {
			log.Printf("Discarding undecodable session %s: %v", m.sessionName, err)
		}
		if session == nil {
			session = sessions.NewSession(m.store, m.sessionName)
			session.IsNew = true
		}

		sessionToken, ok := session.Values["csrf_token"].(string)
		if !ok || sessionToken == "" {
			sessionToken = GenerateCSRFToken()
			session.Values["csrf_token"] = sessionToken
			if err := session.Save(r, w); err != nil {
				log.Printf("Failed to save CSRF token: %v", err)
			}
		}

		if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodOptions {
			requestToken := r.Header.Get("X-CSRF-Token")
			if requestToken == "" {
				requestToken = r.FormValue("csrf_token")
			}

			if subtle.ConstantTimeCompare([]byte(requestToken), []byte(sessionToken)) != 1 {
				if IsHTMXRequest(r) {
					writeFragment(w, http.StatusForbidden, "Security token mismatch. Please refresh the page and try again.")
				} else {
					http.Error(w, "CSRF token mismatch", http.StatusForbidden)
				}
				return
			}
		}

		ctx := context.WithValue(r.Context(), csrfTokenKey, sessionToken)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CSRFToken returns the token CSRFProtection stored for the request
func CSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(csrfTokenKey).(string)
	return token
}
