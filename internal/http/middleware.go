package http

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dynatos/pos-terminal/internal/app"
)

// RequestIDMiddleware makes sure every request carries an id and echoes it in
// the X-Request-ID response header. Runs after middleware.RequestID.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = middleware.GetReqID(r.Context())
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

func getRequestID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

type sessionStateKey struct{}

// sessionState is set by handleError when the backend refused the
// operator's own token.
type sessionState struct {
	rejected bool
}

// SessionExpiryMiddleware signs the operator out once the backend stops
// accepting their token. handleError answers such requests with a redirect to
// login; the session is cleared after the handler returns.
func SessionExpiryMiddleware(terminal *app.Terminal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := &sessionState{}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionStateKey{}, state)))
			if !state.rejected {
				return
			}
			if err := terminal.Logout(context.WithoutCancel(r.Context())); err != nil {
				log.Printf("[%s] failed to clear rejected session: %v", getRequestID(r), err)
			}
		})
	}
}

func markSessionRejected(r *http.Request) bool {
	state, ok := r.Context().Value(sessionStateKey{}).(*sessionState)
	if !ok {
		return false
	}
	state.rejected = true
	return true
}
