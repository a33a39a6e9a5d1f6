package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/kaylam/govsignals/internal/model"
)

// SchedulerTokenHeader carries the shared secret on trigger requests.
const SchedulerTokenHeader = "X-Scheduler-Token"

// NewSchedulerAuthMiddleware returns a middleware that guards the internal
// trigger endpoints with a shared token. The comparison is constant time.
// An empty configured token rejects every request.
func NewSchedulerAuthMiddleware(token string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(SchedulerTokenHeader)
			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				slog.Warn("scheduler auth rejected",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
