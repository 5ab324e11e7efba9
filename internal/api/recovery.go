package api

import (
	"net/http"
	"runtime/debug"

	"github.com/comigor/conner-go/internal/logger"
)

// recoverMiddleware turns a handler panic into a 500 response.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.L.Error("panic recovered",
					"panic", rec,
					"method", r.Method,
					"url", r.URL.String(),
					"stack", string(debug.Stack()))
				writeError(w, http.StatusInternalServerError, msgGeneric)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
