package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"mercator-hq/localchat/pkg/api"
)

// RecoveryMiddleware turns a handler panic into a 500 response and logs the
// stack. http.ErrAbortHandler is re-raised so the server aborts the
// connection as usual.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := newResponseWriter(w)

		defer func() {
			err := recover()
			if err == nil {
				return
			}
			if err == http.ErrAbortHandler {
				panic(err)
			}

			slog.ErrorContext(r.Context(), "panic in handler",
				"error", err,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)

			// A streamed response has already committed its status.
			if rw.written {
				return
			}
			api.WriteError(rw, r, http.StatusInternalServerError, api.CodeInternal,
				"An internal error occurred. Please try again later.")
		}()

		next.ServeHTTP(rw, r)
	})
}
