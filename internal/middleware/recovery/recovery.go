// Package recovery turns handler panics into 500 responses.
package recovery

import (
	"net/http"
	"runtime/debug"

	applog "spendwise/internal/log"
)

// Middleware recovers panics, logs them with the stack and replies with
// onPanic, or a plain 500 when onPanic is nil. http.ErrAbortHandler is
// re-raised so the server can drop the connection.
func Middleware(onPanic func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				applog.FromContext(r.Context()).ErrorContext(r.Context(), "Panic recovered",
					"panic", rec,
					applog.FieldMethod, r.Method,
					applog.FieldPath, r.URL.Path,
					"stack", string(debug.Stack()))

				if onPanic != nil {
					onPanic(w, r)
					return
				}
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
