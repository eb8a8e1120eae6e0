package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	apperrors "barberline/pkg/errors"
	httputil "barberline/pkg/http"
	"barberline/pkg/logger"
)

// Recovery turns a panicking handler into a 500. http.ErrAbortHandler is
// re-raised so the server can abort the connection as intended.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
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

				log.Error("Panic recovered",
					"request_id", requestIDFrom(r),
					logger.CALL_ID, r.PostForm.Get("CallSid"),
					"panic", fmt.Sprint(rec),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				_ = httputil.WriteError(w, apperrors.Internal("panic", fmt.Errorf("%v", rec)))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
