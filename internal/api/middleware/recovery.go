package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/nflow-health/nflow/internal/pkg/errors"
	"github.com/nflow-health/nflow/internal/pkg/logger"
	"github.com/nflow-health/nflow/internal/pkg/utils"
)

// Recovery turns a handler panic into a 500 envelope. http.ErrAbortHandler
// is re-raised so net/http can drop the connection as intended.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	log = log.Component("recovery")
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

				fields := map[string]interface{}{
					"stack":      string(debug.Stack()),
					"method":     r.Method,
					"path":       r.URL.Path,
					"request_id": GetRequestID(r),
				}
				if id, ok := GetUserID(r); ok {
					fields["user_id"] = id
				}
				if name, ok := GetUsername(r); ok {
					fields["username"] = name
				}
				err := fmt.Errorf("panic: %v", rec)
				log.WithFields(fields).ErrorWithErr(err, "Panic recovered")

				utils.WriteError(w, errors.Internal("Internal server error", err))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
