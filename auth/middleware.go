package auth

import (
	"encoding/json"
	"net/http"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/observe"
)

// Middleware rejects requests a does not authenticate with 401 and a JSON
// error body. A nil authenticator disables authentication: every request
// carries the Anonymous identity.
func Middleware(a Authenticator, logger observe.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), Anonymous())))
				return
			}

			res, err := a.Authenticate(r.Context(), r.Header)
			if err != nil {
				logger.Error(r.Context(), "authentication failed", observe.Field{Key: "error", Value: err})
				writeUnauthorized(w, "authentication unavailable")
				return
			}
			if !res.OK() {
				logger.Debug(r.Context(), "request rejected",
					observe.Field{Key: "path", Value: r.URL.Path},
					observe.Field{Key: "reason", Value: res.Err},
				)
				writeUnauthorized(w, res.Err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), res.Identity)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="researchflow"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
