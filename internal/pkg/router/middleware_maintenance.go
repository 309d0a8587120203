package router

import (
	"net/http"
	"slices"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
)

// middlewareMaintenance reads its settings on every request so a config
// reload takes effect without a restart. "app.maintenance.enabled" closes
// every route except "/"; "app.maintenance.endpoints" closes listed routes.
func middlewareMaintenance(cfg config.Config) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg == nil {
				next.ServeHTTP(w, r)
				return
			}

			route := matchedRoute(r)
			blocked := cfg.GetBool("app.maintenance.enabled") && route != "/"
			if !blocked {
				blocked = slices.ContainsFunc(cfg.GetArray("app.maintenance.endpoints"), func(e string) bool {
					return strings.TrimSpace(e) == route
				})
			}

			if blocked {
				writeJSON(w, errorResponse{Message: "service is under maintenance"}, http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
