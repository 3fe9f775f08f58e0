package route

import (
	"net/http"

	"github.com/gorilla/mux"

	"hazardcam/internal/config"
	"hazardcam/internal/handler"
	"hazardcam/internal/logger"
	"hazardcam/internal/metrics"
	"hazardcam/internal/middleware"
	"hazardcam/internal/repository"
	"hazardcam/internal/service/relay"
	"hazardcam/internal/service/storage"
	"hazardcam/internal/service/websocket"
)

// Services are the long-lived components the routes are served from.
// Metrics and the repositories may be nil.
type Services struct {
	Relay         *relay.Relay
	Hub           *websocket.HubService
	Store         *storage.Store
	CaptureRepo   repository.CaptureRepository
	DetectionRepo repository.DetectionRepository
	Metrics       *metrics.Metrics
}

// SetupRoutes registers the stream, catalog, alert, log and auth endpoints
// and wraps the router with the authentication middleware.
func SetupRoutes(svc Services, cfg *config.Config, logger *logger.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(mux.MiddlewareFunc(middleware.AuthMiddleware(cfg.Password)))

	// Relay and viewers
	r.HandleFunc("/ws", handler.StreamWebsocketHandler(svc.Relay, logger))
	r.HandleFunc("/api/alerts", handler.AlertsWebsocketHandler(svc.Hub, logger))

	// Catalog
	api := r.PathPrefix("/api/captures").Subrouter()
	api.HandleFunc("", handler.ListCapturesHandler(svc.Store, svc.CaptureRepo, svc.DetectionRepo, logger)).Methods(http.MethodGet)
	api.HandleFunc("/stats", handler.CaptureStatsHandler(svc.Store, svc.DetectionRepo, logger)).Methods(http.MethodGet)
	api.HandleFunc("/{filename}", handler.DeleteCaptureHandler(svc.Store, logger)).Methods(http.MethodDelete)
	if svc.CaptureRepo != nil && svc.DetectionRepo != nil {
		api.HandleFunc("/{filename}/detections", handler.CaptureDetectionsHandler(svc.CaptureRepo, svc.DetectionRepo, logger)).Methods(http.MethodGet)
	}
	r.HandleFunc(handler.CaptureURLPrefix+"/{filename}", handler.ViewCaptureHandler(svc.Store)).Methods(http.MethodGet)

	// Log endpoints
	r.HandleFunc("/logs/{level:info|warning|error}", handler.ShowLogsHandler(logger.Dir())).Methods(http.MethodGet)
	r.HandleFunc("/logs/{level:info|warning|error}/clear", handler.ClearLogsHandler(logger)).Methods(http.MethodPost)

	// Auth endpoints
	r.HandleFunc("/auth/login", handler.LoginHandler(cfg, logger)).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", handler.LogoutHandler).Methods(http.MethodGet, http.MethodPost)

	if svc.Metrics != nil {
		r.Handle("/metrics", svc.Metrics.Handler()).Methods(http.MethodGet)
	}

	return r
}
