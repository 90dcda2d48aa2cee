package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/smukkama/water-quality-server/internal/connection"
	"github.com/smukkama/water-quality-server/internal/monitoring"
)

// StationLister reports the stations connected over TCP
type StationLister interface {
	Snapshot() []connection.StationInfo
}

// RouteManager owns the HTTP API routes
type RouteManager struct {
	service        *monitoring.Service
	stations       StationLister
	live           http.Handler
	allowedOrigins []string
	logger         *zap.Logger
	Router         *mux.Router
}

// NewRouteManager creates a RouteManager. stations and live may be nil, in
// which case their routes report an empty list and 404 respectively.
func NewRouteManager(
	service *monitoring.Service,
	stations StationLister,
	live http.Handler,
	allowedOrigins []string,
	logger *zap.Logger,
) *RouteManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouteManager{
		service:        service,
		stations:       stations,
		live:           live,
		allowedOrigins: allowedOrigins,
		logger:         logger,
		Router:         mux.NewRouter(),
	}
}

// Setup configures all routes
func (rm *RouteManager) Setup() {
	r := rm.Router
	r.Use(rm.recoverMiddleware)
	r.Use(rm.loggingMiddleware)
	r.Use(rm.corsMiddleware)

	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.HandleFunc("/health", rm.healthHandler).Methods(http.MethodGet)
	if rm.live != nil {
		r.Handle("/ws", rm.live).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	rm.setupAPIRoutes(api)
}

func (rm *RouteManager) setupAPIRoutes(api *mux.Router) {
	// Readings
	api.HandleFunc("/readings", rm.submitReadingHandler).Methods(http.MethodPost)
	api.HandleFunc("/readings/simulate", rm.simulateReadingHandler).Methods(http.MethodPost)
	api.HandleFunc("/readings/export", rm.exportReadingsHandler).Methods(http.MethodGet)
	api.HandleFunc("/readings", rm.getReadingsHandler).Methods(http.MethodGet)
	api.HandleFunc("/water-quality/latest", rm.latestWaterQualityHandler).Methods(http.MethodGet)
	api.HandleFunc("/thresholds", rm.thresholdsHandler).Methods(http.MethodGet)

	// Risk
	api.HandleFunc("/disease-risk/latest", rm.latestDiseaseRiskHandler).Methods(http.MethodGet)

	// Alerts
	api.HandleFunc("/alerts", rm.getAlertsHandler).Methods(http.MethodGet)
	api.HandleFunc("/alerts/{id}/acknowledge", rm.acknowledgeAlertHandler).Methods(http.MethodPost)

	// Summaries
	api.HandleFunc("/summaries/hourly", rm.hourlySummariesHandler).Methods(http.MethodGet)
	api.HandleFunc("/summaries/daily", rm.dailySummariesHandler).Methods(http.MethodGet)

	api.HandleFunc("/stations", rm.stationsHandler).Methods(http.MethodGet)
}
