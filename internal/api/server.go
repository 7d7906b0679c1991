package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"campusres/internal/advisory"
	"campusres/internal/config"
	"campusres/internal/export"
	"campusres/internal/service"
	"campusres/internal/worker"

	"github.com/rs/zerolog"
)

// Services are the use cases the HTTP layer dispatches to. Advisor and
// Advisory may be nil; advisory routes then answer "unavailable".
type Services struct {
	Users        *service.UserService
	Catalog      *service.CatalogService
	Reservations *service.ReservationService
	Reports      *service.ReportService
	Dashboard    *service.DashboardService
	Exporter     *export.Exporter
	Advisor      *advisory.Advisor
	Advisory     *worker.AdvisoryWorker
}

// defaultMaxBodyBytes caps request bodies when the config leaves it unset.
const defaultMaxBodyBytes = 1 << 20

type Server struct {
	cfg     config.APIConfig
	svc     Services
	tokens  *TokenIssuer
	limiter *rateLimiter
	server  *http.Server
	logger  *zerolog.Logger
}

func NewServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		tokens:  NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		limiter: newRateLimiter(cfg.RateLimit),
		logger:  logger,
	}
	if s.cfg.HTTP.MaxBodyBytes <= 0 {
		s.cfg.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/v1/login", s.handleLogin)

	mux.HandleFunc("GET /api/v1/catalog/equipment", s.authed(s.handleListEquipment))
	mux.HandleFunc("GET /api/v1/catalog/spaces", s.authed(s.handleListSpaces))
	mux.HandleFunc("GET /api/v1/catalog/categories", s.authed(s.handleListCategories))
	mux.HandleFunc("GET /api/v1/catalog/space-types", s.authed(s.handleListSpaceTypes))
	mux.HandleFunc("POST /api/v1/admin/catalog/{kind}", s.admin(s.handleSaveCatalog))
	mux.HandleFunc("PUT /api/v1/admin/catalog/{kind}/{id}", s.admin(s.handleSaveCatalog))
	mux.HandleFunc("DELETE /api/v1/admin/catalog/{kind}/{id}", s.admin(s.handleDeleteCatalog))

	mux.HandleFunc("POST /api/v1/reservations", s.authed(s.handleSubmitReservation))
	mux.HandleFunc("GET /api/v1/reservations/mine", s.authed(s.handleMyReservations))
	mux.HandleFunc("GET /api/v1/reservations/{id}", s.authed(s.handleGetReservation))
	mux.HandleFunc("GET /api/v1/spaces/{id}/calendar", s.authed(s.handleSpaceCalendar))
	mux.HandleFunc("GET /api/v1/resources/{kind}/{id}/week", s.authed(s.handleWeekAvailability))
	mux.HandleFunc("GET /api/v1/admin/reservations/pending", s.admin(s.handlePendingReservations))
	mux.HandleFunc("POST /api/v1/admin/reservations/{id}/approve", s.admin(s.handleApprove))
	mux.HandleFunc("POST /api/v1/admin/reservations/{id}/reject", s.admin(s.handleReject))
	mux.HandleFunc("GET /api/v1/admin/reservations/export", s.admin(s.handleExport))

	mux.HandleFunc("POST /api/v1/reports", s.authed(s.handleCreateReport))
	mux.HandleFunc("GET /api/v1/reports", s.authed(s.handleListReports))
	mux.HandleFunc("GET /api/v1/reports/{id}/messages", s.authed(s.handleReportMessages))
	mux.HandleFunc("POST /api/v1/reports/{id}/messages", s.authed(s.handleAddReportMessage))
	mux.HandleFunc("POST /api/v1/admin/reports/{id}/status", s.admin(s.handleReportStatus))

	mux.HandleFunc("GET /api/v1/admin/dashboard", s.admin(s.handleDashboard))
	mux.HandleFunc("GET /api/v1/admin/users", s.admin(s.handleListUsers))
	mux.HandleFunc("POST /api/v1/admin/users", s.admin(s.handleCreateUser))

	mux.HandleFunc("POST /api/v1/advisory/recommendation", s.authed(s.handleRecommendation))
	mux.HandleFunc("POST /api/v1/advisory/spaces/{id}", s.authed(s.handleSpaceSummary))
	mux.HandleFunc("POST /api/v1/admin/advisory/dashboard", s.admin(s.handleDashboardSummary))
	mux.HandleFunc("POST /api/v1/admin/advisory/users", s.admin(s.handleUserAnalysis))
	mux.HandleFunc("GET /api/v1/advisory/{key}", s.authed(s.handleAdvisoryOutcome))

	return s.requestID(s.logging(s.recoverer(s.rateLimit(s.limitBody(mux)))))
}

func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
