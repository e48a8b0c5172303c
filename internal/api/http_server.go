package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ferrybook/internal/config"
	"ferrybook/internal/service"

	"github.com/rs/zerolog"
)

// Services are the application services the HTTP API exposes.
type Services struct {
	Bookings  *service.BookingService
	Payments  *service.PaymentService
	Refunds   *service.RefundService
	Schedules *service.ScheduleService
	Sweeps    *service.SweepService
	Access    *service.RouteAccessService
}

// ReadinessCheck reports whether a backing dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

// HTTPServer exposes the booking API over HTTP.
type HTTPServer struct {
	cfg    config.APIConfig
	svc    Services
	ready  map[string]ReadinessCheck
	server *http.Server
	auth   *HTTPAuth
	logger *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, ready map[string]ReadinessCheck, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{cfg: cfg, svc: svc, ready: ready, logger: logger}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", route(srv.handleHealth))
	mux.HandleFunc("GET /readyz", route(srv.handleReady))

	mux.HandleFunc("POST /api/v1/bookings", route(srv.handleCreateBooking))
	mux.HandleFunc("GET /api/v1/bookings", route(srv.handleListBookings))
	mux.HandleFunc("GET /api/v1/bookings/{id}", route(srv.handleGetBooking))
	mux.HandleFunc("GET /api/v1/bookings/code/{code}", route(srv.handleGetBookingByCode))
	mux.HandleFunc("POST /api/v1/bookings/{id}/status", route(srv.handleUpdateStatus))
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", route(srv.handleCancelBooking))
	mux.HandleFunc("POST /api/v1/bookings/{id}/checkout", route(srv.handleCheckout))
	mux.HandleFunc("GET /api/v1/bookings/{id}/refund-quote", route(srv.handleRefundQuote))
	mux.HandleFunc("POST /api/v1/bookings/{id}/refunds", route(srv.handleRequestRefund))
	mux.HandleFunc("POST /api/v1/refunds/{id}/{action}", route(srv.handleRefundAction))
	mux.HandleFunc("POST /api/v1/tickets/{id}/check-in", route(srv.handleCheckIn))

	mux.HandleFunc("GET /api/v1/schedules/{id}/dates/{date}", route(srv.handleAvailability))
	mux.HandleFunc("PUT /api/v1/schedules/{id}/dates/{date}/status", route(srv.handleSetDateStatus))
	mux.HandleFunc("GET /api/v1/schedules/{id}/upcoming", route(srv.handleUpcoming))

	mux.HandleFunc("POST /api/v1/payments/notification", route(srv.handlePaymentNotification))
	mux.HandleFunc("POST /api/v1/payments/{id}/refresh", route(srv.handleRefreshPayment))

	mux.HandleFunc("PUT /api/v1/operators/{id}/routes/{route_id}", route(srv.handleAssignRoute))
	mux.HandleFunc("DELETE /api/v1/operators/{id}/routes/{route_id}", route(srv.handleRevokeRoute))

	mux.HandleFunc("POST /api/v1/maintenance/sync-booking-status", route(srv.handleSyncBookingStatus))
	mux.HandleFunc("POST /api/v1/maintenance/expire-tickets", route(srv.handleExpireTickets))

	handler := loggingMiddleware(logger, recoverMiddleware(srv.auth.Wrap(mux, isPublic)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	return srv
}

// isPublic lists routes served without an API key. The payment webhook is
// authenticated by its signature instead.
func isPublic(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/readyz", "/api/v1/payments/notification":
		return true
	}
	return false
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.ready))
	statusCode := http.StatusOK
	for name, check := range s.ready {
		if err := check(ctx); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("check", name).Msg("readiness check failed")
			checks[name] = "unavailable"
			statusCode = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, statusCode, map[string]any{"ready": statusCode == http.StatusOK, "checks": checks})
}
