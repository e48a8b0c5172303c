package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ferrybook/internal/domain"
	"ferrybook/internal/models"
	"ferrybook/internal/service"
)

type statusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type refundRequest struct {
	Reason string `json:"reason"`
	Force  bool   `json:"force"`
}

type refundActionRequest struct {
	Notes string `json:"notes"`
}

type dateStatusRequest struct {
	Status    string     `json:"status"`
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func actorOf(r *http.Request) models.Actor {
	actor, _ := ActorFromContext(r.Context())
	return actor
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var in service.CreateBookingInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}

	details, err := s.svc.Bookings.CreateBooking(r.Context(), actorOf(r), in, clientIP(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, details)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			writeServiceError(w, r, domain.ValidationError{Field: "limit", Msg: "must be between 1 and 200"})
			return
		}
		limit = n
	}

	bookings, err := s.svc.Bookings.ListUserBookings(r.Context(), actorOf(r), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	details, err := s.svc.Bookings.GetBooking(r.Context(), actorOf(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *HTTPServer) handleGetBookingByCode(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(r.PathValue("code")))
	details, err := s.svc.Bookings.GetBookingByCode(r.Context(), actorOf(r), code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *HTTPServer) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var body statusRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, r, err)
		return
	}

	to := models.BookingStatus(strings.ToUpper(strings.TrimSpace(body.Status)))
	booking, err := s.svc.Bookings.UpdateStatus(r.Context(), id, to, actorOf(r), body.Notes, clientIP(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var body cancelRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, r, err)
		return
	}

	booking, err := s.svc.Bookings.CancelBooking(r.Context(), id, actorOf(r), body.Reason, clientIP(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCheckout(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	session, err := s.svc.Payments.Checkout(r.Context(), id, actorOf(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *HTTPServer) handleRefundQuote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	quote, err := s.svc.Refunds.Quote(r.Context(), id, actorOf(r), force)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *HTTPServer) handleRequestRefund(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var body refundRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, r, err)
		return
	}

	refund, err := s.svc.Refunds.Request(r.Context(), id, actorOf(r), body.Reason, body.Force, clientIP(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, refund)
}

func (s *HTTPServer) handleRefundAction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var body refundActionRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, r, err)
		return
	}

	ctx, actor, ip := r.Context(), actorOf(r), clientIP(r)
	var refund *models.Refund
	switch r.PathValue("action") {
	case "approve":
		refund, err = s.svc.Refunds.Approve(ctx, id, actor, body.Notes, ip)
	case "reject":
		refund, err = s.svc.Refunds.Reject(ctx, id, actor, body.Notes, ip)
	case "process":
		refund, err = s.svc.Refunds.Process(ctx, id, actor, body.Notes, ip)
	case "complete":
		refund, err = s.svc.Refunds.Complete(ctx, id, actor, body.Notes, ip)
	case "cancel":
		refund, err = s.svc.Refunds.Cancel(ctx, id, actor, body.Notes, ip)
	default:
		writeError(w, http.StatusNotFound, "unknown refund action")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refund)
}

func (s *HTTPServer) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	ticket, err := s.svc.Bookings.CheckIn(r.Context(), id, actorOf(r), clientIP(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func pathDate(r *http.Request) (time.Time, error) {
	date, err := models.ParseDate(r.PathValue("date"))
	if err != nil {
		return time.Time{}, domain.ValidationError{Field: "date", Msg: "invalid date format; expected YYYY-MM-DD", Err: err}
	}
	return date, nil
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	date, err := pathDate(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	availability, err := s.svc.Schedules.Availability(r.Context(), id, date)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, availability)
}

func (s *HTTPServer) handleSetDateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	date, err := pathDate(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var body dateStatusRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, r, err)
		return
	}
	status, err := models.ParseScheduleDateStatus(body.Status)
	if err != nil {
		writeServiceError(w, r, domain.ValidationError{Field: "status", Msg: err.Error(), Err: err})
		return
	}

	sd, err := s.svc.Schedules.SetDateStatus(r.Context(), id, date, status, body.Reason, body.ExpiresAt, actorOf(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sd)
}

func (s *HTTPServer) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	from := models.DateOnly(time.Now().UTC())
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = models.ParseDate(raw); err != nil {
			writeServiceError(w, r, domain.ValidationError{Field: "from", Msg: "invalid date format; expected YYYY-MM-DD", Err: err})
			return
		}
	}
	n := 7
	if raw := r.URL.Query().Get("n"); raw != "" {
		if n, err = strconv.Atoi(raw); err != nil || n < 1 || n > 60 {
			writeServiceError(w, r, domain.ValidationError{Field: "n", Msg: "must be between 1 and 60"})
			return
		}
	}

	dates, err := s.svc.Schedules.Upcoming(r.Context(), id, from, n)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedule_id": id, "dates": dates})
}

func (s *HTTPServer) handlePaymentNotification(w http.ResponseWriter, r *http.Request) {
	// the gateway sends many more fields than we read
	var n domain.GatewayStatus
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&n); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.svc.Payments.HandleNotification(r.Context(), &n); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleRefreshPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	payment, err := s.svc.Payments.RefreshStatus(r.Context(), id, actorOf(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func (s *HTTPServer) handleAssignRoute(w http.ResponseWriter, r *http.Request) {
	s.changeOperatorRoute(w, r, s.svc.Access.Assign)
}

func (s *HTTPServer) handleRevokeRoute(w http.ResponseWriter, r *http.Request) {
	s.changeOperatorRoute(w, r, s.svc.Access.Revoke)
}

func (s *HTTPServer) changeOperatorRoute(w http.ResponseWriter, r *http.Request, change func(ctx context.Context, operatorID, routeID int64) error) {
	if !actorOf(r).IsAdmin() {
		writeServiceError(w, r, domain.ErrForbidden)
		return
	}
	operatorID, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	routeID, err := pathID(r, "route_id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := change(r.Context(), operatorID, routeID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleSyncBookingStatus(w http.ResponseWriter, r *http.Request) {
	s.runSweep(w, r, s.svc.Sweeps.SyncBookingStatus)
}

func (s *HTTPServer) handleExpireTickets(w http.ResponseWriter, r *http.Request) {
	s.runSweep(w, r, s.svc.Sweeps.ExpireTickets)
}

func (s *HTTPServer) runSweep(w http.ResponseWriter, r *http.Request, sweep func(ctx context.Context) (service.SweepResult, error)) {
	actor := actorOf(r)
	if !actor.IsAdmin() && !actor.IsSystem() {
		writeServiceError(w, r, domain.ErrForbidden)
		return
	}

	res, err := sweep(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
