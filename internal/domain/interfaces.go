package domain

import (
	"context"
	"time"

	"ferrybook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Store is the set of queries available both on the pool and inside a transaction.
type Store interface {
	CreateRoute(ctx context.Context, route *models.Route) error
	GetRoute(ctx context.Context, id int64) (*models.Route, error)
	CreateFerry(ctx context.Context, ferry *models.Ferry) error
	GetFerry(ctx context.Context, id int64) (*models.Ferry, error)
	CreateSchedule(ctx context.Context, schedule *models.Schedule) error
	GetSchedule(ctx context.Context, id int64) (*models.Schedule, error)
	CreateVehicleCategory(ctx context.Context, category *models.VehicleCategory) error
	GetVehicleCategory(ctx context.Context, id int64) (*models.VehicleCategory, error)
	AssignOperatorRoute(ctx context.Context, operatorID, routeID int64) error
	RevokeOperatorRoute(ctx context.Context, operatorID, routeID int64) error
	ListOperatorRoutes(ctx context.Context, operatorID int64) ([]int64, error)

	EnsureScheduleDate(ctx context.Context, scheduleID int64, date time.Time) (*models.ScheduleDate, error)
	GetScheduleDate(ctx context.Context, scheduleID int64, date time.Time) (*models.ScheduleDate, error)
	ReserveCapacity(ctx context.Context, sd *models.ScheduleDate, capacity, load models.CapacityLoad) error
	ReleaseCapacity(ctx context.Context, scheduleID int64, date time.Time, load models.CapacityLoad) error
	SetScheduleDateStatus(ctx context.Context, sdID int64, status models.ScheduleDateStatus, reason string, expiresAt *time.Time) error

	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByCode(ctx context.Context, code string) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id, version int64, status models.BookingStatus, reason *string) error
	ListDepartedBookings(ctx context.Context, status models.BookingStatus, day time.Time) ([]*models.Booking, error)
	ListStaleConfirmedBookings(ctx context.Context, day time.Time) ([]*models.Booking, error)
	ListUserBookings(ctx context.Context, userID int64, limit int) ([]*models.Booking, error)
	CountBookingsByStatus(ctx context.Context, scheduleID int64, date time.Time) (map[models.BookingStatus]int, error)

	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	GetTicket(ctx context.Context, id int64) (*models.Ticket, error)
	ListTickets(ctx context.Context, bookingID int64) ([]*models.Ticket, error)
	SetTicketsStatus(ctx context.Context, bookingID int64, status models.TicketStatus, except ...models.TicketStatus) (int64, error)
	CheckInTicket(ctx context.Context, id int64, at time.Time) (bool, error)
	CountTicketsAwaitingCheckIn(ctx context.Context, bookingID int64) (int, error)
	CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error
	ListVehicles(ctx context.Context, bookingID int64) ([]*models.Vehicle, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, id int64) (*models.Payment, error)
	GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	ListPayments(ctx context.Context, bookingID int64) ([]*models.Payment, error)
	SettlePendingPayments(ctx context.Context, bookingID int64, status models.PaymentStatus, paidAt *time.Time) (int64, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status models.PaymentStatus, externalID, method string, paidAt *time.Time) error
	SetPaymentToken(ctx context.Context, id int64, token string) error

	CreateRefund(ctx context.Context, refund *models.Refund) error
	GetRefund(ctx context.Context, id int64) (*models.Refund, error)
	ListRefunds(ctx context.Context, bookingID int64) ([]*models.Refund, error)
	UpdateRefundStatus(ctx context.Context, id int64, from, to models.RefundStatus, processedAt *time.Time) (bool, error)
	ListRefundPolicies(ctx context.Context, activeOnly bool) ([]models.RefundPolicy, error)
	ReplaceRefundPolicies(ctx context.Context, policies []models.RefundPolicy) error

	InsertBookingLog(ctx context.Context, log *models.BookingLog) error
	ListBookingLogs(ctx context.Context, bookingID int64) ([]*models.BookingLog, error)
}

// Repository is a Store that can open transactions. The Store handed to fn is
// the only one that may be used until fn returns.
type Repository interface {
	Store
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Locker hands out short leases keyed by name. Release only succeeds for the
// token returned by the matching Acquire.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// RouteAccessPolicy decides whether an operator may act on bookings of a route.
type RouteAccessPolicy interface {
	CanAccess(ctx context.Context, actor models.Actor, routeID int64) (bool, error)
}

type PaymentSession struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// GatewayStatus is the gateway's view of a transaction, as delivered by a
// notification or a status query.
type GatewayStatus struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
}

type PaymentGateway interface {
	CreateTransaction(ctx context.Context, booking *models.Booking, payment *models.Payment) (*PaymentSession, error)
	GetTransactionStatus(ctx context.Context, orderID string) (*GatewayStatus, error)
	VerifyNotification(n *GatewayStatus) bool
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramClient is the subset of the bot API the operator bot polls with.
type TelegramClient interface {
	TelegramSender
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetSelf() tgbotapi.User
}
