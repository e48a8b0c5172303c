// Package payment talks to the Midtrans payment gateway.
package payment

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"ferrybook/internal/config"
	"ferrybook/internal/domain"
	"ferrybook/internal/models"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/rs/zerolog"
)

const expiryLayout = "2006-01-02 15:04:05 -0700"

type snapClient interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

type coreClient interface {
	CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, *midtrans.Error)
}

// MidtransGateway implements domain.PaymentGateway with Snap checkout and
// Core API status queries.
type MidtransGateway struct {
	snap      snapClient
	core      coreClient
	serverKey string
	finishURL string
	logger    *zerolog.Logger
	now       func() time.Time
}

var _ domain.PaymentGateway = (*MidtransGateway)(nil)

func NewMidtransGateway(cfg config.PaymentConfig, logger *zerolog.Logger) *MidtransGateway {
	env := midtrans.Sandbox
	if cfg.Production {
		env = midtrans.Production
	}

	var s snap.Client
	s.New(cfg.ServerKey, env)

	var c coreapi.Client
	c.New(cfg.ServerKey, env)

	return &MidtransGateway{
		snap:      &s,
		core:      &c,
		serverKey: cfg.ServerKey,
		finishURL: cfg.FinishURL,
		logger:    logger,
		now:       time.Now,
	}
}

// gatewayError turns a midtrans error into a plain error. A nil *midtrans.Error
// must not leak into an error interface.
func gatewayError(op string, err *midtrans.Error) error {
	if err == nil {
		return nil
	}
	msg := err.GetMessage()
	if msg == "" && err.RawError != nil {
		msg = err.RawError.Error()
	}
	return fmt.Errorf("midtrans %s: status %d: %s", op, err.GetStatusCode(), msg)
}

func (g *MidtransGateway) CreateTransaction(ctx context.Context, booking *models.Booking, payment *models.Payment) (*domain.PaymentSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  payment.OrderID,
			GrossAmt: payment.Amount,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    booking.BookingCode,
				Name:  fmt.Sprintf("Ferry %s x%d", booking.DepartureDate.Format(models.DateLayout), booking.PassengerCount),
				Price: payment.Amount,
				Qty:   1,
			},
		},
		CreditCard: &snap.CreditCardDetails{
			Secure: true,
		},
		EnabledPayments: snap.AllSnapPaymentType,
	}
	if g.finishURL != "" {
		req.Callbacks = &snap.Callbacks{Finish: g.finishURL}
	}
	if payment.ExpiresAt != nil {
		now := g.now()
		if minutes := int64(payment.ExpiresAt.Sub(now).Minutes()); minutes > 0 {
			req.Expiry = &snap.ExpiryDetails{
				StartTime: now.Format(expiryLayout),
				Unit:      "minute",
				Duration:  minutes,
			}
		}
	}

	resp, mErr := g.snap.CreateTransaction(req)
	if err := gatewayError("create transaction", mErr); err != nil {
		return nil, err
	}
	if resp == nil || resp.Token == "" {
		return nil, errors.New("midtrans create transaction: empty token")
	}

	g.logger.Debug().Str("order_id", payment.OrderID).Msg("snap transaction created")
	return &domain.PaymentSession{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

func (g *MidtransGateway) GetTransactionStatus(ctx context.Context, orderID string) (*domain.GatewayStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, mErr := g.core.CheckTransaction(orderID)
	if err := gatewayError("check transaction", mErr); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("midtrans check transaction: empty response")
	}

	return &domain.GatewayStatus{
		OrderID:           resp.OrderID,
		TransactionID:     resp.TransactionID,
		TransactionStatus: resp.TransactionStatus,
		FraudStatus:       resp.FraudStatus,
		PaymentType:       resp.PaymentType,
		StatusCode:        resp.StatusCode,
		GrossAmount:       resp.GrossAmount,
		SignatureKey:      resp.SignatureKey,
	}, nil
}

// Signature computes SHA512(order_id + status_code + gross_amount + server_key) as hex.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func (g *MidtransGateway) VerifyNotification(n *domain.GatewayStatus) bool {
	if n == nil || n.SignatureKey == "" || g.serverKey == "" {
		return false
	}
	expected := Signature(n.OrderID, n.StatusCode, n.GrossAmount, g.serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(n.SignatureKey)) == 1
}
