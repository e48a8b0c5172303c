package models

import (
	"fmt"
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "PENDING"
	PaymentSuccess       PaymentStatus = "SUCCESS"
	PaymentFailed        PaymentStatus = "FAILED"
	PaymentRefunded      PaymentStatus = "REFUNDED"
	PaymentPartialRefund PaymentStatus = "PARTIAL_REFUND"
)

type Payment struct {
	ID                    int64         `json:"id"`
	BookingID             int64         `json:"booking_id"`
	OrderID               string        `json:"order_id"`
	Amount                int64         `json:"amount"`
	Method                string        `json:"method,omitempty"`
	Channel               string        `json:"channel,omitempty"`
	Status                PaymentStatus `json:"status"`
	ExternalTransactionID string        `json:"external_transaction_id,omitempty"`
	SnapToken             string        `json:"snap_token,omitempty"`
	PaymentDate           *time.Time    `json:"payment_date,omitempty"`
	ExpiresAt             *time.Time    `json:"expires_at,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// IsExpired is true for a PENDING payment past its expiry.
func (p *Payment) IsExpired(now time.Time) bool {
	return p.Status == PaymentPending && p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

type RefundStatus string

const (
	RefundPending    RefundStatus = "PENDING"
	RefundApproved   RefundStatus = "APPROVED"
	RefundRejected   RefundStatus = "REJECTED"
	RefundProcessing RefundStatus = "PROCESSING"
	RefundCompleted  RefundStatus = "COMPLETED"
	RefundCancelled  RefundStatus = "CANCELLED"
)

var refundTransitions = map[RefundStatus][]RefundStatus{
	RefundPending:    {RefundApproved, RefundRejected, RefundCancelled},
	RefundApproved:   {RefundProcessing, RefundCompleted, RefundCancelled},
	RefundProcessing: {RefundCompleted},
}

func (s RefundStatus) CanTransitionTo(next RefundStatus) bool {
	for _, allowed := range refundTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s RefundStatus) IsOpen() bool {
	return s == RefundPending || s == RefundApproved || s == RefundProcessing
}

func ParseRefundStatus(raw string) (RefundStatus, error) {
	switch st := RefundStatus(strings.ToUpper(strings.TrimSpace(raw))); st {
	case RefundPending, RefundApproved, RefundRejected, RefundProcessing, RefundCompleted, RefundCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown refund status %q", raw)
	}
}

type Refund struct {
	ID              int64        `json:"id"`
	BookingID       int64        `json:"booking_id"`
	PaymentID       int64        `json:"payment_id"`
	OriginalAmount  int64        `json:"original_amount"`
	Fee             int64        `json:"fee"`
	Percentage      float64      `json:"percentage"`
	RefundAmount    int64        `json:"refund_amount"`
	Status          RefundStatus `json:"status"`
	Reason          string       `json:"reason"`
	Description     string       `json:"description"`
	RequestedByType ActorType    `json:"requested_by_type"`
	RequestedByID   *int64       `json:"requested_by_id,omitempty"`
	ProcessedAt     *time.Time   `json:"processed_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

type RefundPolicy struct {
	ID                  int64 `json:"id" yaml:"-"`
	DaysBeforeDeparture int   `json:"days_before_departure" yaml:"days_before_departure"`
	RefundPercentage    int   `json:"refund_percentage" yaml:"refund_percentage"`
	MinFee              int64 `json:"min_fee" yaml:"min_fee"`
	MaxFee              int64 `json:"max_fee" yaml:"max_fee"`
	IsActive            bool  `json:"is_active" yaml:"active"`
}
