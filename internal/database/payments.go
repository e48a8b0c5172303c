package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ferrybook/internal/domain"
	"ferrybook/internal/models"
)

const paymentColumns = `id, booking_id, order_id, amount, method, channel, status, external_transaction_id,
        snap_token, payment_date, expires_at, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	var (
		p       models.Payment
		paidAt  sql.NullTime
		expires sql.NullTime
	)
	err := row.Scan(&p.ID, &p.BookingID, &p.OrderID, &p.Amount, &p.Method, &p.Channel, &p.Status,
		&p.ExternalTransactionID, &p.SnapToken, &paidAt, &expires, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.PaymentDate = timePtr(paidAt)
	p.ExpiresAt = timePtr(expires)
	return &p, nil
}

func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	if p.Status == "" {
		p.Status = models.PaymentPending
	}
	now := s.now()
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO payments (booking_id, order_id, amount, method, channel, status, external_transaction_id,
            snap_token, payment_date, expires_at, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.BookingID, p.OrderID, p.Amount, p.Method, p.Channel, string(p.Status), p.ExternalTransactionID,
		p.SnapToken, nullTime(p.PaymentDate), nullTime(p.ExpiresAt), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	p, err := scanPayment(s.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
	if err != nil {
		return nil, notFound("payment", id, err)
	}
	return p, nil
}

func (s *Store) GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	p, err := scanPayment(s.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = ?`, orderID))
	if err != nil {
		return nil, notFound("payment", orderID, err)
	}
	return p, nil
}

func (s *Store) ListPayments(ctx context.Context, bookingID int64) ([]*models.Payment, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE booking_id = ? ORDER BY id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// SettlePendingPayments moves every PENDING payment of a booking to status.
func (s *Store) SettlePendingPayments(ctx context.Context, bookingID int64, status models.PaymentStatus, paidAt *time.Time) (int64, error) {
	result, err := s.q.ExecContext(ctx,
		`UPDATE payments SET status = ?, payment_date = COALESCE(?, payment_date), updated_at = ?
         WHERE booking_id = ? AND status = ?`,
		string(status), nullTime(paidAt), s.now(), bookingID, string(models.PaymentPending),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update pending payments: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// UpdatePaymentStatus sets status and gateway metadata of a single payment.
// Empty method or transaction id keep the stored values.
func (s *Store) UpdatePaymentStatus(ctx context.Context, id int64, status models.PaymentStatus, externalID, method string, paidAt *time.Time) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE payments SET status = ?,
            external_transaction_id = CASE WHEN ? = '' THEN external_transaction_id ELSE ? END,
            method = CASE WHEN ? = '' THEN method ELSE ? END,
            payment_date = COALESCE(?, payment_date),
            updated_at = ?
         WHERE id = ?`,
		string(status), externalID, externalID, method, method, nullTime(paidAt), s.now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.NotFoundError{Resource: "payment", ID: id}
	}
	return nil
}

func (s *Store) SetPaymentToken(ctx context.Context, id int64, token string) error {
	_, err := s.q.ExecContext(ctx, `UPDATE payments SET snap_token = ?, updated_at = ? WHERE id = ?`, token, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to store payment token: %w", err)
	}
	return nil
}
