package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ferrybook/internal/models"
)

const refundColumns = `id, booking_id, payment_id, original_amount, fee, percentage, refund_amount, status, reason,
        description, requested_by_type, requested_by_id, processed_at, created_at, updated_at`

func scanRefund(row interface{ Scan(...any) error }) (*models.Refund, error) {
	var (
		r           models.Refund
		requestedBy sql.NullInt64
		processedAt sql.NullTime
	)
	err := row.Scan(&r.ID, &r.BookingID, &r.PaymentID, &r.OriginalAmount, &r.Fee, &r.Percentage, &r.RefundAmount,
		&r.Status, &r.Reason, &r.Description, &r.RequestedByType, &requestedBy, &processedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.RequestedByID = int64Ptr(requestedBy)
	r.ProcessedAt = timePtr(processedAt)
	return &r, nil
}

func (s *Store) CreateRefund(ctx context.Context, r *models.Refund) error {
	if r.Status == "" {
		r.Status = models.RefundPending
	}
	now := s.now()
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO refunds (booking_id, payment_id, original_amount, fee, percentage, refund_amount, status, reason,
            description, requested_by_type, requested_by_id, processed_at, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BookingID, r.PaymentID, r.OriginalAmount, r.Fee, r.Percentage, r.RefundAmount, string(r.Status), r.Reason,
		r.Description, string(r.RequestedByType), nullInt64(r.RequestedByID), nullTime(r.ProcessedAt), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create refund: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

func (s *Store) GetRefund(ctx context.Context, id int64) (*models.Refund, error) {
	r, err := scanRefund(s.q.QueryRowContext(ctx, `SELECT `+refundColumns+` FROM refunds WHERE id = ?`, id))
	if err != nil {
		return nil, notFound("refund", id, err)
	}
	return r, nil
}

func (s *Store) ListRefunds(ctx context.Context, bookingID int64) ([]*models.Refund, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+refundColumns+` FROM refunds WHERE booking_id = ? ORDER BY id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	defer rows.Close()

	var refunds []*models.Refund
	for rows.Next() {
		r, err := scanRefund(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan refund: %w", err)
		}
		refunds = append(refunds, r)
	}
	return refunds, rows.Err()
}

// UpdateRefundStatus moves a refund from one status to the next. It reports
// false when the refund was no longer in from.
func (s *Store) UpdateRefundStatus(ctx context.Context, id int64, from, to models.RefundStatus, processedAt *time.Time) (bool, error) {
	result, err := s.q.ExecContext(ctx,
		`UPDATE refunds SET status = ?, processed_at = COALESCE(?, processed_at), updated_at = ? WHERE id = ? AND status = ?`,
		string(to), nullTime(processedAt), s.now(), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update refund status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *Store) ListRefundPolicies(ctx context.Context, activeOnly bool) ([]models.RefundPolicy, error) {
	query := `SELECT id, days_before_departure, refund_percentage, min_fee, max_fee, is_active FROM refund_policies`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY days_before_departure DESC`

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list refund policies: %w", err)
	}
	defer rows.Close()

	var policies []models.RefundPolicy
	for rows.Next() {
		var p models.RefundPolicy
		if err := rows.Scan(&p.ID, &p.DaysBeforeDeparture, &p.RefundPercentage, &p.MinFee, &p.MaxFee, &p.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan refund policy: %w", err)
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// ReplaceRefundPolicies swaps the policy table for the given rows.
func (s *Store) ReplaceRefundPolicies(ctx context.Context, policies []models.RefundPolicy) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM refund_policies`); err != nil {
		return fmt.Errorf("failed to clear refund policies: %w", err)
	}
	for i := range policies {
		p := &policies[i]
		result, err := s.q.ExecContext(ctx,
			`INSERT INTO refund_policies (days_before_departure, refund_percentage, min_fee, max_fee, is_active) VALUES (?, ?, ?, ?, ?)`,
			p.DaysBeforeDeparture, p.RefundPercentage, p.MinFee, p.MaxFee, p.IsActive,
		)
		if err != nil {
			return fmt.Errorf("failed to insert refund policy: %w", err)
		}
		if p.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}
	return nil
}
