// Package refund computes refund amounts from day-threshold policies.
package refund

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"ferrybook/internal/domain"
	"ferrybook/internal/models"
)

// Breakdown is the result of a refund calculation. Amounts are whole IDR.
type Breakdown struct {
	OriginalAmount int64   `json:"original_amount"`
	Percentage     float64 `json:"refund_percentage"`
	Fee            int64   `json:"fee"`
	RefundAmount   int64   `json:"refund_amount"`
	Description    string  `json:"description"`
	DaysBefore     int     `json:"days_before_departure"`
	PolicyID       int64   `json:"policy_id,omitempty"`
	Forced         bool    `json:"forced"`
}

// SelectPolicy picks the active policy with the largest threshold not above
// days. When days is below every threshold the closest threshold above wins.
func SelectPolicy(days int, policies []models.RefundPolicy) (models.RefundPolicy, bool) {
	active := make([]models.RefundPolicy, 0, len(policies))
	for _, p := range policies {
		if p.IsActive {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return models.RefundPolicy{}, false
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].DaysBeforeDeparture > active[j].DaysBeforeDeparture
	})

	for _, p := range active {
		if p.DaysBeforeDeparture <= days {
			return p, true
		}
	}
	return active[len(active)-1], true
}

// Calculate returns the refund breakdown for originalAmount cancelled days
// before departure. forceFull bypasses the policy table.
func Calculate(originalAmount int64, days int, forceFull bool, policies []models.RefundPolicy) (Breakdown, error) {
	if originalAmount < 0 {
		return Breakdown{}, domain.ValidationError{Field: "amount", Msg: "must not be negative"}
	}
	if days < 0 {
		days = 0
	}

	b := Breakdown{OriginalAmount: originalAmount, DaysBefore: days}

	if forceFull {
		b.Forced = true
		b.RefundAmount = originalAmount
		b.Percentage = 100
		b.Description = "Full refund (100%)"
		return b, nil
	}

	policy, ok := SelectPolicy(days, policies)
	if !ok {
		return Breakdown{}, domain.ErrNoRefundPolicy
	}
	b.PolicyID = policy.ID

	pct := int64(policy.RefundPercentage)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	fee := (originalAmount*(100-pct) + 50) / 100
	if policy.MinFee > 0 && fee < policy.MinFee {
		fee = policy.MinFee
	}
	if policy.MaxFee > 0 && fee > policy.MaxFee {
		fee = policy.MaxFee
	}
	if fee > originalAmount {
		fee = originalAmount
	}

	b.Fee = fee
	b.RefundAmount = originalAmount - fee
	b.Percentage = effectivePercentage(b.RefundAmount, originalAmount)
	b.Description = describe(b)
	return b, nil
}

func effectivePercentage(refund, original int64) float64 {
	if original <= 0 {
		return 0
	}
	return math.Round(float64(refund)*10000/float64(original)) / 100
}

func describe(b Breakdown) string {
	pct := strconv.FormatFloat(b.Percentage, 'f', -1, 64)
	if b.RefundAmount == 0 {
		return fmt.Sprintf("No refund, cancelled %d days before departure", b.DaysBefore)
	}
	return fmt.Sprintf("Refund %s%% (fee %d), cancelled %d days before departure", pct, b.Fee, b.DaysBefore)
}
