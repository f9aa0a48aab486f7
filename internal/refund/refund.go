// Package refund turns a deposit and a list of missing items into a refund.
package refund

import (
	"github.com/shopspring/decimal"

	"roomcheck-backend/internal/model"
)

// PenaltyPerItem is the flat deduction applied for every missing object. The
// refund summary shows this same figure per item.
var PenaltyPerItem = decimal.NewFromInt(10)

// Deduction returns the total penalty for n missing items.
func Deduction(n int) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	return PenaltyPerItem.Mul(decimal.NewFromInt(int64(n)))
}

// Calculate returns deposit minus the per-item penalty for every missing
// object, floored at zero.
func Calculate(deposit decimal.Decimal, missing []model.MissingObject) decimal.Decimal {
	return Apply(deposit, Deduction(len(missing)))
}

// Apply subtracts deduction from deposit, floored at zero.
func Apply(deposit, deduction decimal.Decimal) decimal.Decimal {
	refund := deposit.Sub(deduction)
	if refund.IsNegative() {
		return decimal.Zero
	}
	return refund
}

// Summary is the breakdown shown to a guest before confirming.
type Summary struct {
	DepositAmount   decimal.Decimal       `json:"depositAmount"`
	PenaltyPerItem  decimal.Decimal       `json:"penaltyPerItem"`
	RefundDeduction decimal.Decimal       `json:"refundDeduction"`
	RefundAmount    decimal.Decimal       `json:"refundAmount"`
	MissingObjects  []model.MissingObject `json:"missingObjects"`
}

// Summarize builds the refund breakdown for a checkout.
func Summarize(c *model.Checkout) Summary {
	missing := []model.MissingObject(c.MissingObjects)
	if missing == nil {
		missing = []model.MissingObject{}
	}
	return Summary{
		DepositAmount:   c.DepositAmount,
		PenaltyPerItem:  PenaltyPerItem,
		RefundDeduction: c.RefundDeduction,
		RefundAmount:    Apply(c.DepositAmount, c.RefundDeduction),
		MissingObjects:  missing,
	}
}
