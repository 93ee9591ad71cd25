// file: internals/features/housing/service/charges.go
package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	model "rentflow_backend/internals/features/housing/model"
)

// ErrNegativeExtra marks a catalog row whose extra charge list holds a negative amount.
var ErrNegativeExtra = errors.New("negative extra charge")

// ChargeTolerance absorbs summation drift between a client-side quote and ours.
var ChargeTolerance = decimal.NewFromInt(1)

// ChargeSet is the ordered expected charge list of one house.
type ChargeSet struct {
	Lines []model.ChargeLine `json:"lines"`
	Total decimal.Decimal    `json:"total"`
}

/* =========================================================
   Expected charges
   Order: rent, deposit, water, electricity, other-{i}.
   House value wins when set, apartment value otherwise.
========================================================= */

// ExpectedCharges is pure: same house+apartment state, same lines and total.
func ExpectedCharges(h model.House, a model.Apartment) ChargeSet {
	lines := make([]model.ChargeLine, 0, 4)

	lines = append(lines, model.ChargeLine{
		ID:     model.ChargeRent,
		Label:  "Rent",
		Amount: pick(h.HouseRent, a.ApartmentRent),
	})

	if dep := pick(h.HouseDeposit, a.ApartmentDeposit); dep.IsPositive() {
		lines = append(lines, model.ChargeLine{ID: model.ChargeDeposit, Label: "Deposit", Amount: dep})
	}
	if w := pick(h.HouseWater, a.ApartmentWater); w.IsPositive() {
		lines = append(lines, model.ChargeLine{ID: model.ChargeWater, Label: "Water", Amount: w})
	}
	if e := pick(h.HouseElectricity, a.ApartmentElectricity); e.IsPositive() {
		lines = append(lines, model.ChargeLine{ID: model.ChargeElectricity, Label: "Electricity", Amount: e})
	}

	extras := []model.ExtraCharge(a.ApartmentExtraCharges)
	if h.HouseExtraChargesOverride {
		extras = []model.ExtraCharge(h.HouseExtraCharges)
	}
	for i, x := range extras {
		label := strings.TrimSpace(x.Label)
		if label == "" {
			label = fmt.Sprintf("Other charge %d", i+1)
		}
		lines = append(lines, model.ChargeLine{
			ID:     otherID(i),
			Label:  label,
			Amount: x.Amount,
		})
	}

	return ChargeSet{Lines: lines, Total: SumLines(lines)}
}

func otherID(i int) string { return fmt.Sprintf("%s%d", model.ChargeOtherPrefix, i) }

// ValidateExtras rejects negative extra charges. Zero-amount extras stay as lines.
func ValidateExtras(h model.House, a model.Apartment) error {
	extras := []model.ExtraCharge(a.ApartmentExtraCharges)
	if h.HouseExtraChargesOverride {
		extras = []model.ExtraCharge(h.HouseExtraCharges)
	}
	for i, x := range extras {
		if x.Amount.IsNegative() {
			return fmt.Errorf("%w: %s is %s", ErrNegativeExtra, otherID(i), x.Amount.String())
		}
	}
	return nil
}

func SumLines(lines []model.ChargeLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return total
}

func pick(override decimal.NullDecimal, fallback decimal.Decimal) decimal.Decimal {
	if override.Valid {
		return override.Decimal
	}
	return fallback
}

/* =========================================================
   Agreement check
========================================================= */

// Mismatch explains why a submitted selection disagrees with the expected set.
type Mismatch struct {
	Reason string
}

func (m *Mismatch) Error() string { return m.Reason }

// Matches checks that selected is exactly the expected set (same ids, amounts within
// tolerance) and that total agrees with both sums. Order of selected is irrelevant.
func (s ChargeSet) Matches(selected []model.ChargeLine, total decimal.Decimal) error {
	if len(selected) != len(s.Lines) {
		return &Mismatch{Reason: fmt.Sprintf("expected %d charge lines, got %d", len(s.Lines), len(selected))}
	}

	want := make(map[string]decimal.Decimal, len(s.Lines))
	for _, l := range s.Lines {
		want[l.ID] = l.Amount
	}
	seen := make(map[string]struct{}, len(selected))
	for _, l := range selected {
		id := strings.TrimSpace(l.ID)
		if _, dup := seen[id]; dup {
			return &Mismatch{Reason: "duplicate charge line " + id}
		}
		seen[id] = struct{}{}

		amt, ok := want[id]
		if !ok {
			return &Mismatch{Reason: "unexpected charge line " + id}
		}
		if !withinTolerance(amt, l.Amount) {
			return &Mismatch{Reason: fmt.Sprintf("charge %s is %s, expected %s", id, l.Amount.String(), amt.String())}
		}
	}

	if !withinTolerance(s.Total, total) {
		return &Mismatch{Reason: fmt.Sprintf("total is %s, expected %s", total.String(), s.Total.String())}
	}
	if !withinTolerance(SumLines(selected), total) {
		return &Mismatch{Reason: "total does not equal the sum of selected charges"}
	}
	return nil
}

func withinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(ChargeTolerance)
}

// IsDepositLine reports whether a line is, or is labeled as, a deposit.
func IsDepositLine(l model.ChargeLine) bool {
	if strings.EqualFold(strings.TrimSpace(l.ID), model.ChargeDeposit) {
		return true
	}
	return strings.Contains(strings.ToLower(l.Label), "deposit")
}
