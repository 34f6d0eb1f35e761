package economy

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/simerr"
)

var (
	ErrDebtNotFound  = simerr.New(simerr.ErrNotFound, "debt not found")
	ErrDebtNotActive = simerr.New(simerr.ErrInvalidState, "debt is not active")
)

// DefaultChargePenalty is applied to the creditor's charge toward a debtor
// who defaults.
const DefaultChargePenalty = -15.0

// Lend moves principal from creditor to debtor and records the debt on both.
// The debtor owes principal plus simple interest, due at dueAt.
func Lend(creditor, debtor *agents.Agent, principal, rate float64, tick, dueAt uint64) (agents.Debt, error) {
	if !(rate >= 0) || math.IsInf(rate, 0) {
		return agents.Debt{}, simerr.New(simerr.ErrInvalidArgument, "interest rate must be a finite non-negative number")
	}
	if _, err := Transfer(creditor, debtor, principal, TxLoan, "loan", tick); err != nil {
		return agents.Debt{}, err
	}
	d := agents.Debt{
		ID:           uuid.New(),
		CreditorID:   creditor.ID,
		DebtorID:     debtor.ID,
		Principal:    principal,
		InterestRate: rate,
		Remaining:    principal * (1 + rate),
		IssuedAt:     tick,
		DueAt:        dueAt,
		Status:       agents.DebtActive,
	}
	agents.FinancesOf(creditor).Debts = append(agents.FinancesOf(creditor).Debts, d)
	agents.FinancesOf(debtor).Debts = append(agents.FinancesOf(debtor).Debts, d)
	return d, nil
}

// findDebt returns the debt with id from the debtor's books.
func findDebt(debtor *agents.Agent, id uuid.UUID) (agents.Debt, error) {
	f := agents.FinancesOf(debtor)
	if i := f.DebtIndex(id); i >= 0 {
		return f.Debts[i], nil
	}
	for _, d := range f.PastDebts {
		if d.ID == id {
			return d, nil
		}
	}
	return agents.Debt{}, fmt.Errorf("%w: %s", ErrDebtNotFound, id)
}

// Repay pays up to amount toward the debt. A debt paid in full is closed as
// repaid and archived on both parties.
func Repay(debtor, creditor *agents.Agent, id uuid.UUID, amount float64, tick uint64) (agents.Debt, error) {
	d, err := findDebt(debtor, id)
	if err != nil {
		return agents.Debt{}, err
	}
	if d.Status != agents.DebtActive {
		return d, fmt.Errorf("%w: %s is %s", ErrDebtNotActive, id, d.Status)
	}
	if d.CreditorID != creditor.ID {
		return d, simerr.New(simerr.ErrInvalidArgument, "creditor does not hold this debt")
	}
	amount = math.Min(amount, d.Remaining)
	if _, err := Transfer(debtor, creditor, amount, TxRepayment, "repayment", tick); err != nil {
		return d, err
	}

	d.Remaining -= amount
	if d.Remaining <= 1e-9 {
		d.Remaining = 0
		d.Status = agents.DebtRepaid
		d.ClosedAt = &tick
	}
	updateDebt(debtor, d)
	updateDebt(creditor, d)
	return d, nil
}

// MarkDefaulted closes an active overdue debt as defaulted on both parties and
// sours the creditor on the debtor.
func MarkDefaulted(debtor, creditor *agents.Agent, id uuid.UUID, tick uint64) (agents.Debt, error) {
	d, err := findDebt(debtor, id)
	if err != nil {
		return agents.Debt{}, err
	}
	if d.Status != agents.DebtActive {
		return d, fmt.Errorf("%w: %s is %s", ErrDebtNotActive, id, d.Status)
	}
	d.Status = agents.DebtDefaulted
	d.ClosedAt = &tick
	updateDebt(debtor, d)
	updateDebt(creditor, d)
	creditor.EnsureRelationship(debtor.ID, tick).AdjustCharge(DefaultChargePenalty, tick)
	return d, nil
}

// updateDebt writes d into a's books, archiving it once closed.
func updateDebt(a *agents.Agent, d agents.Debt) {
	f := agents.FinancesOf(a)
	i := f.DebtIndex(d.ID)
	if i < 0 {
		return
	}
	if d.Status == agents.DebtActive {
		f.Debts[i] = d
		return
	}
	f.Debts = append(f.Debts[:i], f.Debts[i+1:]...)
	f.PastDebts = append(f.PastDebts, d)
}

// Overdue returns the active debts owed by a that are past due at tick.
func Overdue(a *agents.Agent, tick uint64) []agents.Debt {
	if a.Ext.Finances == nil {
		return nil
	}
	var out []agents.Debt
	for _, d := range a.Ext.Finances.Debts {
		if d.DebtorID == a.ID && d.Status == agents.DebtActive && tick > d.DueAt {
			out = append(out, d)
		}
	}
	return out
}
