// Package economy provides the wealth ledger, debts, price negotiation and
// settlement markets. Functions here mutate the agent records they are given;
// callers pass working copies and persist them only when no error is returned.
package economy

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/simerr"
)

var (
	ErrInsufficientFunds = simerr.New(simerr.ErrInsufficientResource, "insufficient funds")
	ErrInvalidAmount     = simerr.New(simerr.ErrInvalidArgument, "amount must be positive and finite")
	ErrSelfTransfer      = simerr.New(simerr.ErrInvalidArgument, "cannot transfer to self")
)

// Transaction kinds.
const (
	TxSalary     = "salary"
	TxTrade      = "trade"
	TxLoan       = "loan"
	TxRepayment  = "repayment"
	TxCommission = "commission"
	TxGift       = "gift"
	TxGrant      = "grant"
)

// validAmount rejects zero, negative, NaN and infinite amounts.
func validAmount(amount float64) bool {
	return amount > 0 && !math.IsInf(amount, 0)
}

// Transfer moves amount from one agent to another as one atomic pair. On any
// error neither agent is modified.
func Transfer(from, to *agents.Agent, amount float64, kind, memo string, tick uint64) (uuid.UUID, error) {
	if !validAmount(amount) {
		return uuid.Nil, ErrInvalidAmount
	}
	if from.ID == to.ID {
		return uuid.Nil, ErrSelfTransfer
	}
	ff, tf := agents.FinancesOf(from), agents.FinancesOf(to)
	if amount > ff.Wealth {
		return uuid.Nil, fmt.Errorf("%w: %s has %.2f, needs %.2f", ErrInsufficientFunds, from.Name(), ff.Wealth, amount)
	}

	id := uuid.New()
	ff.SetWealth(ff.Wealth - amount)
	tf.SetWealth(tf.Wealth + amount)
	ff.Record(agents.Transaction{
		ID: id, Tick: tick, Kind: kind, Amount: -amount,
		CounterpartyID: agents.IDPtr(to.ID), Memo: memo, BalanceAfter: ff.Wealth,
	})
	tf.Record(agents.Transaction{
		ID: id, Tick: tick, Kind: kind, Amount: amount,
		CounterpartyID: agents.IDPtr(from.ID), Memo: memo, BalanceAfter: tf.Wealth,
	})
	return id, nil
}

// Credit adds money from outside the population, such as town wages.
func Credit(a *agents.Agent, amount float64, kind, memo string, tick uint64) (uuid.UUID, error) {
	if !validAmount(amount) {
		return uuid.Nil, ErrInvalidAmount
	}
	f := agents.FinancesOf(a)
	f.SetWealth(f.Wealth + amount)
	id := uuid.New()
	f.Record(agents.Transaction{ID: id, Tick: tick, Kind: kind, Amount: amount, Memo: memo, BalanceAfter: f.Wealth})
	return id, nil
}

// Debit removes money to outside the population. It fails rather than go negative.
func Debit(a *agents.Agent, amount float64, kind, memo string, tick uint64) (uuid.UUID, error) {
	if !validAmount(amount) {
		return uuid.Nil, ErrInvalidAmount
	}
	f := agents.FinancesOf(a)
	if amount > f.Wealth {
		return uuid.Nil, fmt.Errorf("%w: %s has %.2f, needs %.2f", ErrInsufficientFunds, a.Name(), f.Wealth, amount)
	}
	f.SetWealth(f.Wealth - amount)
	id := uuid.New()
	f.Record(agents.Transaction{ID: id, Tick: tick, Kind: kind, Amount: -amount, Memo: memo, BalanceAfter: f.Wealth})
	return id, nil
}
