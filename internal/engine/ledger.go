// Ledger entry points: transfers, loans and market trades between agents.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/chronicle"
	"github.com/talgya/hamlet/internal/economy"
	"github.com/talgya/hamlet/internal/entropy"
	"github.com/talgya/hamlet/internal/social"
)

// Loan terms used by the tick loop.
const (
	LoanInterest = 0.1
	LoanTicks    = 6 * TicksPerMonth
)

// businessGoods maps what each kind of business puts on the market.
var businessGoods = map[social.BusinessType]economy.Good{
	social.BusinessFarm:    economy.GoodGrain,
	social.BusinessMill:    economy.GoodFlour,
	social.BusinessSmithy:  economy.GoodTools,
	social.BusinessStore:   economy.GoodCloth,
	social.BusinessTavern:  economy.GoodAle,
	social.BusinessBuilder: economy.GoodTimber,
}

// TransferResult reports a completed transfer.
type TransferResult struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	FromWealth    float64   `json:"from_wealth"`
	ToWealth      float64   `json:"to_wealth"`
}

// TransferMoney moves amount between two agents. Both sides are written
// together or not at all.
func (s *Simulation) TransferMoney(ctx context.Context, fromID, toID agents.AgentID, amount float64, kind, memo string, tick uint64) (TransferResult, error) {
	if fromID == toID {
		return TransferResult{}, fmt.Errorf("%w: %d", economy.ErrSelfTransfer, fromID)
	}
	from, to, err := s.loadPair(ctx, fromID, toID)
	if err != nil {
		return TransferResult{}, err
	}
	id, err := economy.Transfer(from, to, amount, kind, memo, tick)
	if err != nil {
		return TransferResult{}, err
	}
	if err := s.save(ctx, from, to); err != nil {
		return TransferResult{}, err
	}
	return TransferResult{TransactionID: id, FromWealth: from.Wealth(), ToWealth: to.Wealth()}, nil
}

// CreditAgent pays id from outside the agent economy.
func (s *Simulation) CreditAgent(ctx context.Context, id agents.AgentID, amount float64, kind, memo string, tick uint64) (float64, error) {
	return s.adjustWealth(ctx, id, func(a *agents.Agent) error {
		_, err := economy.Credit(a, amount, kind, memo, tick)
		return err
	})
}

// DebitAgent charges id with no agent on the other side.
func (s *Simulation) DebitAgent(ctx context.Context, id agents.AgentID, amount float64, kind, memo string, tick uint64) (float64, error) {
	return s.adjustWealth(ctx, id, func(a *agents.Agent) error {
		_, err := economy.Debit(a, amount, kind, memo, tick)
		return err
	})
}

func (s *Simulation) adjustWealth(ctx context.Context, id agents.AgentID, fn func(*agents.Agent) error) (float64, error) {
	loaded, err := s.loadAgents(ctx, id)
	if err != nil {
		return 0, err
	}
	a := loaded[0]
	if err := fn(a); err != nil {
		return 0, err
	}
	if err := s.save(ctx, a); err != nil {
		return 0, err
	}
	return a.Wealth(), nil
}

// LendMoney issues a loan from creditor to debtor.
func (s *Simulation) LendMoney(ctx context.Context, creditorID, debtorID agents.AgentID, principal, rate float64, dueAt, tick uint64) (agents.Debt, error) {
	creditor, debtor, err := s.loadPair(ctx, creditorID, debtorID)
	if err != nil {
		return agents.Debt{}, err
	}
	d, err := economy.Lend(creditor, debtor, principal, rate, tick, dueAt)
	if err != nil {
		return agents.Debt{}, err
	}
	if err := s.save(ctx, creditor, debtor); err != nil {
		return agents.Debt{}, err
	}
	s.emit(ctx, chronicle.KindLoan, tick, with(pair(creditor, debtor), "amount", chronicle.Money(principal)), creditor.ID, debtor.ID)
	return d, nil
}

// RepayDebt pays up to amount toward a debt. Repaying a closed debt is an
// invalid-state error.
func (s *Simulation) RepayDebt(ctx context.Context, debtorID agents.AgentID, debtID uuid.UUID, amount float64, tick uint64) (agents.Debt, error) {
	loaded, err := s.loadAgents(ctx, debtorID)
	if err != nil {
		return agents.Debt{}, err
	}
	debtor := loaded[0]
	creditorID, ok := creditorOf(debtor, debtID)
	if !ok {
		return agents.Debt{}, fmt.Errorf("%w: %s", economy.ErrDebtNotFound, debtID)
	}
	loaded, err = s.loadAgents(ctx, creditorID)
	if err != nil {
		return agents.Debt{}, err
	}
	creditor := loaded[0]
	d, err := economy.Repay(debtor, creditor, debtID, amount, tick)
	if err != nil {
		return d, err
	}
	if err := s.save(ctx, debtor, creditor); err != nil {
		return agents.Debt{}, err
	}
	s.emit(ctx, chronicle.KindRepayment, tick, with(pair(creditor, debtor), "amount", chronicle.Money(amount)), creditor.ID, debtor.ID)
	return d, nil
}

func creditorOf(debtor *agents.Agent, id uuid.UUID) (agents.AgentID, bool) {
	if debtor.Ext.Finances == nil {
		return 0, false
	}
	for _, list := range [][]agents.Debt{debtor.Ext.Finances.Debts, debtor.Ext.Finances.PastDebts} {
		for _, d := range list {
			if d.ID == id {
				return d.CreditorID, true
			}
		}
	}
	return 0, false
}

// DefaultOverdueDebts collects what it can on every overdue debt and marks
// the rest defaulted. It returns how many debts defaulted.
func (s *Simulation) DefaultOverdueDebts(ctx context.Context, tick uint64) (int, error) {
	list, err := s.store.ListAgents(ctx, s.WorldID)
	if err != nil {
		return 0, fmt.Errorf("list agents: %w", err)
	}
	n := 0
	for _, a := range list {
		for _, d := range economy.Overdue(a, tick) {
			if a.Wealth() >= d.Remaining {
				if _, err := s.RepayDebt(ctx, a.ID, d.ID, d.Remaining, tick); err == nil {
					continue
				}
			}
			if err := s.defaultDebt(ctx, a.ID, d, tick); err != nil {
				slog.Warn("default skipped", "tick", tick, "debtor", a.ID, "debt", d.ID, "error", err)
				continue
			}
			n++
		}
	}
	return n, nil
}

func (s *Simulation) defaultDebt(ctx context.Context, debtorID agents.AgentID, d agents.Debt, tick uint64) error {
	debtor, creditor, err := s.loadPair(ctx, debtorID, d.CreditorID)
	if err != nil {
		return err
	}
	if _, err := economy.MarkDefaulted(debtor, creditor, d.ID, tick); err != nil {
		return err
	}
	if err := s.save(ctx, debtor, creditor); err != nil {
		return err
	}
	s.emit(ctx, chronicle.KindDefault, tick, with(pair(creditor, debtor), "amount", chronicle.Money(d.Remaining)), creditor.ID, debtor.ID)
	return nil
}

// MarketFor returns the market of a settlement, opening it on first use.
func (s *Simulation) MarketFor(settlementID uint64) *economy.Market {
	m, ok := s.markets[settlementID]
	if !ok {
		m = economy.NewMarket(settlementID)
		s.markets[settlementID] = m
	}
	return m
}

// ExecuteTrade sells goods from seller to buyer at the settlement market.
func (s *Simulation) ExecuteTrade(ctx context.Context, buyerID, sellerID agents.AgentID, settlementID uint64, good economy.Good, qty int, tick uint64) (agents.Trade, economy.Quote, error) {
	buyer, seller, err := s.loadPair(ctx, buyerID, sellerID)
	if err != nil {
		return agents.Trade{}, economy.Quote{}, err
	}
	t, q, err := economy.ExecuteTrade(buyer, seller, s.MarketFor(settlementID), good, qty, tick)
	if err != nil {
		return t, q, err
	}
	if err := s.save(ctx, buyer, seller); err != nil {
		return agents.Trade{}, economy.Quote{}, err
	}
	s.emit(ctx, chronicle.KindTrade, tick, with(pair(buyer, seller),
		"quantity", itoa(qty), "good", string(good), "amount", chronicle.Money(t.Total)), buyer.ID, seller.ID)
	return t, q, nil
}

// RecomputeMarkets feeds each open business's output into its settlement's
// market and reprices every good. Supply and demand then reset for the next
// period.
func (s *Simulation) RecomputeMarkets(ctx context.Context) error {
	list, err := s.store.ListBusinesses(ctx, s.WorldID)
	if err != nil {
		return fmt.Errorf("list businesses: %w", err)
	}
	for _, m := range s.markets {
		m.Reset()
	}
	for _, b := range list {
		good, ok := businessGoods[b.Type]
		if !ok || b.Closed {
			continue
		}
		s.MarketFor(b.SettlementID).AddSupply(good, float64(1+len(b.EmployeeIDs)))
	}
	for _, m := range s.markets {
		m.Resolve()
	}
	return nil
}

// MarketDay has a few agents buy from the proprietors of producing businesses.
func (s *Simulation) MarketDay(ctx context.Context, tick uint64) error {
	businesses, err := s.store.ListBusinesses(ctx, s.WorldID)
	if err != nil {
		return fmt.Errorf("list businesses: %w", err)
	}
	people, err := s.store.ListAgents(ctx, s.WorldID)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	var buyers []*agents.Agent
	year := s.Year(tick)
	for _, a := range people {
		if a.Alive && a.IsAdult(year) {
			buyers = append(buyers, a)
		}
	}
	if len(buyers) == 0 {
		return nil
	}
	for _, b := range businesses {
		good, ok := businessGoods[b.Type]
		if !ok || b.Closed || b.OwnerID == nil || !entropy.Chance(s.rng, 0.5) {
			continue
		}
		buyer := buyers[s.rng.Intn(len(buyers))]
		if uint64(buyer.ID) == *b.OwnerID {
			continue
		}
		qty := 1 + s.rng.Intn(3)
		_, _, err := s.ExecuteTrade(ctx, buyer.ID, agents.AgentID(*b.OwnerID), b.SettlementID, good, qty, tick)
		switch {
		case errors.Is(err, economy.ErrInsufficientFunds):
			s.MarketFor(b.SettlementID).AddDemand(good, float64(qty))
		case err != nil:
			slog.Warn("trade skipped", "tick", tick, "business", b.Name, "error", err)
		}
	}
	return nil
}

// OfferLoans lets wealthy agents lend to poor friends.
func (s *Simulation) OfferLoans(ctx context.Context, tick uint64) error {
	list, err := s.store.ListAgents(ctx, s.WorldID)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	byID := make(map[agents.AgentID]*agents.Agent, len(list))
	for _, a := range list {
		byID[a.ID] = a
	}
	for _, lender := range list {
		if !lender.Alive || lender.Wealth() < 1000 {
			continue
		}
		for _, id := range slices.Sorted(maps.Keys(lender.Relationships)) {
			rel := lender.Relationships[id]
			b, ok := byID[id]
			if !ok || !b.Alive || !rel.AreFriends || b.Wealth() >= 100 || !entropy.Chance(s.rng, 0.1) {
				continue
			}
			amount := 100.0
			if _, err := s.LendMoney(ctx, lender.ID, b.ID, amount, LoanInterest, tick+LoanTicks, tick); err != nil {
				slog.Warn("loan skipped", "tick", tick, "lender", lender.ID, "error", err)
			}
			break
		}
	}
	return nil
}
