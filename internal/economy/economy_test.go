package economy

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/simerr"
)

func newAgent(id agents.AgentID, wealth float64) *agents.Agent {
	a := &agents.Agent{ID: id, FirstName: "Agent", Alive: true}
	agents.FinancesOf(a).SetWealth(wealth)
	return a
}

func TestTransfer(t *testing.T) {
	a, b := newAgent(1, 300), newAgent(2, 50)

	id, err := Transfer(a, b, 250, TxGift, "dowry", 4)
	require.NoError(t, err)
	assert.Equal(t, 50.0, a.Wealth())
	assert.Equal(t, 300.0, b.Wealth())
	assert.Equal(t, agents.ClassPoor, a.Ext.Finances.Class)
	assert.Equal(t, agents.ClassWorking, b.Ext.Finances.Class)

	require.Len(t, a.Ext.Finances.Transactions, 1)
	require.Len(t, b.Ext.Finances.Transactions, 1)
	assert.Equal(t, id, a.Ext.Finances.Transactions[0].ID)
	assert.Equal(t, id, b.Ext.Finances.Transactions[0].ID)
	assert.Equal(t, -250.0, a.Ext.Finances.Transactions[0].Amount)
	assert.Equal(t, 250.0, b.Ext.Finances.Transactions[0].Amount)
}

func TestTransferFailuresLeaveBothUnchanged(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		self   bool
		kind   error
	}{
		{"insufficient", 1000, false, simerr.ErrInsufficientResource},
		{"zero", 0, false, simerr.ErrInvalidArgument},
		{"negative", -5, false, simerr.ErrInvalidArgument},
		{"self", 10, true, simerr.ErrInvalidArgument},
		{"nan", math.NaN(), false, simerr.ErrInvalidArgument},
		{"infinite", math.Inf(1), false, simerr.ErrInvalidArgument},
		{"negative infinite", math.Inf(-1), false, simerr.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := newAgent(1, 100), newAgent(2, 40)
			to := b
			if tt.self {
				to = a
			}
			_, err := Transfer(a, to, tt.amount, TxGift, "", 1)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind))
			assert.Equal(t, 100.0, a.Wealth())
			assert.Equal(t, 40.0, b.Wealth())
			assert.Empty(t, a.Ext.Finances.Transactions)
			assert.Empty(t, b.Ext.Finances.Transactions)
		})
	}
}

func TestTransactionHistoryIsCapped(t *testing.T) {
	a, b := newAgent(1, 1000), newAgent(2, 0)
	for i := 0; i < agents.MaxTransactions+20; i++ {
		_, err := Transfer(a, b, 1, TxGift, "", uint64(i))
		require.NoError(t, err)
	}
	assert.Len(t, a.Ext.Finances.Transactions, agents.MaxTransactions)
	assert.Equal(t, uint64(agents.MaxTransactions+19), a.Ext.Finances.Transactions[agents.MaxTransactions-1].Tick)
}

func TestCreditDebit(t *testing.T) {
	a := newAgent(1, 10)
	_, err := Credit(a, 90, TxSalary, "wages", 1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, a.Wealth())

	_, err = Debit(a, 101, TxCommission, "", 2)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, 100.0, a.Wealth())

	_, err = Debit(a, 100, TxCommission, "", 2)
	require.NoError(t, err)
	assert.Equal(t, 0.0, a.Wealth())
}

func TestCreditDebitRejectNonFiniteAmounts(t *testing.T) {
	for _, amount := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		a := newAgent(1, 50)
		_, err := Credit(a, amount, TxGrant, "", 1)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = Debit(a, amount, TxCommission, "", 1)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.Equal(t, 50.0, a.Wealth())
		assert.Equal(t, agents.ClassForWealth(50), a.Ext.Finances.Class)
		assert.Empty(t, a.Ext.Finances.Transactions)
	}
}

func TestLoanLifecycle(t *testing.T) {
	lender, borrower := newAgent(1, 500), newAgent(2, 0)

	d, err := Lend(lender, borrower, 200, 0.1, 10, 100)
	require.NoError(t, err)
	assert.InDelta(t, 220, d.Remaining, 1e-9)
	assert.Equal(t, 300.0, lender.Wealth())
	assert.Equal(t, 200.0, borrower.Wealth())

	agents.FinancesOf(borrower).SetWealth(300)
	d, err = Repay(borrower, lender, d.ID, 120, 20)
	require.NoError(t, err)
	assert.Equal(t, agents.DebtActive, d.Status)
	assert.InDelta(t, 100, d.Remaining, 1e-9)

	d, err = Repay(borrower, lender, d.ID, 500, 30)
	require.NoError(t, err)
	assert.Equal(t, agents.DebtRepaid, d.Status)
	assert.Empty(t, borrower.Ext.Finances.Debts)
	assert.Len(t, lender.Ext.Finances.PastDebts, 1)
	assert.InDelta(t, 80, borrower.Wealth(), 1e-9)

	_, err = Repay(borrower, lender, d.ID, 10, 40)
	assert.ErrorIs(t, err, ErrDebtNotActive)
	assert.ErrorIs(t, err, simerr.ErrInvalidState)
}

func TestLendRejectsBadRate(t *testing.T) {
	for _, rate := range []float64{-0.1, math.NaN(), math.Inf(1)} {
		lender, borrower := newAgent(1, 500), newAgent(2, 0)
		_, err := Lend(lender, borrower, 100, rate, 0, 30)
		assert.ErrorIs(t, err, simerr.ErrInvalidArgument)
		assert.Equal(t, 500.0, lender.Wealth())
		assert.Empty(t, lender.Ext.Finances.Debts)
	}
}

func TestDefault(t *testing.T) {
	lender, borrower := newAgent(1, 500), newAgent(2, 0)
	d, err := Lend(lender, borrower, 100, 0, 0, 30)
	require.NoError(t, err)

	assert.Empty(t, Overdue(borrower, 30))
	require.Len(t, Overdue(borrower, 31), 1)

	d, err = MarkDefaulted(borrower, lender, d.ID, 31)
	require.NoError(t, err)
	assert.Equal(t, agents.DebtDefaulted, d.Status)
	assert.Equal(t, DefaultChargePenalty, lender.Relationship(2).Charge)
	assert.Empty(t, Overdue(borrower, 40))
}

func TestNegotiate(t *testing.T) {
	seller := &agents.Agent{ID: 1, Personality: agents.Personality{Conscientiousness: 0.5}}
	buyer := &agents.Agent{ID: 2, Personality: agents.Personality{Extroversion: 0.5}}

	q := Negotiate(100, buyer, seller)
	assert.Equal(t, "standard", q.Basis)
	assert.InDelta(t, 100, q.Price, 1e-9)

	seller.EnsureRelationship(2, 0).AdjustCharge(12, 0)
	assert.InDelta(t, 90, Negotiate(100, buyer, seller).Price, 1e-9)

	seller.Relationship(2).AdjustCharge(-30, 1)
	assert.InDelta(t, 120, Negotiate(100, buyer, seller).Price, 1e-9)

	seller.ChildIDs = []agents.AgentID{2}
	q = Negotiate(100, buyer, seller)
	assert.Equal(t, "family", q.Basis)
	assert.InDelta(t, 75, q.Price, 1e-9)

	buyer.Personality.Extroversion = 1
	seller.Personality.Conscientiousness = 0
	assert.InDelta(t, 75*0.95, Negotiate(100, buyer, seller).Price, 1e-9)
}

func TestTierMultiplier(t *testing.T) {
	tests := []struct {
		ratio float64
		want  float64
	}{
		{0.2, 0.7},
		{0.5, 0.85},
		{0.79, 0.85},
		{0.8, 1.0},
		{1.25, 1.0},
		{1.5, 1.2},
		{2, 1.2},
		{2.01, 1.5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierMultiplier(tt.ratio), "ratio %v", tt.ratio)
	}
}

func TestMarketResolve(t *testing.T) {
	m := NewMarket(1)
	m.AddSupply(GoodGrain, 9)
	m.AddDemand(GoodTools, 4)
	m.Resolve()
	assert.InDelta(t, 2*0.7, m.Price(GoodGrain), 1e-9)
	assert.InDelta(t, 10*1.5, m.Price(GoodTools), 1e-9)
	assert.InDelta(t, 8, m.Price(GoodCloth), 1e-9)

	m.Reset()
	m.Resolve()
	assert.InDelta(t, 2, m.Price(GoodGrain), 1e-9)
	assert.Equal(t, GoodAle, m.Goods()[0])
}

func TestExecuteTrade(t *testing.T) {
	m := NewMarket(1)
	buyer, seller := newAgent(1, 100), newAgent(2, 0)
	buyer.Personality.Extroversion = 0.5
	seller.Personality.Conscientiousness = 0.5

	tr, q, err := ExecuteTrade(buyer, seller, m, GoodCloth, 3, 7)
	require.NoError(t, err)
	assert.InDelta(t, 8, q.Price, 1e-9)
	assert.InDelta(t, 24, tr.Total, 1e-9)
	assert.InDelta(t, 76, buyer.Wealth(), 1e-9)
	assert.InDelta(t, 24, seller.Wealth(), 1e-9)
	assert.Len(t, buyer.Ext.Finances.Trades, 1)
	assert.Len(t, seller.Ext.Finances.Trades, 1)
	assert.Equal(t, 4.0, m.Entries[GoodCloth].Demand)

	_, _, err = ExecuteTrade(buyer, seller, m, GoodLivestock, 10, 8)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.InDelta(t, 76, buyer.Wealth(), 1e-9)
	assert.Len(t, buyer.Ext.Finances.Trades, 1)

	_, _, err = ExecuteTrade(buyer, seller, m, Good("spice"), 1, 8)
	assert.ErrorIs(t, err, ErrUnknownGood)
}

func TestOldTradesAreArchived(t *testing.T) {
	m := NewMarket(1)
	buyer, seller := newAgent(1, 100000), newAgent(2, 0)

	first, _, err := ExecuteTrade(buyer, seller, m, GoodGrain, 1, 0)
	require.NoError(t, err)
	for i := 1; i <= agents.MaxTrades+10; i++ {
		_, _, err := ExecuteTrade(buyer, seller, m, GoodGrain, 1, uint64(i))
		require.NoError(t, err)
	}

	for _, a := range []*agents.Agent{buyer, seller} {
		f := a.Ext.Finances
		assert.Len(t, f.Trades, agents.MaxTrades)
		assert.Len(t, f.PastTrades, 11)
		assert.Equal(t, first.ID, f.PastTrades[0].ID)
		assert.Equal(t, uint64(agents.MaxTrades+10), f.Trades[agents.MaxTrades-1].Tick)

		got, ok := f.Trade(first.ID)
		require.True(t, ok)
		assert.Equal(t, first, got)
	}
}
