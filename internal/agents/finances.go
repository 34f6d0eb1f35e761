package agents

import "github.com/google/uuid"

// EconomicClass buckets wealth. It is recomputed on every change.
type EconomicClass string

const (
	ClassPoor    EconomicClass = "poor"
	ClassWorking EconomicClass = "working"
	ClassMiddle  EconomicClass = "middle"
	ClassWealthy EconomicClass = "wealthy"
	ClassRich    EconomicClass = "rich"
)

// ClassForWealth returns the bucket for wealth.
func ClassForWealth(wealth float64) EconomicClass {
	switch {
	case wealth < 100:
		return ClassPoor
	case wealth < 500:
		return ClassWorking
	case wealth < 2000:
		return ClassMiddle
	case wealth < 10000:
		return ClassWealthy
	default:
		return ClassRich
	}
}

// Transaction is one side of a ledger movement.
type Transaction struct {
	ID             uuid.UUID `json:"id"`
	Tick           uint64    `json:"tick"`
	Kind           string    `json:"kind"` // "salary", "trade", "loan", "repayment", "commission", "gift"
	Amount         float64   `json:"amount"` // Signed: negative for debits
	CounterpartyID *AgentID  `json:"counterparty_id,omitempty"`
	Memo           string    `json:"memo,omitempty"`
	BalanceAfter   float64   `json:"balance_after"`
}

// DebtStatus is the state of a debt.
type DebtStatus string

const (
	DebtActive    DebtStatus = "active"
	DebtRepaid    DebtStatus = "repaid"
	DebtDefaulted DebtStatus = "defaulted"
)

// Debt is money owed from a debtor to a creditor. Both parties carry a copy.
type Debt struct {
	ID           uuid.UUID  `json:"id"`
	CreditorID   AgentID    `json:"creditor_id"`
	DebtorID     AgentID    `json:"debtor_id"`
	Principal    float64    `json:"principal"`
	InterestRate float64    `json:"interest_rate"`
	Remaining    float64    `json:"remaining"`
	IssuedAt     uint64     `json:"issued_at"`
	DueAt        uint64     `json:"due_at"`
	Status       DebtStatus `json:"status"`
	ClosedAt     *uint64    `json:"closed_at,omitempty"`
}

// Trade is a completed sale of goods.
type Trade struct {
	ID        uuid.UUID `json:"id"`
	Tick      uint64    `json:"tick"`
	BuyerID   AgentID   `json:"buyer_id"`
	SellerID  AgentID   `json:"seller_id"`
	Good      string    `json:"good"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	Total     float64   `json:"total"`
}

// Ledger history caps. Transactions beyond the cap are dropped; trades
// beyond it move to PastTrades.
const (
	MaxTransactions = 100
	MaxTrades       = 50
)

// Finances is the ledger extension.
type Finances struct {
	Wealth       float64       `json:"wealth"`
	Class        EconomicClass `json:"class"`
	Transactions []Transaction `json:"transactions,omitempty"`
	Debts        []Debt        `json:"debts,omitempty"`
	PastDebts    []Debt        `json:"past_debts,omitempty"`
	Trades       []Trade       `json:"trades,omitempty"`
	PastTrades   []Trade       `json:"past_trades,omitempty"`
}

// FinancesOf returns a's finances, creating them if needed.
func FinancesOf(a *Agent) *Finances {
	if a.Ext.Finances == nil {
		a.Ext.Finances = &Finances{Class: ClassForWealth(0)}
	}
	return a.Ext.Finances
}

// Wealth returns a's current balance.
func (a *Agent) Wealth() float64 {
	if a.Ext.Finances == nil {
		return 0
	}
	return a.Ext.Finances.Wealth
}

// SetWealth replaces the balance and recomputes the class.
func (f *Finances) SetWealth(w float64) {
	f.Wealth = w
	f.Class = ClassForWealth(w)
}

// Record appends a transaction, keeping the most recent MaxTransactions.
func (f *Finances) Record(tx Transaction) {
	f.Transactions = append(f.Transactions, tx)
	if len(f.Transactions) > MaxTransactions {
		f.Transactions = f.Transactions[len(f.Transactions)-MaxTransactions:]
	}
}

// RecordTrade appends a trade. The oldest trades past MaxTrades are archived
// to PastTrades.
func (f *Finances) RecordTrade(t Trade) {
	f.Trades = append(f.Trades, t)
	if n := len(f.Trades) - MaxTrades; n > 0 {
		f.PastTrades = append(f.PastTrades, f.Trades[:n]...)
		f.Trades = append([]Trade(nil), f.Trades[n:]...)
	}
}

// Trade looks up a recent or archived trade by id.
func (f *Finances) Trade(id uuid.UUID) (Trade, bool) {
	for _, list := range [][]Trade{f.Trades, f.PastTrades} {
		for _, t := range list {
			if t.ID == id {
				return t, true
			}
		}
	}
	return Trade{}, false
}

// DebtIndex returns the index of the active debt with id, or -1.
func (f *Finances) DebtIndex(id uuid.UUID) int {
	for i := range f.Debts {
		if f.Debts[i].ID == id {
			return i
		}
	}
	return -1
}
