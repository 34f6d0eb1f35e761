package economy

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/simerr"
)

var ErrUnknownGood = simerr.New(simerr.ErrInvalidArgument, "unknown good")

// ExecuteTrade sells qty of good from seller to buyer at the negotiated
// market price. The trade is recorded on both agents and fed back into the
// market as demand.
func ExecuteTrade(buyer, seller *agents.Agent, m *Market, good Good, qty int, tick uint64) (agents.Trade, Quote, error) {
	if qty <= 0 {
		return agents.Trade{}, Quote{}, ErrInvalidAmount
	}
	price := m.Price(good)
	if price <= 0 {
		return agents.Trade{}, Quote{}, fmt.Errorf("%w: %s", ErrUnknownGood, good)
	}
	q := Negotiate(price, buyer, seller)
	total := q.Price * float64(qty)
	memo := fmt.Sprintf("%d %s", qty, good)
	if _, err := Transfer(buyer, seller, total, TxTrade, memo, tick); err != nil {
		return agents.Trade{}, q, err
	}

	t := agents.Trade{
		ID:        uuid.New(),
		Tick:      tick,
		BuyerID:   buyer.ID,
		SellerID:  seller.ID,
		Good:      string(good),
		Quantity:  qty,
		UnitPrice: q.Price,
		Total:     total,
	}
	agents.FinancesOf(buyer).RecordTrade(t)
	agents.FinancesOf(seller).RecordTrade(t)
	m.AddDemand(good, float64(qty))
	m.TradeCount++
	return t, q, nil
}
