package economy

import (
	"maps"
	"slices"
)

// Good names a tradeable commodity.
type Good string

const (
	GoodGrain     Good = "grain"
	GoodFlour     Good = "flour"
	GoodTimber    Good = "timber"
	GoodTools     Good = "tools"
	GoodCloth     Good = "cloth"
	GoodLivestock Good = "livestock"
	GoodAle       Good = "ale"
)

var basePrices = map[Good]float64{
	GoodGrain:     2,
	GoodFlour:     3,
	GoodTimber:    3,
	GoodTools:     10,
	GoodCloth:     8,
	GoodLivestock: 25,
	GoodAle:       1,
}

// MarketEntry is the supply and demand state for one good in one settlement.
type MarketEntry struct {
	Good      Good    `json:"good"`
	Supply    float64 `json:"supply"`
	Demand    float64 `json:"demand"`
	Price     float64 `json:"price"`
	BasePrice float64 `json:"base_price"`
}

// Market holds the prices of a single settlement.
type Market struct {
	SettlementID uint64                `json:"settlement_id"`
	Entries      map[Good]*MarketEntry `json:"entries"`
	TradeCount   int                   `json:"trade_count"`
}

// NewMarket creates a market with base prices for all goods and balanced
// supply and demand.
func NewMarket(settlementID uint64) *Market {
	entries := make(map[Good]*MarketEntry, len(basePrices))
	for good, base := range basePrices {
		entries[good] = &MarketEntry{Good: good, Supply: 1, Demand: 1, Price: base, BasePrice: base}
	}
	return &Market{SettlementID: settlementID, Entries: entries}
}

// Goods returns the traded goods in a stable order.
func (m *Market) Goods() []Good {
	return slices.Sorted(maps.Keys(m.Entries))
}

// TierMultiplier buckets a demand/supply ratio into one of five price tiers.
func TierMultiplier(ratio float64) float64 {
	switch {
	case ratio < 0.5:
		return 0.7
	case ratio < 0.8:
		return 0.85
	case ratio <= 1.25:
		return 1.0
	case ratio <= 2:
		return 1.2
	default:
		return 1.5
	}
}

// Ratio returns demand over supply. No supply with outstanding demand counts
// as the highest tier; an idle good is balanced.
func (e *MarketEntry) Ratio() float64 {
	if e.Supply <= 0 {
		if e.Demand > 0 {
			return 3
		}
		return 1
	}
	return e.Demand / e.Supply
}

// Resolve sets the price from the current tier.
func (e *MarketEntry) Resolve() float64 {
	e.Price = e.BasePrice * TierMultiplier(e.Ratio())
	return e.Price
}

// Resolve reprices every good.
func (m *Market) Resolve() {
	for _, e := range m.Entries {
		e.Resolve()
	}
}

// AddSupply records goods offered for sale.
func (m *Market) AddSupply(g Good, qty float64) {
	if e, ok := m.Entries[g]; ok {
		e.Supply += qty
	}
}

// AddDemand records goods wanted.
func (m *Market) AddDemand(g Good, qty float64) {
	if e, ok := m.Entries[g]; ok {
		e.Demand += qty
	}
}

// Price returns the current price of g, or 0 for unknown goods.
func (m *Market) Price(g Good) float64 {
	if e, ok := m.Entries[g]; ok {
		return e.Price
	}
	return 0
}

// Reset clears this period's supply and demand back to balance.
func (m *Market) Reset() {
	for _, e := range m.Entries {
		e.Supply, e.Demand = 1, 1
	}
	m.TradeCount = 0
}
