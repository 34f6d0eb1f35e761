package economy

import (
	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/mathx"
)

// Relationship price adjustments, from the seller's view of the buyer.
const (
	FamilyDiscount = 0.25
	FriendDiscount = 0.10
	EnemyPremium   = 0.20
	HaggleWeight   = 0.05
)

// Quote is a negotiated price and how it was reached.
type Quote struct {
	Base         float64 `json:"base"`
	Relationship float64 `json:"relationship"` // multiplier from the seller's feelings
	Haggle       float64 `json:"haggle"`       // multiplier from buyer vs seller temperament
	Price        float64 `json:"price"`
	Basis        string  `json:"basis"` // "family", "friend", "enemy" or "standard"
}

// Negotiate adjusts a base price for the seller's relationship with the buyer
// and a small haggling term: talkative buyers push the price down, diligent
// sellers hold it up.
func Negotiate(base float64, buyer, seller *agents.Agent) Quote {
	q := Quote{Base: base, Relationship: 1, Basis: "standard"}
	rel := seller.Relationship(buyer.ID)
	switch {
	case seller.IsFamily(buyer):
		q.Relationship, q.Basis = 1-FamilyDiscount, "family"
	case rel != nil && rel.AreFriends:
		q.Relationship, q.Basis = 1-FriendDiscount, "friend"
	case rel != nil && rel.AreEnemies:
		q.Relationship, q.Basis = 1+EnemyPremium, "enemy"
	}
	q.Haggle = 1 - HaggleWeight*(buyer.Personality.Extroversion-seller.Personality.Conscientiousness)
	q.Price = mathx.Round2(base * q.Relationship * q.Haggle)
	return q
}
