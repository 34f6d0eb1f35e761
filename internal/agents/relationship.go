package agents

import "github.com/talgya/hamlet/internal/mathx"

// Relationship thresholds. The derived booleans are always recomputed from
// these on update and never stored as independent truth.
const (
	FriendshipCharge = 10.0
	EnmityCharge     = -10.0
	RomanceSpark     = 15.0

	SparkDecayRate  = 0.05
	TrustBase       = 0.3
	TrustChargeSpan = 40.0

	// FamilyCharge seeds the charge between newly related family members.
	FamilyCharge = 15.0
)

// RelationshipDetails is one agent's view of another. A's record toward B is
// A's data alone; updating it never touches B's record toward A.
type RelationshipDetails struct {
	OtherID       AgentID `json:"other_id"`
	Compatibility float64 `json:"compatibility"`
	Charge        float64 `json:"charge"`
	Spark         float64 `json:"spark"`
	Trust         float64 `json:"trust"`

	Interactions         int    `json:"interactions"`
	PositiveInteractions int    `json:"positive_interactions"`
	NegativeInteractions int    `json:"negative_interactions"`
	FirstMetTick         uint64 `json:"first_met_tick"`
	LastInteractionTick  uint64 `json:"last_interaction_tick"`

	AreFriends  bool `json:"are_friends"`
	AreEnemies  bool `json:"are_enemies"`
	AreRomantic bool `json:"are_romantic"`
}

// NewRelationship creates a neutral record toward other.
func NewRelationship(other AgentID, tick uint64) *RelationshipDetails {
	r := &RelationshipDetails{OtherID: other, FirstMetTick: tick, LastInteractionTick: tick}
	r.Recompute()
	return r
}

// TrustFromCharge maps charge onto [0, 1] trust.
func TrustFromCharge(charge float64) float64 {
	return mathx.Clamp01(TrustBase + charge/TrustChargeSpan)
}

// Recompute refreshes trust and the derived booleans from charge and spark.
func (r *RelationshipDetails) Recompute() {
	r.Trust = TrustFromCharge(r.Charge)
	r.AreFriends = r.Charge >= FriendshipCharge
	r.AreEnemies = r.Charge <= EnmityCharge
	r.AreRomantic = r.Spark >= RomanceSpark
}

// ApplyInteraction folds one interaction of the given quality into the record.
// chargeInc and sparkInc are the per-unit-quality increments for this pair.
func (r *RelationshipDetails) ApplyInteraction(chargeInc, sparkInc, quality float64, tick uint64) {
	quality = mathx.Clamp(quality, -1, 1)

	r.Charge += chargeInc * quality
	r.Spark = r.Spark*(1-SparkDecayRate) + sparkInc*quality
	if r.Spark < 0 {
		r.Spark = 0
	}

	r.Interactions++
	switch {
	case quality > 0:
		r.PositiveInteractions++
	case quality < 0:
		r.NegativeInteractions++
	}
	r.LastInteractionTick = tick
	r.Recompute()
}

// AdjustCharge applies an event-driven shock (divorce, betrayal, default).
func (r *RelationshipDetails) AdjustCharge(delta float64, tick uint64) {
	r.Charge += delta
	r.LastInteractionTick = tick
	r.Recompute()
}
