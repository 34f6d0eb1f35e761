// Personality Model: the five static traits and the pure functions derived
// from them. Nothing here reads or writes state.
package agents

import (
	"math"

	"github.com/talgya/hamlet/internal/entropy"
	"github.com/talgya/hamlet/internal/mathx"
)

// Personality is a fixed five-trait vector, each trait in [0, 1].
type Personality struct {
	Openness          float64 `json:"openness"`
	Conscientiousness float64 `json:"conscientiousness"`
	Extroversion      float64 `json:"extroversion"`
	Agreeableness     float64 `json:"agreeableness"`
	Neuroticism       float64 `json:"neuroticism"`
}

// Relationship tuning.
const (
	ChargeScale         = 5.0
	ExtroversionWeight  = 0.6
	AgreeablenessWeight = 0.6
	MinChargeIncrement  = 0.5
	CrossGenderDamping  = 0.8

	SparkScale          = 4.0
	SparkOpennessWeight = 0.4
	SparkNeuroWeight    = 0.3
	SparkConscWeight    = 0.3
)

// MutationWindow bounds how far an inherited trait may land from the parental average.
const MutationWindow = 0.1

// Clamp bounds every trait to [0, 1].
func (p Personality) Clamp() Personality {
	return Personality{
		Openness:          mathx.Clamp01(p.Openness),
		Conscientiousness: mathx.Clamp01(p.Conscientiousness),
		Extroversion:      mathx.Clamp01(p.Extroversion),
		Agreeableness:     mathx.Clamp01(p.Agreeableness),
		Neuroticism:       mathx.Clamp01(p.Neuroticism),
	}
}

// Traits returns the vector in O, C, E, A, N order.
func (p Personality) Traits() [5]float64 {
	return [5]float64{p.Openness, p.Conscientiousness, p.Extroversion, p.Agreeableness, p.Neuroticism}
}

// PersonalityFromTraits builds a personality from an O, C, E, A, N vector.
func PersonalityFromTraits(t [5]float64) Personality {
	return Personality{
		Openness:          t[0],
		Conscientiousness: t[1],
		Extroversion:      t[2],
		Agreeableness:     t[3],
		Neuroticism:       t[4],
	}
}

// Compatibility returns 1 minus the normalized distance over openness,
// extroversion and agreeableness, mapped onto [-1, 1]. It is symmetric.
func Compatibility(a, b Personality) float64 {
	dist := math.Abs(a.Openness-b.Openness) +
		math.Abs(a.Extroversion-b.Extroversion) +
		math.Abs(a.Agreeableness-b.Agreeableness)
	return mathx.Clamp(1-2*dist/3, -1, 1)
}

// ChargeIncrement is the affinity owner gains toward subject per unit of
// interaction quality. Extroverted owners and agreeable subjects warm faster.
// The floor keeps the increment positive so better interactions never lower charge.
func ChargeIncrement(owner, subject *Agent, compatibility float64) float64 {
	inc := ChargeScale * (compatibility +
		ExtroversionWeight*owner.Personality.Extroversion +
		AgreeablenessWeight*subject.Personality.Agreeableness)
	if inc < MinChargeIncrement {
		inc = MinChargeIncrement
	}
	if owner.Sex != subject.Sex {
		inc *= CrossGenderDamping
	}
	return inc
}

// SparkIncrement is the romantic attraction owner gains toward subject per
// unit of interaction quality, or zero when either is a minor or owner is not
// attracted to subject's sex.
func SparkIncrement(owner, subject *Agent, year int) float64 {
	if !owner.IsAdult(year) || !subject.IsAdult(year) {
		return 0
	}
	if !owner.Attraction.AttractedTo(subject.Sex) {
		return 0
	}
	op, sp := owner.Personality, subject.Personality
	return SparkScale * (SparkOpennessWeight*(1-math.Abs(op.Openness-sp.Openness)) +
		SparkNeuroWeight*math.Abs(op.Neuroticism-sp.Neuroticism) +
		SparkConscWeight*sp.Conscientiousness)
}

// Inherit averages the parents' traits and mutates each by up to MutationWindow.
func Inherit(mother, father Personality, rng entropy.Source) Personality {
	m, f := mother.Traits(), father.Traits()
	var child [5]float64
	for i := range child {
		avg := (m[i] + f[i]) / 2
		child[i] = mathx.Clamp01(avg + entropy.Uniform(rng, -MutationWindow, MutationWindow))
	}
	return PersonalityFromTraits(child)
}

// RecoveryRate scales grief stage durations. Stable, outgoing, agreeable
// agents move through grief faster.
func (p Personality) RecoveryRate() float64 {
	return 0.6 + 0.4*(1-p.Neuroticism) + 0.2*p.Extroversion + 0.2*p.Agreeableness
}

// RandomPersonality draws every trait uniformly.
func RandomPersonality(rng entropy.Source) Personality {
	return Personality{
		Openness:          rng.Float64(),
		Conscientiousness: rng.Float64(),
		Extroversion:      rng.Float64(),
		Agreeableness:     rng.Float64(),
		Neuroticism:       rng.Float64(),
	}
}
