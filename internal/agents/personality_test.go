package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/hamlet/internal/entropy"
)

func person(o, c, e, a, n float64) Personality {
	return Personality{Openness: o, Conscientiousness: c, Extroversion: e, Agreeableness: a, Neuroticism: n}
}

func TestCompatibilityIsSymmetric(t *testing.T) {
	rng := entropy.NewSeeded(11)
	for i := 0; i < 200; i++ {
		a, b := RandomPersonality(rng), RandomPersonality(rng)
		assert.InDelta(t, Compatibility(a, b), Compatibility(b, a), 1e-12)
		c := Compatibility(a, b)
		assert.GreaterOrEqual(t, c, -1.0)
		assert.LessOrEqual(t, c, 1.0)
	}
}

func TestCompatibilityBounds(t *testing.T) {
	same := person(0.4, 0.4, 0.4, 0.4, 0.4)
	assert.InDelta(t, 1.0, Compatibility(same, same), 1e-12)

	lo := person(0, 0.5, 0, 0, 0.5)
	hi := person(1, 0.5, 1, 1, 0.5)
	assert.InDelta(t, -1.0, Compatibility(lo, hi), 1e-12)
}

func TestChargeIncrementIsAsymmetric(t *testing.T) {
	a := &Agent{Sex: SexMale, Personality: person(0.5, 0.5, 0.9, 0.8, 0.5)}
	b := &Agent{Sex: SexMale, Personality: person(0.5, 0.5, 0.2, 0.3, 0.5)}
	c := Compatibility(a.Personality, b.Personality)

	ab := ChargeIncrement(a, b, c)
	ba := ChargeIncrement(b, a, c)
	assert.InDelta(t, 4.6, ab, 1e-9)
	assert.InDelta(t, 4.0, ba, 1e-9)
	assert.NotEqual(t, ab, ba)
}

func TestChargeIncrementFloorAndDamping(t *testing.T) {
	a := &Agent{Sex: SexMale, Personality: person(0, 0.5, 0, 0, 0.5)}
	b := &Agent{Sex: SexMale, Personality: person(1, 0.5, 1, 0, 0.5)}
	assert.Equal(t, MinChargeIncrement, ChargeIncrement(a, b, Compatibility(a.Personality, b.Personality)))

	f := &Agent{Sex: SexFemale, Personality: b.Personality}
	same := ChargeIncrement(a, b, 1)
	cross := ChargeIncrement(a, f, 1)
	assert.InDelta(t, same*CrossGenderDamping, cross, 1e-9)
}

func TestSparkIncrement(t *testing.T) {
	const year = 1850
	man := &Agent{Sex: SexMale, BirthYear: 1825, Attraction: Attraction{Women: true}, Personality: person(0.5, 0.5, 0.5, 0.5, 0.2)}
	woman := &Agent{Sex: SexFemale, BirthYear: 1828, Attraction: Attraction{Men: true}, Personality: person(0.5, 1, 0.5, 0.5, 0.8)}
	girl := &Agent{Sex: SexFemale, BirthYear: 1840, Attraction: Attraction{Men: true}, Personality: woman.Personality}
	other := &Agent{Sex: SexMale, BirthYear: 1826, Attraction: Attraction{Women: true}, Personality: man.Personality}

	tests := []struct {
		name    string
		owner   *Agent
		subject *Agent
		want    float64
	}{
		{"adult attracted", man, woman, SparkScale * (0.4*1 + 0.3*0.6 + 0.3*1)},
		{"subject is a minor", man, girl, 0},
		{"owner is a minor", girl, man, 0},
		{"not attracted to sex", man, other, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, SparkIncrement(tt.owner, tt.subject, year), 1e-9)
		})
	}
}

func TestInheritStaysWithinMutationWindow(t *testing.T) {
	mother := person(0.9, 0.1, 0.5, 0.95, 0.0)
	father := person(0.7, 0.3, 0.5, 1.0, 0.1)
	rng := entropy.NewSeeded(3)
	m, f := mother.Traits(), father.Traits()
	for i := 0; i < 500; i++ {
		child := Inherit(mother, father, rng).Traits()
		for j := range child {
			avg := (m[j] + f[j]) / 2
			assert.GreaterOrEqual(t, child[j], 0.0)
			assert.LessOrEqual(t, child[j], 1.0)
			assert.LessOrEqual(t, child[j]-avg, MutationWindow+1e-12)
			assert.GreaterOrEqual(t, child[j]-avg, -MutationWindow-1e-12)
		}
	}
}

func TestRecoveryRate(t *testing.T) {
	assert.InDelta(t, 1.4, person(0, 0, 1, 1, 0).RecoveryRate(), 1e-9)
	assert.InDelta(t, 0.6, person(0, 0, 0, 0, 1).RecoveryRate(), 1e-9)
}
