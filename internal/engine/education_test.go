package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/entropy"
)

func studious() agents.Personality {
	return agents.Personality{Openness: 1, Conscientiousness: 1, Extroversion: 0.5, Agreeableness: 0.5, Neuroticism: 0}
}

func withEducation(level agents.EducationLevel) func(*agents.Agent) {
	return func(a *agents.Agent) { agents.EducationOf(a).HighestLevel = level }
}

func TestCreditsPerPeriodIsClamped(t *testing.T) {
	assert.InDelta(t, MaxCreditsPerPeriod, CreditsPerPeriod(studious(), 1), 1e-9)

	idle := agents.Personality{Neuroticism: 1}
	assert.InDelta(t, MinCreditsPerPeriod, CreditsPerPeriod(idle, 1), 1e-9)

	// 5 * (0.6 + 0.25 + 0.15 - 0.15)
	assert.InDelta(t, 4.25, CreditsPerPeriod(neutral(), 1), 1e-9)
	assert.InDelta(t, 4.25*0.5, CreditsPerPeriod(neutral(), 0.5), 1e-9)
}

func TestDropoutChance(t *testing.T) {
	assert.InDelta(t, 0.01, DropoutChance(studious(), 3), 1e-9)
	assert.InDelta(t, MaxDropoutChance, DropoutChance(agents.Personality{Neuroticism: 1}, 0), 1e-9)
}

func TestEnrollmentEligibility(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		name  string
		age   int
		done  agents.EducationLevel
		level agents.EducationLevel
		ok    bool
	}{
		{"primary at six", 6, agents.EducationNone, agents.EducationPrimary, true},
		{"primary too young", 5, agents.EducationNone, agents.EducationPrimary, false},
		{"secondary without primary", 13, agents.EducationNone, agents.EducationSecondary, false},
		{"secondary after primary", 13, agents.EducationPrimary, agents.EducationSecondary, true},
		{"university repeat", 25, agents.EducationUniversity, agents.EducationUniversity, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := f.person("Ada", agents.SexFemale, tt.age, withEducation(tt.done))
			e := EnrollmentEligibility(f.get(id), tt.level, testYear)
			assert.Equal(t, tt.ok, e.OK, e.Reason)
		})
	}
}

func TestEnrollErrors(t *testing.T) {
	f := newFixture(t, nil)
	id := f.person("Ada", agents.SexFemale, 7)

	_, err := f.sim.Enroll(f.ctx, id, agents.EducationLevel(9), nil, 0)
	assert.ErrorIs(t, err, ErrUnknownEducationLevel)

	res, err := f.sim.Enroll(f.ctx, id, agents.EducationSecondary, nil, 0)
	require.NoError(t, err)
	assert.False(t, res.OK)

	res, err = f.sim.Enroll(f.ctx, id, agents.EducationPrimary, nil, 0)
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, uint64(12*TicksPerMonth), res.Enrollment.ExpectedGraduation)
	assert.Contains(t, f.sim.Registry.Enrollments, id)

	_, err = f.sim.Enroll(f.ctx, id, agents.EducationPrimary, nil, 1)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)

	_, err = f.sim.ProgressEducation(f.ctx, f.person("Eli", agents.SexMale, 7), 30)
	assert.ErrorIs(t, err, ErrNotEnrolled)
}

func TestUniversityTakesAtLeastTwentyPeriods(t *testing.T) {
	f := newFixture(t, entropy.NewScripted(0.99))
	id := f.person("Ada", agents.SexFemale, 19, withPersonality(studious()), withEducation(agents.EducationSecondary))

	res, err := f.sim.Enroll(f.ctx, id, agents.EducationUniversity, nil, 0)
	require.NoError(t, err)
	require.True(t, res.OK, res.Reason)

	for period := 1; period < 20; period++ {
		p, err := f.sim.ProgressEducation(f.ctx, id, uint64(period*TicksPerMonth))
		require.NoError(t, err)
		require.False(t, p.Graduated, "graduated after %d periods", period)
		require.False(t, p.DroppedOut)
		assert.InDelta(t, MaxCreditsPerPeriod, p.Earned, 1e-9)
	}

	p, err := f.sim.ProgressEducation(f.ctx, id, 20*TicksPerMonth)
	require.NoError(t, err)
	assert.True(t, p.Graduated)
	assert.Equal(t, 20, p.Enrollment.Periods)
	assert.Equal(t, agents.EnrollmentGraduated, p.Enrollment.Status)
	assert.LessOrEqual(t, p.Enrollment.GPA, MaxGPA)

	a := f.get(id)
	assert.Equal(t, agents.EducationUniversity, a.HighestEducation())
	assert.Nil(t, a.Ext.Education.Current)
	assert.Len(t, a.Ext.Education.History, 1)
	assert.Empty(t, f.sim.Registry.Enrollments)
}

func TestGraduationCheckedBeforeDropout(t *testing.T) {
	// Every dropout roll would succeed.
	f := newFixture(t, entropy.NewScripted(0))
	id := f.person("Ada", agents.SexFemale, 13, withPersonality(studious()), withEducation(agents.EducationPrimary))
	_, err := f.sim.Enroll(f.ctx, id, agents.EducationSecondary, nil, 0)
	require.NoError(t, err)
	f.edit(id, func(a *agents.Agent) { a.Ext.Education.Current.Credits = 47 })

	p, err := f.sim.ProgressEducation(f.ctx, id, 30)
	require.NoError(t, err)
	assert.True(t, p.Graduated)
	assert.False(t, p.DroppedOut)
}

func TestDropoutAndWithdraw(t *testing.T) {
	f := newFixture(t, entropy.NewScripted(0))
	id := f.person("Ada", agents.SexFemale, 7)
	_, err := f.sim.Enroll(f.ctx, id, agents.EducationPrimary, nil, 0)
	require.NoError(t, err)

	p, err := f.sim.ProgressEducation(f.ctx, id, 30)
	require.NoError(t, err)
	assert.True(t, p.DroppedOut)
	assert.Equal(t, agents.EnrollmentDropped, p.Enrollment.Status)
	assert.Equal(t, agents.EducationNone, f.get(id).HighestEducation())

	other := f.person("Eli", agents.SexMale, 7)
	_, err = f.sim.Enroll(f.ctx, other, agents.EducationPrimary, nil, 0)
	require.NoError(t, err)
	e, err := f.sim.Withdraw(f.ctx, other, 15)
	require.NoError(t, err)
	assert.Equal(t, agents.EnrollmentDropped, e.Status)
	assert.NotContains(t, f.sim.Registry.Enrollments, other)

	_, err = f.sim.Withdraw(f.ctx, other, 16)
	assert.ErrorIs(t, err, ErrNotEnrolled)
}

func TestEnrollEligibleStartsSchoolAge(t *testing.T) {
	f := newFixture(t, nil)
	child := f.person("Nell", agents.SexFemale, 6)
	toddler := f.person("Asa", agents.SexMale, 3)
	adult := f.person("Ida", agents.SexFemale, 40)

	require.NoError(t, f.sim.EnrollEligible(f.ctx, 0))
	assert.NotNil(t, f.get(child).Ext.Education.Current)
	assert.Nil(t, f.get(toddler).Ext.Education)
	assert.Nil(t, f.get(adult).Ext.Education)
}
