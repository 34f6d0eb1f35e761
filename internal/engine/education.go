// Education: enrollment, credit accrual, graduation and dropout.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/chronicle"
	"github.com/talgya/hamlet/internal/entropy"
	"github.com/talgya/hamlet/internal/mathx"
	"github.com/talgya/hamlet/internal/social"
)

// Credit and GPA rules. One progress period is one month.
const (
	NominalCredits      = 5.0
	MinCreditsPerPeriod = 2.0
	MaxCreditsPerPeriod = 6.0
	StartingGPA         = 2.5
	MaxGPA              = 4.0
	MaxDropoutChance    = 0.3
)

// LevelRule describes one education level.
type LevelRule struct {
	MinAge          int
	CreditsRequired float64
	Requires        agents.EducationLevel
}

// LevelRules lists the levels an agent can enroll in.
var LevelRules = map[agents.EducationLevel]LevelRule{
	agents.EducationPrimary:    {MinAge: 6, CreditsRequired: 60, Requires: agents.EducationNone},
	agents.EducationSecondary:  {MinAge: 12, CreditsRequired: 48, Requires: agents.EducationPrimary},
	agents.EducationUniversity: {MinAge: 18, CreditsRequired: 120, Requires: agents.EducationSecondary},
}

// EnrollmentResult is the outcome of an enrollment attempt.
type EnrollmentResult struct {
	Eligibility
	Enrollment *agents.EducationData `json:"enrollment,omitempty"`
}

// EducationProgress reports one period of study.
type EducationProgress struct {
	Enrollment agents.EducationData `json:"enrollment"`
	Earned     float64              `json:"earned"`
	Graduated  bool                 `json:"graduated"`
	DroppedOut bool                 `json:"dropped_out"`
}

// CreditsPerPeriod is how many credits a student with p earns in one period.
func CreditsPerPeriod(p agents.Personality, work float64) float64 {
	raw := NominalCredits * (0.6 + 0.5*p.Conscientiousness + 0.3*p.Openness - 0.3*p.Neuroticism) * work
	return mathx.Clamp(raw, MinCreditsPerPeriod, MaxCreditsPerPeriod)
}

// DropoutChance is the per-period chance of leaving school.
func DropoutChance(p agents.Personality, gpa float64) float64 {
	c := 0.01 + 0.1*math.Max(0, 2-gpa) + 0.05*(1-p.Conscientiousness) + 0.05*p.Neuroticism
	return math.Min(MaxDropoutChance, c)
}

// ExpectedGraduation is when a student starting at tick should finish,
// studying at the nominal rate.
func ExpectedGraduation(tick uint64, credits float64) uint64 {
	return tick + uint64(math.Ceil(credits/NominalCredits))*TicksPerMonth
}

// EnrollmentEligibility checks whether a may start level in year.
func EnrollmentEligibility(a *agents.Agent, level agents.EducationLevel, year int) Eligibility {
	rule := LevelRules[level]
	switch {
	case a.Age(year) < rule.MinAge:
		return Ineligible(fmt.Sprintf("too young for %s schooling", level))
	case a.HighestEducation() >= level:
		return Ineligible(fmt.Sprintf("already completed %s schooling", level))
	case a.HighestEducation() < rule.Requires:
		return Ineligible(fmt.Sprintf("%s schooling requires %s", level, rule.Requires))
	}
	return Eligible()
}

// Enroll starts a at level, optionally at a school.
func (s *Simulation) Enroll(ctx context.Context, id agents.AgentID, level agents.EducationLevel, schoolID *uint64, tick uint64) (EnrollmentResult, error) {
	rule, ok := LevelRules[level]
	if !ok {
		return EnrollmentResult{}, fmt.Errorf("%w: %d", ErrUnknownEducationLevel, level)
	}
	loaded, err := s.loadAgents(ctx, id)
	if err != nil {
		return EnrollmentResult{}, err
	}
	a := loaded[0]
	if !a.Alive {
		return EnrollmentResult{}, fmt.Errorf("%w: %d", ErrAgentDead, id)
	}
	if a.Ext.Education != nil && a.Ext.Education.Current != nil {
		return EnrollmentResult{}, fmt.Errorf("%w: %d", ErrAlreadyEnrolled, id)
	}
	if e := EnrollmentEligibility(a, level, s.Year(tick)); !e.OK {
		return EnrollmentResult{Eligibility: e}, nil
	}

	e := agents.EducationData{
		ID:                 uuid.New(),
		Level:              level,
		SchoolID:           schoolID,
		EnrolledAt:         tick,
		ExpectedGraduation: ExpectedGraduation(tick, rule.CreditsRequired),
		CreditsRequired:    rule.CreditsRequired,
		GPA:                StartingGPA,
		Status:             agents.EnrollmentActive,
	}
	rec := e
	agents.EducationOf(a).Current = &rec
	if err := s.save(ctx, a); err != nil {
		return EnrollmentResult{}, err
	}
	reg := e
	s.Registry.Enrollments[a.ID] = &reg
	s.emit(ctx, chronicle.KindEnrolled, tick, with(named(a), "level", level.String()), a.ID)
	return EnrollmentResult{Eligibility: Eligible(), Enrollment: &e}, nil
}

// endEnrollment closes a's current enrollment with status and archives it.
func endEnrollment(a *agents.Agent, status agents.EnrollmentStatus, tick uint64) agents.EducationData {
	rec := agents.EducationOf(a)
	e := *rec.Current
	e.Status = status
	at := tick
	e.EndedAt = &at
	if status == agents.EnrollmentGraduated && e.Level > rec.HighestLevel {
		rec.HighestLevel = e.Level
	}
	rec.History = append(rec.History, e)
	rec.Current = nil
	return e
}

// ProgressEducation runs one period of study for id. Finishing the credits
// is checked before the dropout roll.
func (s *Simulation) ProgressEducation(ctx context.Context, id agents.AgentID, tick uint64) (EducationProgress, error) {
	loaded, err := s.loadAgents(ctx, id)
	if err != nil {
		return EducationProgress{}, err
	}
	a := loaded[0]
	if a.Ext.Education == nil || a.Ext.Education.Current == nil {
		return EducationProgress{}, fmt.Errorf("%w: %d", ErrNotEnrolled, id)
	}
	if !a.Alive {
		return EducationProgress{}, fmt.Errorf("%w: %d", ErrAgentDead, id)
	}
	cur := a.Ext.Education.Current
	p := a.Personality

	earned := CreditsPerPeriod(p, a.Modifiers().Work)
	cur.Credits += earned
	cur.Periods++
	cur.GPA = mathx.Clamp(cur.GPA+(s.rng.Float64()-0.5)*0.2+0.05*(p.Conscientiousness-0.5), 0, MaxGPA)

	res := EducationProgress{Earned: earned}
	switch {
	case cur.Credits >= cur.CreditsRequired:
		res.Enrollment = endEnrollment(a, agents.EnrollmentGraduated, tick)
		res.Graduated = true
	case entropy.Chance(s.rng, DropoutChance(p, cur.GPA)):
		res.Enrollment = endEnrollment(a, agents.EnrollmentDropped, tick)
		res.DroppedOut = true
	default:
		res.Enrollment = *cur
	}
	if err := s.save(ctx, a); err != nil {
		return EducationProgress{}, err
	}

	level := res.Enrollment.Level.String()
	switch {
	case res.Graduated:
		delete(s.Registry.Enrollments, a.ID)
		s.emit(ctx, chronicle.KindGraduated, tick, with(named(a), "level", level, "gpa", fmt.Sprintf("%.2f", res.Enrollment.GPA)), a.ID)
	case res.DroppedOut:
		delete(s.Registry.Enrollments, a.ID)
		s.emit(ctx, chronicle.KindDroppedOut, tick, with(named(a), "level", level), a.ID)
	default:
		e := res.Enrollment
		s.Registry.Enrollments[a.ID] = &e
	}
	return res, nil
}

// Withdraw takes id out of school.
func (s *Simulation) Withdraw(ctx context.Context, id agents.AgentID, tick uint64) (agents.EducationData, error) {
	loaded, err := s.loadAgents(ctx, id)
	if err != nil {
		return agents.EducationData{}, err
	}
	a := loaded[0]
	if a.Ext.Education == nil || a.Ext.Education.Current == nil {
		return agents.EducationData{}, fmt.Errorf("%w: %d", ErrNotEnrolled, id)
	}
	e := endEnrollment(a, agents.EnrollmentDropped, tick)
	if err := s.save(ctx, a); err != nil {
		return agents.EducationData{}, err
	}
	delete(s.Registry.Enrollments, a.ID)
	s.emit(ctx, chronicle.KindDroppedOut, tick, with(named(a), "level", e.Level.String()), a.ID)
	return e, nil
}

// ProgressAllEducation runs one period for every enrolled student.
func (s *Simulation) ProgressAllEducation(ctx context.Context, tick uint64) {
	for _, id := range s.Registry.Students() {
		if _, err := s.ProgressEducation(ctx, id, tick); err != nil {
			slog.Warn("education step skipped", "tick", tick, "student", id, "error", err)
			delete(s.Registry.Enrollments, id)
		}
	}
}

// EnrollEligible starts schooling for everyone who has come of age for
// their next level. University is optional and goes to the studious.
func (s *Simulation) EnrollEligible(ctx context.Context, tick uint64) error {
	list, err := s.store.ListAgents(ctx, s.WorldID)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	school, err := s.firstBusinessOfType(ctx, social.BusinessSchool)
	if err != nil {
		return err
	}
	year := s.Year(tick)
	for _, a := range list {
		if !a.Alive || (a.Ext.Education != nil && a.Ext.Education.Current != nil) {
			continue
		}
		next := a.HighestEducation() + 1
		rule, ok := LevelRules[next]
		if !ok || a.Age(year) < rule.MinAge || a.Age(year) > rule.MinAge+4 {
			continue
		}
		if next == agents.EducationUniversity {
			p := a.Personality
			if !entropy.Chance(s.rng, 0.3*(p.Conscientiousness+p.Openness)/2) {
				continue
			}
		}
		if _, err := s.Enroll(ctx, a.ID, next, school, tick); err != nil {
			slog.Warn("enrollment skipped", "tick", tick, "agent", a.ID, "error", err)
		}
	}
	return nil
}

func (s *Simulation) firstBusinessOfType(ctx context.Context, t social.BusinessType) (*uint64, error) {
	list, err := s.store.ListBusinesses(ctx, s.WorldID)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	for _, b := range list {
		if b.Type == t && !b.Closed {
			id := b.ID
			return &id, nil
		}
	}
	return nil, nil
}
