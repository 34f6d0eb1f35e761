// Employment: candidate evaluation, hiring, termination and payroll.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/chronicle"
	"github.com/talgya/hamlet/internal/economy"
	"github.com/talgya/hamlet/internal/entropy"
	"github.com/talgya/hamlet/internal/mathx"
	"github.com/talgya/hamlet/internal/social"
)

// Hiring rules.
const (
	MinWorkingAge  = 16
	RetirementAge  = 70
	HireVetoCharge = -15.0

	// PositionProprietor is the owner's own place at their business. It is
	// never advertised as a vacancy.
	PositionProprietor = "proprietor"
)

// CandidateEvaluation scores one candidate for one vacancy.
type CandidateEvaluation struct {
	Eligibility
	CandidateID agents.AgentID `json:"candidate_id"`
	Score       float64        `json:"score"`
}

// HireResult is the outcome of a hiring attempt.
type HireResult struct {
	Eligibility
	Occupation *agents.Occupation `json:"occupation,omitempty"`
}

// PayrollResult summarizes one salary run.
type PayrollResult struct {
	Paid   int     `json:"paid"`
	Unpaid int     `json:"unpaid"`
	Total  float64 `json:"total"`
}

// experienceYears is how long a has worked at businesses of type t.
func experienceYears(a *agents.Agent, t social.BusinessType, tick uint64) float64 {
	if a.Ext.Employment == nil {
		return 0
	}
	var ticks uint64
	count := func(o agents.Occupation) {
		if o.BusinessType != string(t) {
			return
		}
		end := tick
		if o.EndedAt != nil {
			end = *o.EndedAt
		}
		if end > o.StartedAt {
			ticks += end - o.StartedAt
		}
	}
	for _, o := range a.Ext.Employment.Past {
		count(o)
	}
	if cur := a.Ext.Employment.Current; cur != nil {
		count(*cur)
	}
	return float64(ticks) / TicksPerYear
}

// EvaluateCandidate scores candidate for vacancy v at b. hirer is the owner
// making the decision, or nil for a town-run business.
func (s *Simulation) EvaluateCandidate(candidate *agents.Agent, b *social.Business, v social.Vacancy, hirer *agents.Agent, tick uint64) CandidateEvaluation {
	ev := CandidateEvaluation{CandidateID: candidate.ID}
	age := candidate.Age(s.Year(tick))
	var hirerCharge float64
	if hirer != nil {
		hirerCharge = charge(hirer, candidate.ID)
	}
	switch {
	case !candidate.Alive:
		ev.Eligibility = Ineligible("candidate is dead")
		return ev
	case candidate.IsRetired():
		ev.Eligibility = Ineligible("candidate has retired")
		return ev
	case age < max(MinWorkingAge, v.MinAge):
		ev.Eligibility = Ineligible("candidate is too young")
		return ev
	case uint8(candidate.HighestEducation()) < v.RequiredEducation:
		ev.Eligibility = Ineligible("candidate lacks the required education")
		return ev
	case hirer != nil && hirerCharge <= HireVetoCharge:
		ev.Eligibility = Ineligible("the owner will not hire them")
		return ev
	}

	score := 20.0 + 30.0
	score += min(30, 10*experienceYears(candidate, b.Type, tick))
	score += mathx.Clamp(0.5*hirerCharge, -20, 20)
	if hirer != nil && hirer.IsFamily(candidate) {
		score += 15
	}
	score += 20 * candidate.Personality.Conscientiousness
	if candidate.CurrentOccupation() != nil {
		score -= 10
	}
	ev.Eligibility = Eligible()
	ev.Score = score
	return ev
}

// loadBusiness fetches an open business and its owner, if any.
func (s *Simulation) loadBusiness(ctx context.Context, id uint64) (*social.Business, *agents.Agent, error) {
	b, err := s.store.GetBusiness(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load business %d: %w", id, err)
	}
	if b.Closed {
		return nil, nil, fmt.Errorf("%w: %s", ErrBusinessClosed, b.Name)
	}
	var owner *agents.Agent
	if b.OwnerID != nil {
		owner, err = s.store.GetAgent(ctx, agents.AgentID(*b.OwnerID))
		if err != nil {
			return nil, nil, fmt.Errorf("load owner of %s: %w", b.Name, err)
		}
		if !owner.Alive {
			owner = nil
		}
	}
	return b, owner, nil
}

// FindBestCandidate returns the highest-scoring eligible agent for position.
// ok is false when nobody qualifies.
func (s *Simulation) FindBestCandidate(ctx context.Context, businessID uint64, position string, tick uint64) (best CandidateEvaluation, ok bool, err error) {
	b, owner, err := s.loadBusiness(ctx, businessID)
	if err != nil {
		return CandidateEvaluation{}, false, err
	}
	i := b.VacancyIndex(position)
	if i < 0 {
		return CandidateEvaluation{}, false, fmt.Errorf("%w: %s at %s", ErrNoVacancy, position, b.Name)
	}
	list, err := s.store.ListAgents(ctx, s.WorldID)
	if err != nil {
		return CandidateEvaluation{}, false, fmt.Errorf("list agents: %w", err)
	}
	for _, a := range list {
		if owner != nil && a.ID == owner.ID {
			continue
		}
		if b.Employs(uint64(a.ID)) {
			continue
		}
		ev := s.EvaluateCandidate(a, b, b.Vacancies[i], owner, tick)
		if ev.OK && (!ok || ev.Score > best.Score) {
			best, ok = ev, true
		}
	}
	return best, ok, nil
}

// HireEmployee fills position at the business with candidate.
func (s *Simulation) HireEmployee(ctx context.Context, businessID uint64, candidateID agents.AgentID, position string, tick uint64) (HireResult, error) {
	b, owner, err := s.loadBusiness(ctx, businessID)
	if err != nil {
		return HireResult{}, err
	}
	i := b.VacancyIndex(position)
	if i < 0 {
		return HireResult{}, fmt.Errorf("%w: %s at %s", ErrNoVacancy, position, b.Name)
	}
	loaded, err := s.loadAgents(ctx, candidateID)
	if err != nil {
		return HireResult{}, err
	}
	candidate := loaded[0]
	if candidate.CurrentOccupation() != nil {
		return HireResult{}, fmt.Errorf("%w: %d", ErrAlreadyEmployed, candidateID)
	}
	if ev := s.EvaluateCandidate(candidate, b, b.Vacancies[i], owner, tick); !ev.OK {
		return HireResult{Eligibility: ev.Eligibility}, nil
	}

	coworkers, err := s.loadAgents(ctx, employeeIDs(b)...)
	if err != nil {
		return HireResult{}, err
	}
	v := b.FillVacancy(i, uint64(candidate.ID))
	occ := agents.Occupation{
		ID:           uuid.New(),
		BusinessID:   b.ID,
		BusinessType: string(b.Type),
		Position:     v.Position,
		Salary:       v.Salary,
		MinAge:       v.MinAge,
		RequiredEdu:  v.RequiredEducation,
		StartedAt:    tick,
	}
	if owner != nil {
		occ.HiredBy = agents.IDPtr(owner.ID)
	}
	rec := occ
	agents.EmploymentOf(candidate).Current = &rec

	touched := []*agents.Agent{candidate}
	for _, c := range coworkers {
		if !c.Alive || c.ID == candidate.ID {
			continue
		}
		observe(candidate, c, agents.ClassCoworker, tick)
		observe(c, candidate, agents.ClassCoworker, tick)
		touched = append(touched, c)
	}
	if err := s.save(ctx, touched...); err != nil {
		return HireResult{}, err
	}
	if err := s.store.UpdateBusiness(ctx, b); err != nil {
		return HireResult{}, fmt.Errorf("update business %d: %w", b.ID, err)
	}
	s.emit(ctx, chronicle.KindHired, tick, with(named(candidate),
		"position", occ.Position, "business", b.Name, "salary", chronicle.Money(occ.Salary)), candidate.ID)
	return HireResult{Eligibility: Eligible(), Occupation: &occ}, nil
}

func employeeIDs(b *social.Business) []agents.AgentID {
	ids := make([]agents.AgentID, len(b.EmployeeIDs))
	for i, id := range b.EmployeeIDs {
		ids[i] = agents.AgentID(id)
	}
	return ids
}

func validEndReason(r agents.EndReason) bool {
	switch r {
	case agents.EndFired, agents.EndQuit, agents.EndRetired, agents.EndDeath, agents.EndBusinessClosed:
		return true
	}
	return false
}

// endOccupation archives a's current job, returning it, or nil if a had none.
func endOccupation(a *agents.Agent, reason agents.EndReason, tick uint64) *agents.Occupation {
	if a.Ext.Employment == nil || a.Ext.Employment.Current == nil {
		return nil
	}
	rec := a.Ext.Employment
	occ := *rec.Current
	at := tick
	occ.EndedAt = &at
	occ.EndReason = reason
	rec.Past = append(rec.Past, occ)
	rec.Current = nil
	if reason == agents.EndRetired {
		rec.Retired = true
	}
	return &occ
}

// releasePosition takes a off the business roster and, unless the business
// is closing, advertises the job again.
func (s *Simulation) releasePosition(ctx context.Context, a *agents.Agent, occ agents.Occupation) error {
	b, err := s.store.GetBusiness(ctx, occ.BusinessID)
	if err != nil {
		return fmt.Errorf("load business %d: %w", occ.BusinessID, err)
	}
	b.RemoveEmployee(uint64(a.ID))
	if !b.Closed && occ.EndReason != agents.EndBusinessClosed && occ.Position != PositionProprietor {
		b.Vacancies = append(b.Vacancies, social.Vacancy{
			Position:          occ.Position,
			RequiredEducation: occ.RequiredEdu,
			MinAge:            occ.MinAge,
			Salary:            occ.Salary,
		})
	}
	if err := s.store.UpdateBusiness(ctx, b); err != nil {
		return fmt.Errorf("update business %d: %w", b.ID, err)
	}
	return nil
}

// TerminateEmployment ends id's current occupation for reason.
func (s *Simulation) TerminateEmployment(ctx context.Context, id agents.AgentID, reason agents.EndReason, tick uint64) (agents.Occupation, error) {
	if !validEndReason(reason) {
		return agents.Occupation{}, fmt.Errorf("%w: %q", ErrBadEndReason, reason)
	}
	loaded, err := s.loadAgents(ctx, id)
	if err != nil {
		return agents.Occupation{}, err
	}
	a := loaded[0]
	occ := endOccupation(a, reason, tick)
	if occ == nil {
		return agents.Occupation{}, fmt.Errorf("%w: %d", ErrNotEmployed, id)
	}
	b, err := s.store.GetBusiness(ctx, occ.BusinessID)
	if err != nil {
		return agents.Occupation{}, fmt.Errorf("load business %d: %w", occ.BusinessID, err)
	}
	if err := s.save(ctx, a); err != nil {
		return agents.Occupation{}, err
	}
	if err := s.releasePosition(ctx, a, *occ); err != nil {
		return agents.Occupation{}, err
	}
	if reason == agents.EndRetired {
		s.emit(ctx, chronicle.KindRetired, tick, with(named(a), "business", b.Name), a.ID)
	} else {
		s.emit(ctx, chronicle.KindEmploymentEnd, tick, with(named(a),
			"position", occ.Position, "business", b.Name, "reason", string(reason)), a.ID)
	}
	return *occ, nil
}

// CloseBusiness shuts a business and ends every job there.
func (s *Simulation) CloseBusiness(ctx context.Context, businessID uint64, tick uint64) ([]agents.AgentID, error) {
	b, _, err := s.loadBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	staff, err := s.loadAgents(ctx, employeeIDs(b)...)
	if err != nil {
		return nil, err
	}
	var ended []agents.AgentID
	for _, a := range staff {
		if occ := a.CurrentOccupation(); occ != nil && occ.BusinessID == b.ID {
			endOccupation(a, agents.EndBusinessClosed, tick)
			ended = append(ended, a.ID)
		}
	}
	if err := s.save(ctx, staff...); err != nil {
		return nil, err
	}
	b.Closed = true
	b.Vacancies = nil
	b.EmployeeIDs = nil
	if err := s.store.UpdateBusiness(ctx, b); err != nil {
		return nil, fmt.Errorf("update business %d: %w", b.ID, err)
	}
	for _, a := range staff {
		if a.Ext.Employment != nil && len(a.Ext.Employment.Past) > 0 {
			occ := a.Ext.Employment.Past[len(a.Ext.Employment.Past)-1]
			s.emit(ctx, chronicle.KindEmploymentEnd, tick, with(named(a),
				"position", occ.Position, "business", b.Name, "reason", string(agents.EndBusinessClosed)), a.ID)
		}
	}
	return ended, nil
}

// PaySalaries pays every employee a month's wages. Owners pay from their own
// wealth; the town pays for businesses nobody owns. Wages an owner cannot
// cover are skipped and reported.
func (s *Simulation) PaySalaries(ctx context.Context, tick uint64) (PayrollResult, error) {
	list, err := s.store.ListBusinesses(ctx, s.WorldID)
	if err != nil {
		return PayrollResult{}, fmt.Errorf("list businesses: %w", err)
	}
	var res PayrollResult
	for _, b := range list {
		if b.Closed {
			continue
		}
		for _, eid := range employeeIDs(b) {
			paid, err := s.paySalary(ctx, b, eid, tick)
			switch {
			case errors.Is(err, economy.ErrInsufficientFunds):
				res.Unpaid++
			case err != nil:
				return res, err
			case paid > 0:
				res.Paid++
				res.Total += paid
			}
		}
	}
	return res, nil
}

func (s *Simulation) paySalary(ctx context.Context, b *social.Business, employeeID agents.AgentID, tick uint64) (float64, error) {
	loaded, err := s.loadAgents(ctx, employeeID)
	if err != nil {
		return 0, err
	}
	e := loaded[0]
	occ := e.CurrentOccupation()
	if !e.Alive || occ == nil || occ.BusinessID != b.ID || occ.Salary <= 0 {
		return 0, nil
	}
	memo := fmt.Sprintf("wages from %s", b.Name)

	if b.OwnerID == nil || agents.AgentID(*b.OwnerID) == e.ID {
		if _, err := economy.Credit(e, occ.Salary, economy.TxSalary, memo, tick); err != nil {
			return 0, err
		}
		return occ.Salary, s.save(ctx, e)
	}
	loaded, err = s.loadAgents(ctx, agents.AgentID(*b.OwnerID))
	if err != nil {
		return 0, err
	}
	owner := loaded[0]
	if _, err := economy.Transfer(owner, e, occ.Salary, economy.TxSalary, memo, tick); err != nil {
		if errors.Is(err, economy.ErrInsufficientFunds) {
			slog.Warn("salary unpaid", "tick", tick, "business", b.Name, "employee", e.Name(), "salary", occ.Salary, "owner_wealth", owner.Wealth())
			s.emit(ctx, chronicle.KindSalaryUnpaid, tick, with(named(e),
				"business", b.Name, "salary", chronicle.Money(occ.Salary)), e.ID, owner.ID)
		}
		return 0, err
	}
	return occ.Salary, s.save(ctx, owner, e)
}

// FillVacancies hires the best available candidate for every open position.
// An employed candidate moves only if they choose to leave their job.
func (s *Simulation) FillVacancies(ctx context.Context, tick uint64) (int, error) {
	list, err := s.store.ListBusinesses(ctx, s.WorldID)
	if err != nil {
		return 0, fmt.Errorf("list businesses: %w", err)
	}
	hired := 0
	for _, b := range list {
		if b.Closed {
			continue
		}
		positions := make([]string, len(b.Vacancies))
		for i, v := range b.Vacancies {
			positions[i] = v.Position
		}
		for _, pos := range positions {
			best, ok, err := s.FindBestCandidate(ctx, b.ID, pos, tick)
			if err != nil || !ok {
				continue
			}
			if err := s.poach(ctx, best.CandidateID, tick); err != nil {
				continue
			}
			res, err := s.HireEmployee(ctx, b.ID, best.CandidateID, pos, tick)
			if err != nil {
				slog.Warn("hire skipped", "tick", tick, "business", b.Name, "position", pos, "error", err)
				continue
			}
			if res.OK {
				hired++
			}
		}
	}
	return hired, nil
}

var errStays = errors.New("candidate keeps their current job")

// poach has an employed candidate quit, half the time, so they can be hired.
// Proprietors never leave their own business.
func (s *Simulation) poach(ctx context.Context, id agents.AgentID, tick uint64) error {
	a, err := s.store.GetAgent(ctx, id)
	if err != nil {
		return err
	}
	occ := a.CurrentOccupation()
	if occ == nil {
		return nil
	}
	if occ.Position == PositionProprietor || !entropy.Chance(s.rng, 0.5) {
		return errStays
	}
	_, err = s.TerminateEmployment(ctx, id, agents.EndQuit, tick)
	return err
}

// RetireElderly retires every worker who has reached RetirementAge.
func (s *Simulation) RetireElderly(ctx context.Context, tick uint64) (int, error) {
	list, err := s.store.ListAgents(ctx, s.WorldID)
	if err != nil {
		return 0, fmt.Errorf("list agents: %w", err)
	}
	n := 0
	year := s.Year(tick)
	for _, a := range list {
		if !a.Alive || a.CurrentOccupation() == nil || a.Age(year) < RetirementAge {
			continue
		}
		if _, err := s.TerminateEmployment(ctx, a.ID, agents.EndRetired, tick); err != nil {
			slog.Warn("retirement skipped", "tick", tick, "agent", a.ID, "error", err)
			continue
		}
		n++
	}
	return n, nil
}
