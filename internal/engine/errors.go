package engine

import "github.com/talgya/hamlet/internal/simerr"

// Hard failures. Each matches its simerr kind under errors.Is.
var (
	ErrSameAgent             = simerr.New(simerr.ErrInvalidArgument, "an agent cannot act on themselves")
	ErrAgentDead             = simerr.New(simerr.ErrInvalidState, "agent is dead")
	ErrAlreadyDead           = simerr.New(simerr.ErrInvalidState, "agent is already dead")
	ErrNoRomance             = simerr.New(simerr.ErrInvalidState, "pair has no active romance")
	ErrWrongStage            = simerr.New(simerr.ErrInvalidState, "romance is in the wrong stage")
	ErrNotEngaged            = simerr.New(simerr.ErrInvalidState, "pair is not engaged")
	ErrNotMarried            = simerr.New(simerr.ErrInvalidState, "agent is not married")
	ErrAlreadyMarried        = simerr.New(simerr.ErrInvalidState, "agent is already married")
	ErrNotPregnant           = simerr.New(simerr.ErrInvalidState, "agent is not pregnant")
	ErrNotDue                = simerr.New(simerr.ErrInvalidState, "pregnancy is not yet due")
	ErrAlreadyEnrolled       = simerr.New(simerr.ErrInvalidState, "agent is already enrolled")
	ErrNotEnrolled           = simerr.New(simerr.ErrInvalidState, "agent is not enrolled")
	ErrNoVacancy             = simerr.New(simerr.ErrInvalidState, "business has no such vacancy")
	ErrAlreadyEmployed       = simerr.New(simerr.ErrInvalidState, "agent already has an occupation")
	ErrNotEmployed           = simerr.New(simerr.ErrInvalidState, "agent has no current occupation")
	ErrBusinessClosed        = simerr.New(simerr.ErrInvalidState, "business is closed")
	ErrBadEndReason          = simerr.New(simerr.ErrInvalidArgument, "unknown end reason")
	ErrUnknownStructure      = simerr.New(simerr.ErrInvalidArgument, "unknown structure kind")
	ErrNotBuilder            = simerr.New(simerr.ErrInvalidArgument, "business does not build")
	ErrCommissionNotFound    = simerr.New(simerr.ErrNotFound, "commission not found")
	ErrCommissionClosed      = simerr.New(simerr.ErrInvalidState, "commission is already completed or abandoned")
	ErrConversationNotFound  = simerr.New(simerr.ErrNotFound, "conversation not found")
	ErrConversationFinished  = simerr.New(simerr.ErrInvalidState, "conversation has no topics left")
	ErrUnknownEducationLevel = simerr.New(simerr.ErrInvalidArgument, "unknown education level")
)

// Eligibility is the outcome of a business-rule check. Failing a check is an
// expected result, not an error: orchestration loops over many candidates.
type Eligibility struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Eligible is a passing check.
func Eligible() Eligibility { return Eligibility{OK: true} }

// Ineligible is a failing check with a reason.
func Ineligible(reason string) Eligibility { return Eligibility{Reason: reason} }
