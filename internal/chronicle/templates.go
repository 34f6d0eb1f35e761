package chronicle

import (
	"strings"

	"github.com/dustin/go-humanize"
)

// Kind identifies an event type and its template.
type Kind string

const (
	KindBirth         Kind = "birth"
	KindDeath         Kind = "death"
	KindConversation  Kind = "conversation"
	KindFriendship    Kind = "friendship"
	KindEnmity        Kind = "enmity"
	KindAttraction    Kind = "attraction"
	KindDating        Kind = "dating"
	KindDate          Kind = "date"
	KindEngagement    Kind = "engagement"
	KindRejection     Kind = "proposal_rejected"
	KindMarriage      Kind = "marriage"
	KindDivorce       Kind = "divorce"
	KindWidowed       Kind = "widowed"
	KindConception    Kind = "conception"
	KindGriefBegan    Kind = "grief_began"
	KindGriefStage    Kind = "grief_stage"
	KindGriefResolved Kind = "grief_resolved"
	KindEnrolled      Kind = "enrolled"
	KindGraduated     Kind = "graduated"
	KindDroppedOut    Kind = "dropped_out"
	KindHired         Kind = "hired"
	KindEmploymentEnd Kind = "employment_ended"
	KindRetired       Kind = "retired"
	KindSalaryUnpaid  Kind = "salary_unpaid"
	KindLoan          Kind = "loan"
	KindRepayment     Kind = "repayment"
	KindDefault       Kind = "debt_default"
	KindTrade         Kind = "trade"
	KindCommissioned  Kind = "commissioned"
	KindMilestone     Kind = "construction_milestone"
	KindDelayed       Kind = "construction_delayed"
	KindCompleted     Kind = "construction_completed"
	KindAbandoned     Kind = "construction_abandoned"
	KindDrama         Kind = "drama"
)

var templates = map[Kind]string{
	KindBirth:         "{name} was born in {year}",
	KindDeath:         "{name} died of {cause} at the age of {age}",
	KindConversation:  "{name} talked with {other} about {topics}",
	KindFriendship:    "{name} has come to count {other} as a friend",
	KindEnmity:        "{name} can no longer abide {other}",
	KindAttraction:    "{name} has taken a fancy to {other}",
	KindDating:        "{name} and {other} have begun courting",
	KindDate:          "{name} and {other} went walking together",
	KindEngagement:    "{name} and {other} are engaged to be married",
	KindRejection:     "{other} turned down {name}'s proposal: {reason}",
	KindMarriage:      "{name} and {other} were married in {year}",
	KindDivorce:       "{name} has divorced {other}",
	KindWidowed:       "{name} was widowed by the death of {other}",
	KindConception:    "{name} is expecting a child with {other}",
	KindGriefBegan:    "{name} mourns the loss of their {kinship}, {other}",
	KindGriefStage:    "{name}'s grief for {other} has turned to {stage}",
	KindGriefResolved: "{name} has made peace with the death of {other}",
	KindEnrolled:      "{name} began {level} schooling",
	KindGraduated:     "{name} completed {level} schooling with a {gpa} average",
	KindDroppedOut:    "{name} left {level} schooling",
	KindHired:         "{name} was taken on as {position} at {business} for {salary} a month",
	KindEmploymentEnd: "{name} is no longer {position} at {business} ({reason})",
	KindRetired:       "{name} retired from {business}",
	KindSalaryUnpaid:  "{business} could not pay {name} their wages of {salary}",
	KindLoan:          "{name} lent {amount} to {other}",
	KindRepayment:     "{other} repaid {amount} to {name}",
	KindDefault:       "{other} defaulted on a debt of {amount} owed to {name}",
	KindTrade:         "{name} bought {quantity} {good} from {other} for {amount}",
	KindCommissioned:  "{name} commissioned a {kind} from {builder} for {amount}",
	KindMilestone:     "{name}'s {kind} is {percent} complete",
	KindDelayed:       "Work on {name}'s {kind} has fallen behind",
	KindCompleted:     "{name}'s new {kind} is finished",
	KindAbandoned:     "Work on {name}'s {kind} was abandoned: {reason}",
	KindDrama:         "{summary}",
}

var categories = map[Kind]Category{
	KindBirth:         CategoryFamily,
	KindConception:    CategoryFamily,
	KindDeath:         CategoryDeath,
	KindWidowed:       CategoryDeath,
	KindGriefBegan:    CategoryDeath,
	KindGriefStage:    CategoryDeath,
	KindGriefResolved: CategoryDeath,
	KindAttraction:    CategoryRomance,
	KindDating:        CategoryRomance,
	KindDate:          CategoryRomance,
	KindEngagement:    CategoryRomance,
	KindRejection:     CategoryRomance,
	KindMarriage:      CategoryRomance,
	KindDivorce:       CategoryRomance,
	KindEnrolled:      CategoryEducation,
	KindGraduated:     CategoryEducation,
	KindDroppedOut:    CategoryEducation,
	KindHired:         CategoryEconomy,
	KindEmploymentEnd: CategoryEconomy,
	KindRetired:       CategoryEconomy,
	KindSalaryUnpaid:  CategoryEconomy,
	KindLoan:          CategoryEconomy,
	KindRepayment:     CategoryEconomy,
	KindDefault:       CategoryEconomy,
	KindTrade:         CategoryEconomy,
	KindCommissioned:  CategoryBuilding,
	KindMilestone:     CategoryBuilding,
	KindDelayed:       CategoryBuilding,
	KindCompleted:     CategoryBuilding,
	KindAbandoned:     CategoryBuilding,
	KindDrama:         CategoryDrama,
}

// Template returns the fixed template for the kind.
func (k Kind) Template() string {
	if t, ok := templates[k]; ok {
		return t
	}
	return "{name}: " + string(k)
}

// Category returns the reporting category of the kind.
func (k Kind) Category() Category {
	if c, ok := categories[k]; ok {
		return c
	}
	return CategorySocial
}

// Render substitutes ev.Data into the kind's template. Missing fields are
// left as their placeholder.
func Render(ev Event) string {
	out := ev.Kind.Template()
	for k, v := range ev.Data {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

// Money renders an amount of currency for narration.
func Money(amount float64) string {
	return "$" + humanize.CommafWithDigits(amount, 2)
}

// Percent renders a whole-number percentage.
func Percent(p int) string {
	return humanize.Comma(int64(p)) + "%"
}
