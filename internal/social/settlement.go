// Package social provides the world entities agents refer to by id:
// settlements, businesses with their vacancies, and finished structures.
package social

import "slices"

// SettlementID is a unique identifier for a settlement.
type SettlementID = uint64

// Settlement is a town. Agents reference it by location and residence.
type Settlement struct {
	ID       SettlementID `json:"id" db:"id"`
	WorldID  uint64       `json:"world_id" db:"world_id"`
	Name     string       `json:"name" db:"name"`
	Founded  int          `json:"founded" db:"founded"`
	Treasury float64      `json:"treasury" db:"treasury"`
}

// BusinessType names what a business does. Business rivalry compares types.
type BusinessType string

const (
	BusinessFarm    BusinessType = "farm"
	BusinessSmithy  BusinessType = "smithy"
	BusinessStore   BusinessType = "general_store"
	BusinessMill    BusinessType = "mill"
	BusinessTavern  BusinessType = "tavern"
	BusinessSchool  BusinessType = "school"
	BusinessBuilder BusinessType = "builder"
)

// Vacancy is an open position at a business.
type Vacancy struct {
	Position string `json:"position"`
	// RequiredEducation is an agents.EducationLevel; kept numeric so this
	// package does not depend on agents.
	RequiredEducation uint8   `json:"required_education"`
	MinAge            int     `json:"min_age"`
	Salary            float64 `json:"salary"`
}

// Business is an employer owned by an agent, or by the town when OwnerID is nil.
type Business struct {
	ID           uint64       `json:"id"`
	WorldID      uint64       `json:"world_id"`
	SettlementID SettlementID `json:"settlement_id"`
	Name         string       `json:"name"`
	Type         BusinessType `json:"type"`
	OwnerID      *uint64      `json:"owner_id,omitempty"`
	Vacancies    []Vacancy    `json:"vacancies,omitempty"`
	EmployeeIDs  []uint64     `json:"employee_ids,omitempty"`
	Closed       bool         `json:"closed"`
}

// VacancyIndex returns the index of the open vacancy for position, or -1.
func (b *Business) VacancyIndex(position string) int {
	for i, v := range b.Vacancies {
		if v.Position == position {
			return i
		}
	}
	return -1
}

// FillVacancy removes the vacancy at i and adds the employee.
func (b *Business) FillVacancy(i int, employee uint64) Vacancy {
	v := b.Vacancies[i]
	b.Vacancies = slices.Delete(b.Vacancies, i, i+1)
	if !slices.Contains(b.EmployeeIDs, employee) {
		b.EmployeeIDs = append(b.EmployeeIDs, employee)
	}
	return v
}

// RemoveEmployee drops employee from the roster.
func (b *Business) RemoveEmployee(employee uint64) {
	b.EmployeeIDs = slices.DeleteFunc(b.EmployeeIDs, func(id uint64) bool { return id == employee })
}

// Employs reports whether employee works here.
func (b *Business) Employs(employee uint64) bool {
	return slices.Contains(b.EmployeeIDs, employee)
}

// Structure is a finished building.
type Structure struct {
	ID           uint64       `json:"id" db:"id"`
	WorldID      uint64       `json:"world_id" db:"world_id"`
	SettlementID SettlementID `json:"settlement_id" db:"settlement_id"`
	Kind         string       `json:"kind" db:"kind"`
	OwnerID      uint64       `json:"owner_id" db:"owner_id"`
	BuiltAt      uint64       `json:"built_at" db:"built_at"`
	BuilderID    uint64       `json:"builder_id" db:"builder_id"`
}
