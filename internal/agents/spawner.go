// Agent spawning: founding populations and newborns.
package agents

import (
	"github.com/talgya/hamlet/internal/entropy"
	"github.com/talgya/hamlet/internal/mathx"
)

// Spawner creates agents. Ids are left zero; the store assigns them on create.
type Spawner struct {
	rng entropy.Source
}

// NewSpawner creates a spawner drawing from rng.
func NewSpawner(rng entropy.Source) *Spawner {
	return &Spawner{rng: rng}
}

// SpawnFounder creates an adult settler for a new town.
func (s *Spawner) SpawnFounder(worldID uint64, year int, tick uint64) *Agent {
	sex := s.randomSex()
	age := s.weightedAge()
	a := &Agent{
		WorldID:     worldID,
		FirstName:   s.firstName(sex),
		LastName:    lastNames[s.rng.Intn(len(lastNames))],
		BirthYear:   year - age,
		Sex:         sex,
		Attraction:  s.orientation(sex),
		Personality: RandomPersonality(s.rng),
		Alive:       true,
		BornTick:    tick,
	}
	// Founders arrive with modest savings.
	FinancesOf(a).SetWealth(50 + s.rng.Float64()*450)
	return a
}

// SpawnChild creates a newborn of mother and father. The child takes the
// father's last name and an inherited personality.
func (s *Spawner) SpawnChild(mother, father *Agent, year int, tick uint64) *Agent {
	sex := s.randomSex()
	child := &Agent{
		WorldID:     mother.WorldID,
		FirstName:   s.firstName(sex),
		LastName:    father.LastName,
		BirthYear:   year,
		Sex:         sex,
		Attraction:  s.orientation(sex),
		Personality: Inherit(mother.Personality, father.Personality, s.rng),
		Alive:       true,
		MotherID:    IDPtr(mother.ID),
		FatherID:    IDPtr(father.ID),
		ResidenceID: mother.ResidenceID,
		LocationID:  mother.ResidenceID,
		BornTick:    tick,
	}
	FinancesOf(child)
	return child
}

func (s *Spawner) randomSex() Sex {
	if s.rng.Float64() < 0.5 {
		return SexFemale
	}
	return SexMale
}

// orientation draws from the simplified model: 90% opposite sex, 5% both, 5% same.
func (s *Spawner) orientation(sex Sex) Attraction {
	r := s.rng.Float64()
	opposite := Attraction{Men: sex == SexFemale, Women: sex == SexMale}
	switch {
	case r < 0.90:
		return opposite
	case r < 0.95:
		return Attraction{Men: true, Women: true}
	default:
		return Attraction{Men: sex == SexMale, Women: sex == SexFemale}
	}
}

// weightedAge centers founders on working age; range 18 to 60.
func (s *Spawner) weightedAge() int {
	age := 18 + s.rng.Float64()*22 + s.rng.Float64()*20
	return int(mathx.Clamp(age, 18, 60))
}

func (s *Spawner) firstName(sex Sex) string {
	if sex == SexMale {
		return maleNames[s.rng.Intn(len(maleNames))]
	}
	return femaleNames[s.rng.Intn(len(femaleNames))]
}

var maleNames = []string{
	"Abel", "Amos", "Asa", "Calvin", "Cyrus", "Eli", "Elias", "Ezra", "Gideon", "Henry",
	"Hiram", "Isaac", "Jasper", "Jesse", "Josiah", "Levi", "Moses", "Nathaniel", "Obadiah", "Silas",
	"Thaddeus", "Walter", "Wesley", "Zebulon",
}

var femaleNames = []string{
	"Abigail", "Ada", "Adelaide", "Clara", "Cora", "Delia", "Edith", "Eliza", "Esther", "Hattie",
	"Hester", "Ida", "Lavinia", "Lydia", "Mabel", "Martha", "Mercy", "Nell", "Olive", "Prudence",
	"Rhoda", "Ruth", "Sarah", "Tabitha",
}

var lastNames = []string{
	"Abbott", "Barlow", "Birch", "Calloway", "Crane", "Dawes", "Ellery", "Fenn", "Garrow", "Hale",
	"Hollis", "Kemp", "Lowell", "Marsh", "Pike", "Quarles", "Rudd", "Sayer", "Thorne", "Tully",
	"Vance", "Whitcomb", "Wren", "Yates",
}
