package testkit

import (
	"fmt"
	"math/rand"
	"sort"

	"blockrand/domain/allocation"
	"blockrand/domain/core"
)

// EnrollmentGeneratorConfig configures the synthetic enrollment stream
type EnrollmentGeneratorConfig struct {
	SubjectCount int     `json:"subject_count"`
	FemaleRate   float64 `json:"female_rate"`
	MinAge       int     `json:"min_age"`
	MaxAge       int     `json:"max_age"`
	// Covariates lists the levels of extra dimensions; each subject gets a
	// uniformly chosen level per dimension
	Covariates map[string][]string `json:"covariates,omitempty"`
	Seed       int64               `json:"seed"`
}

// DefaultEnrollmentConfig returns a mixed-age population skewed slightly female
func DefaultEnrollmentConfig() EnrollmentGeneratorConfig {
	return EnrollmentGeneratorConfig{
		SubjectCount: 200,
		FemaleRate:   0.55,
		MinAge:       18,
		MaxAge:       85,
		Seed:         42,
	}
}

// EnrollmentGenerator produces synthetic subjects for simulations and tests
type EnrollmentGenerator struct {
	config EnrollmentGeneratorConfig
	rng    *rand.Rand
}

// NewEnrollmentGenerator creates a new generator
func NewEnrollmentGenerator(config EnrollmentGeneratorConfig) *EnrollmentGenerator {
	return &EnrollmentGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate returns SubjectCount subjects with IDs S0001, S0002, ...
func (g *EnrollmentGenerator) Generate() ([]allocation.Subject, error) {
	if g.config.SubjectCount < 0 {
		return nil, fmt.Errorf("subject count must be non-negative, got %d", g.config.SubjectCount)
	}
	if g.config.MinAge < 0 || g.config.MaxAge < g.config.MinAge {
		return nil, fmt.Errorf("invalid age range [%d, %d]", g.config.MinAge, g.config.MaxAge)
	}

	subjects := make([]allocation.Subject, 0, g.config.SubjectCount)
	for i := 0; i < g.config.SubjectCount; i++ {
		subjects = append(subjects, g.next(i+1))
	}
	return subjects, nil
}

func (g *EnrollmentGenerator) next(n int) allocation.Subject {
	gender := allocation.Male
	if g.rng.Float64() < g.config.FemaleRate {
		gender = allocation.Female
	}
	subject := allocation.Subject{
		ID:     core.SubjectID(fmt.Sprintf("S%04d", n)),
		Gender: gender,
		Age:    g.config.MinAge + g.rng.Intn(g.config.MaxAge-g.config.MinAge+1),
	}
	if len(g.config.Covariates) > 0 {
		subject.Covariates = make(map[string]string, len(g.config.Covariates))
		// map order is random; draw in sorted order to stay reproducible
		for _, name := range sortedKeys(g.config.Covariates) {
			levels := g.config.Covariates[name]
			if len(levels) == 0 {
				continue
			}
			subject.Covariates[name] = levels[g.rng.Intn(len(levels))]
		}
	}
	return subject
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
