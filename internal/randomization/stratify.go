package randomization

import (
	"fmt"
	"strings"

	"blockrand/domain/allocation"
	"blockrand/domain/core"
)

// Dimension is one categorical stratification covariate. A stratum is one
// level from every configured dimension.
type Dimension interface {
	Name() string
	Levels() []string
	Classify(s allocation.Subject) (string, error)
}

// GenderDimension classifies subjects by gender
type GenderDimension struct{}

func (GenderDimension) Name() string { return "gender" }

func (GenderDimension) Levels() []string {
	genders := allocation.Genders()
	levels := make([]string, len(genders))
	for i, g := range genders {
		levels[i] = g.String()
	}
	return levels
}

func (GenderDimension) Classify(s allocation.Subject) (string, error) {
	g, err := allocation.ParseGender(string(s.Gender))
	if err != nil {
		return "", err
	}
	return g.String(), nil
}

// AgeBandDimension splits subjects at Threshold; an age equal to the
// threshold falls in the upper band.
type AgeBandDimension struct {
	Threshold int
}

func (d AgeBandDimension) Name() string { return "age_band" }

func (d AgeBandDimension) Levels() []string {
	return []string{d.under(), d.atLeast()}
}

func (d AgeBandDimension) Classify(s allocation.Subject) (string, error) {
	if s.Age < 0 {
		return "", core.NewInvalidInputError("age", fmt.Sprintf("must be non-negative, got %d", s.Age))
	}
	if s.Age < d.Threshold {
		return d.under(), nil
	}
	return d.atLeast(), nil
}

func (d AgeBandDimension) under() string   { return fmt.Sprintf("<%d", d.Threshold) }
func (d AgeBandDimension) atLeast() string { return fmt.Sprintf("≥%d", d.Threshold) }

// CovariateDimension is an additional categorical covariate read from
// Subject.Covariates
type CovariateDimension struct {
	name   string
	levels []string
}

// NewCovariateDimension validates the level set of an extra covariate
func NewCovariateDimension(name string, levels []string) (*CovariateDimension, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, core.NewConfigurationError("covariate dimension needs a name")
	}
	if len(levels) == 0 {
		return nil, core.NewConfigurationError(fmt.Sprintf("covariate %q has no levels", name))
	}
	seen := make(map[string]bool, len(levels))
	clean := make([]string, 0, len(levels))
	for _, l := range levels {
		l = strings.TrimSpace(l)
		if l == "" || strings.Contains(l, "/") {
			return nil, core.NewConfigurationError(fmt.Sprintf("covariate %q has invalid level %q", name, l))
		}
		if seen[l] {
			return nil, core.NewConfigurationError(fmt.Sprintf("covariate %q repeats level %q", name, l))
		}
		seen[l] = true
		clean = append(clean, l)
	}
	return &CovariateDimension{name: name, levels: clean}, nil
}

func (d *CovariateDimension) Name() string { return d.name }

func (d *CovariateDimension) Levels() []string {
	out := make([]string, len(d.levels))
	copy(out, d.levels)
	return out
}

func (d *CovariateDimension) Classify(s allocation.Subject) (string, error) {
	v := strings.TrimSpace(s.Covariates[d.name])
	for _, l := range d.levels {
		if strings.EqualFold(l, v) {
			return l, nil
		}
	}
	return "", core.NewInvalidInputError(d.name, fmt.Sprintf("unknown level %q", v))
}

// Stratifier maps subjects to stratification keys over a closed key domain,
// the cartesian product of its dimensions' levels.
type Stratifier struct {
	dims  []Dimension
	keys  []allocation.StrataKey
	index map[allocation.StrataKey]struct{}
}

// NewStratifier builds the key domain for the given dimensions, first
// dimension outermost
func NewStratifier(dims ...Dimension) (*Stratifier, error) {
	if len(dims) == 0 {
		return nil, core.NewConfigurationError("at least one stratification dimension is required")
	}
	names := make(map[string]bool, len(dims))
	combos := [][]string{{}}
	for _, d := range dims {
		if names[d.Name()] {
			return nil, core.NewConfigurationError(fmt.Sprintf("duplicate dimension %q", d.Name()))
		}
		names[d.Name()] = true

		levels := d.Levels()
		if len(levels) == 0 {
			return nil, core.NewConfigurationError(fmt.Sprintf("dimension %q has no levels", d.Name()))
		}
		next := make([][]string, 0, len(combos)*len(levels))
		for _, prefix := range combos {
			for _, l := range levels {
				combo := make([]string, len(prefix), len(prefix)+1)
				copy(combo, prefix)
				next = append(next, append(combo, l))
			}
		}
		combos = next
	}

	s := &Stratifier{
		dims:  dims,
		keys:  make([]allocation.StrataKey, len(combos)),
		index: make(map[allocation.StrataKey]struct{}, len(combos)),
	}
	for i, combo := range combos {
		key := allocation.NewStrataKey(combo...)
		s.keys[i] = key
		s.index[key] = struct{}{}
	}
	return s, nil
}

// DefaultStratifier returns the gender × age band stratifier with the fixed
// threshold of 55
func DefaultStratifier() *Stratifier {
	s, err := NewStratifier(GenderDimension{}, AgeBandDimension{Threshold: allocation.AgeThreshold})
	if err != nil {
		panic(err)
	}
	return s
}

// DeriveKey maps gender and age to one of the four default strata
func DeriveKey(gender allocation.Gender, age int) (allocation.StrataKey, error) {
	return defaultStratifier.Derive(allocation.Subject{Gender: gender, Age: age})
}

var defaultStratifier = DefaultStratifier()

// Derive classifies a subject along every dimension
func (s *Stratifier) Derive(subject allocation.Subject) (allocation.StrataKey, error) {
	levels := make([]string, len(s.dims))
	for i, d := range s.dims {
		l, err := d.Classify(subject)
		if err != nil {
			return "", err
		}
		levels[i] = l
	}
	return allocation.NewStrataKey(levels...), nil
}

// Keys returns the full key domain in construction order
func (s *Stratifier) Keys() []allocation.StrataKey {
	out := make([]allocation.StrataKey, len(s.keys))
	copy(out, s.keys)
	return out
}

// Contains reports whether key is in the domain
func (s *Stratifier) Contains(key allocation.StrataKey) bool {
	_, ok := s.index[key]
	return ok
}

// Dimensions returns the configured dimensions in key order
func (s *Stratifier) Dimensions() []Dimension {
	out := make([]Dimension, len(s.dims))
	copy(out, s.dims)
	return out
}

// Parse normalizes a persisted key ("Male/<55", "Male / <55") and checks it
// against the domain
func (s *Stratifier) Parse(raw string) (allocation.StrataKey, error) {
	key := allocation.NewStrataKey(allocation.StrataKey(raw).Levels()...)
	if !s.Contains(key) {
		return "", core.NewUnknownStrataError(raw)
	}
	return key, nil
}
