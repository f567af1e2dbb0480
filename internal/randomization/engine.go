package randomization

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"blockrand/domain/allocation"
	"blockrand/domain/core"
)

// Config holds the allocation settings exposed to callers
type Config struct {
	Groups    []allocation.Group
	BlockSize int
	// BiasEnabled turns on the rebalancing heuristic. Without it the engine
	// is plain stratified permuted-block randomization.
	BiasEnabled  bool
	PriorityMode PriorityMode
	// Seed makes allocation reproducible; zero seeds from the clock
	Seed int64
}

// DefaultConfig returns the two-arm setup with blocks of four
func DefaultConfig() Config {
	return Config{
		Groups:       allocation.DefaultGroups(),
		BlockSize:    4,
		BiasEnabled:  true,
		PriorityMode: PriorityNeutral,
	}
}

// Validate rejects unusable settings
func (c Config) Validate() error {
	if err := ValidateBlockSize(c.Groups, c.BlockSize); err != nil {
		return err
	}
	seen := make(map[allocation.Group]bool, len(c.Groups))
	for _, g := range c.Groups {
		if _, err := allocation.ParseGroup(string(g)); err != nil {
			return core.NewConfigurationError(fmt.Sprintf("unsupported group %q", g))
		}
		if seen[g] {
			return core.NewConfigurationError(fmt.Sprintf("group %q listed twice", g))
		}
		seen[g] = true
	}
	if _, err := ParsePriorityMode(string(c.PriorityMode)); err != nil {
		return err
	}
	return nil
}

// BiasReason records why a priority was or was not applied
type BiasReason string

const (
	BiasNone     BiasReason = "none"
	BiasGlobal   BiasReason = "global"
	BiasStratum  BiasReason = "stratum"
	BiasDisabled BiasReason = "disabled"
)

// Decision is the outcome of the bias step for one request
type Decision struct {
	Key       allocation.StrataKey `json:"strata"`
	Priority  allocation.Group     `json:"priority,omitempty"`
	Reason    BiasReason           `json:"reason"`
	Global    allocation.ArmCounts `json:"global"`
	Stratum   allocation.ArmCounts `json:"stratum"`
	HalfBlock int                  `json:"half_block"`
}

// Engine allocates subjects to arms. It owns one queue per stratum and
// reads balance from the tracker, which must only be advanced after an
// AssignNext call returns.
type Engine struct {
	mu         sync.Mutex
	cfg        Config
	stratifier *Stratifier
	tracker    *Tracker
	queues     map[allocation.StrataKey]*StrataQueue
}

// NewEngine validates cfg and creates a pre-loaded queue for every stratum
// in the stratifier's domain. A stratum whose recorded assignments stop
// part way through a block gets the rest of that block, so balance carries
// across restarts. A nil stratifier selects gender × age band; a
// nil rng is seeded from cfg.Seed.
func NewEngine(cfg Config, stratifier *Stratifier, tracker *Tracker, rng *rand.Rand) (*Engine, error) {
	if cfg.PriorityMode == "" {
		cfg.PriorityMode = PriorityNeutral
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if stratifier == nil {
		stratifier = DefaultStratifier()
	}
	if tracker == nil {
		tracker = NewTracker(nil)
	}
	if rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}
	groups := make([]allocation.Group, len(cfg.Groups))
	copy(groups, cfg.Groups)
	cfg.Groups = groups

	e := &Engine{
		cfg:        cfg,
		stratifier: stratifier,
		tracker:    tracker,
		queues:     make(map[allocation.StrataKey]*StrataQueue),
	}
	drawn := make(map[allocation.StrataKey][]allocation.Group)
	for _, r := range tracker.Records() {
		drawn[r.Key] = append(drawn[r.Key], r.Group)
	}

	resumed := 0
	for _, key := range stratifier.Keys() {
		q, err := NewStrataQueue(key, cfg.Groups, cfg.BlockSize, cfg.PriorityMode, rng)
		if err != nil {
			return nil, err
		}
		labels := drawn[key]
		inFlight := labels[len(labels)-len(labels)%cfg.BlockSize:]
		if err := q.Resume(inFlight); err != nil {
			return nil, err
		}
		if len(inFlight) > 0 {
			resumed++
		}
		e.queues[key] = q
	}
	if resumed > 0 {
		log.Printf("[Engine] resumed %d partially drawn blocks from %d recorded assignments", resumed, tracker.Len())
	}
	return e, nil
}

// AssignNextFor allocates a subject described only by gender and age
func (e *Engine) AssignNextFor(gender allocation.Gender, age int) (allocation.Group, error) {
	g, _, err := e.AssignNext(allocation.Subject{Gender: gender, Age: age})
	return g, err
}

// AssignNext derives the subject's stratum, decides whether to bias, and
// pops the next label from the stratum's queue
func (e *Engine) AssignNext(subject allocation.Subject) (allocation.Group, Decision, error) {
	key, err := e.stratifier.Derive(subject)
	if err != nil {
		return "", Decision{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	q, ok := e.queues[key]
	if !ok {
		return "", Decision{}, core.NewUnknownStrataError(key.String())
	}

	d := e.decide(key, e.tracker.Snapshot())
	if d.Priority != "" {
		if err := q.Regenerate(d.Priority); err != nil {
			return "", d, err
		}
		log.Printf("[Engine] %s imbalance in %s (global A=%d B=%d, stratum A=%d B=%d): queued priority block favouring %s",
			d.Reason, key, d.Global.A, d.Global.B, d.Stratum.A, d.Stratum.B, d.Priority)
	}

	g, err := q.Assign("")
	if err != nil {
		return "", d, err
	}
	return g, d, nil
}

// Decide previews the bias decision for a stratum without touching queues
func (e *Engine) Decide(key allocation.StrataKey) (Decision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.queues[key]; !ok {
		return Decision{}, core.NewUnknownStrataError(key.String())
	}
	return e.decide(key, e.tracker.Snapshot()), nil
}

// decide applies the global check first and the stratum check second
func (e *Engine) decide(key allocation.StrataKey, counts allocation.BalanceCounts) Decision {
	d := Decision{
		Key:       key,
		Reason:    BiasNone,
		Global:    counts.Total,
		Stratum:   counts.Stratum(key),
		HalfBlock: e.cfg.BlockSize / 2,
	}
	if !e.cfg.BiasEnabled {
		d.Reason = BiasDisabled
		return d
	}
	if d.Global.Diff() >= d.HalfBlock {
		if g, ok := d.Global.UnderRepresented(); ok {
			d.Priority, d.Reason = g, BiasGlobal
			return d
		}
	}
	if d.Stratum.Diff() >= d.HalfBlock {
		if g, ok := d.Stratum.UnderRepresented(); ok {
			d.Priority, d.Reason = g, BiasStratum
		}
	}
	return d
}

// SetBlockSize changes the block size for every stratum. Labels already
// queued are unaffected.
func (e *Engine) SetBlockSize(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ValidateBlockSize(e.cfg.Groups, n); err != nil {
		return err
	}
	for _, q := range e.queues {
		if err := q.SetBlockSize(n); err != nil {
			return err
		}
	}
	e.cfg.BlockSize = n
	return nil
}

// BlockSize returns the current block size
func (e *Engine) BlockSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.BlockSize
}

// Config returns a copy of the engine settings
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg := e.cfg
	cfg.Groups = append([]allocation.Group(nil), e.cfg.Groups...)
	return cfg
}

// QueueLen returns how many labels are pending for a stratum
func (e *Engine) QueueLen(key allocation.StrataKey) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	q, ok := e.queues[key]
	if !ok {
		return 0, core.NewUnknownStrataError(key.String())
	}
	return q.Len(), nil
}

// Stratifier returns the stratifier defining the key domain
func (e *Engine) Stratifier() *Stratifier { return e.stratifier }

// Tracker returns the balance tracker the engine reads from
func (e *Engine) Tracker() *Tracker { return e.tracker }
