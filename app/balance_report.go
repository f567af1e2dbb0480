package app

import (
	"math"

	"blockrand/domain/allocation"
	"blockrand/internal/randomization"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// StratumBalance is the arm split within one stratum
type StratumBalance struct {
	Key  allocation.StrataKey `json:"strata"`
	A    int                  `json:"a"`
	B    int                  `json:"b"`
	Diff int                  `json:"diff"`
}

// BalanceReport summarizes allocation balance
type BalanceReport struct {
	Total       int                  `json:"total"`
	Global      allocation.ArmCounts `json:"global"`
	Strata      []StratumBalance     `json:"strata"`
	MeanAbsDiff float64              `json:"mean_abs_diff"`
	MaxAbsDiff  float64              `json:"max_abs_diff"`
	// GlobalPValue is the two-sided exact binomial p-value of the global
	// split against a fair 1:1 allocation
	GlobalPValue float64 `json:"global_p_value"`
	BlockSize    int     `json:"block_size"`
	Fingerprint  string  `json:"fingerprint"`
}

// BalanceReporter builds balance reports from the engine's tracker
type BalanceReporter struct {
	engine *randomization.Engine
}

// NewBalanceReporter creates a reporter
func NewBalanceReporter(engine *randomization.Engine) *BalanceReporter {
	return &BalanceReporter{engine: engine}
}

// Report lists every stratum of the domain, including empty ones
func (r *BalanceReporter) Report() BalanceReport {
	tracker := r.engine.Tracker()
	counts := tracker.Snapshot()

	report := BalanceReport{
		Total:        counts.Total.Total(),
		Global:       counts.Total,
		BlockSize:    r.engine.BlockSize(),
		Fingerprint:  tracker.Fingerprint().Short(),
		GlobalPValue: BinomialBalancePValue(counts.Total.A, counts.Total.B),
	}

	keys := r.engine.Stratifier().Keys()
	diffs := make([]float64, 0, len(keys))
	for _, key := range keys {
		c := counts.Stratum(key)
		report.Strata = append(report.Strata, StratumBalance{Key: key, A: c.A, B: c.B, Diff: c.Diff()})
		diffs = append(diffs, float64(c.Diff()))
	}

	if mean, err := stats.Mean(diffs); err == nil {
		report.MeanAbsDiff = mean
	}
	if max, err := stats.Max(diffs); err == nil {
		report.MaxAbsDiff = max
	}
	return report
}

// BinomialBalancePValue returns the two-sided exact binomial test p-value
// for a observations in one arm and b in the other under p = 0.5
func BinomialBalancePValue(a, b int) float64 {
	n := a + b
	if n == 0 {
		return 1
	}
	k := a
	if b < k {
		k = b
	}
	dist := distuv.Binomial{N: float64(n), P: 0.5}
	return math.Min(1, 2*dist.CDF(float64(k)))
}
