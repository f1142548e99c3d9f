// Package allocation turns the daily ETF snapshot into per-instrument buy quantities.
package allocation

import (
	"math"
	"sort"

	"github.com/aristath/sipcopy/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
)

// NoMatchGroup is the dedupe bucket for instruments without a reference index
const NoMatchGroup = "NO_MATCH"

// Allocation is one selected instrument with its budget and order quantity
type Allocation struct {
	Symbol          string
	LTP             float64
	ChangePct       float64
	Volume          float64
	UnderlyingAsset string
	MatchedIndex    *string // nil when no reference index matched
	AverageDecline  float64
	Severity        float64
	InitialAmount   float64
	AllocatedAmount float64
	Quantity        int64
	FinalAmount     float64
}

// GroupKey is the dedupe key of the allocation
func (a Allocation) GroupKey() string {
	if a.MatchedIndex == nil {
		return NoMatchGroup
	}
	return *a.MatchedIndex
}

// Stats counts how many rows each stage removed
type Stats struct {
	Input             int
	DroppedInvalid    int // non-positive price or volume below the liquidity floor
	DroppedExcluded   int // excluded keyword in the underlying asset
	DroppedNotFallen  int // did not fall further than its average decline
	DroppedDuplicates int // lower volume within the same reference index
	DroppedBelowFloor int // below MinCap with no headroom to lift them
	ScaleFactor       float64
}

// Result is the output of one allocation run
type Result struct {
	Allocations    []Allocation
	TotalAllocated float64
	TotalFinal     float64
	Stats          Stats
}

// Empty reports whether no instrument survived
func (r *Result) Empty() bool {
	return len(r.Allocations) == 0
}

// Engine applies the severity-based allocation
type Engine struct {
	params Params
	log    zerolog.Logger
}

// NewEngine creates an allocation engine
func NewEngine(params Params, log zerolog.Logger) *Engine {
	return &Engine{
		params: params,
		log:    log.With().Str("service", "allocation").Logger(),
	}
}

// Params returns the engine constants
func (e *Engine) Params() Params {
	return e.params
}

// Allocate runs filter, match, dedupe, score, normalise, floor and quantise over the snapshot.
// It is deterministic: the same inputs always produce the same ordered output.
func (e *Engine) Allocate(instruments []Instrument, table ReferenceTable) *Result {
	p := e.params
	result := &Result{Stats: Stats{Input: len(instruments), ScaleFactor: 1}}

	// Clean & filter, then match and keep only instruments that fell further than their average
	var candidates []Allocation
	for _, inst := range instruments {
		if !finite(inst.LTP) || !finite(inst.Volume) || inst.LTP <= 0 || inst.Volume < p.MinVolume {
			result.Stats.DroppedInvalid++
			continue
		}
		if e.excluded(inst.UnderlyingAsset) {
			result.Stats.DroppedExcluded++
			continue
		}

		a := Allocation{
			Symbol:          inst.Symbol,
			LTP:             inst.LTP,
			ChangePct:       inst.ChangePct,
			Volume:          inst.Volume,
			UnderlyingAsset: inst.UnderlyingAsset,
			AverageDecline:  p.GenericAverageDecline,
		}
		if entry, ok := table.Match(inst.UnderlyingAsset); ok {
			name := entry.IndexName
			a.MatchedIndex = &name
			a.AverageDecline = entry.AverageDecline
		}

		if !(a.ChangePct < a.AverageDecline) {
			result.Stats.DroppedNotFallen++
			continue
		}
		candidates = append(candidates, a)
	}

	selected := dedupe(candidates)
	result.Stats.DroppedDuplicates = len(candidates) - len(selected)

	if len(selected) == 0 {
		e.log.Info().Int("input", len(instruments)).Msg("No ETF fell further than its average decline")
		return result
	}

	// Severity and initial allocation
	for i := range selected {
		a := &selected[i]
		a.Severity = (a.AverageDecline - a.ChangePct) / math.Abs(a.AverageDecline)
		a.InitialAmount = e.initialAmount(a.Severity)
	}

	initial := make([]float64, len(selected))
	for i, a := range selected {
		initial[i] = a.InitialAmount
	}
	total := floats.Sum(initial)

	// Budget normalisation
	switch {
	case total < p.DailySIPMin:
		scale := math.Min(p.DailySIPMin/total, p.MaxCap/floats.Max(initial))
		result.Stats.ScaleFactor = scale
		for i := range selected {
			selected[i].AllocatedAmount = math.Min(p.MaxCap, selected[i].InitialAmount*scale)
		}
	case total > p.DailySIPMax:
		scale := p.DailySIPMax / total
		result.Stats.ScaleFactor = scale
		for i := range selected {
			selected[i].AllocatedAmount = selected[i].InitialAmount * scale
		}
	default:
		for i := range selected {
			selected[i].AllocatedAmount = selected[i].InitialAmount
		}
	}

	// Floor enforcement
	allocated := make([]float64, len(selected))
	shortfall := 0.0
	for i, a := range selected {
		allocated[i] = a.AllocatedAmount
		if a.AllocatedAmount < p.MinCap {
			shortfall += p.MinCap - a.AllocatedAmount
		}
	}
	if shortfall > 0 {
		headroom := p.DailySIPMax - floats.Sum(allocated)
		kept := selected[:0]
		for _, a := range selected {
			if a.AllocatedAmount < p.MinCap {
				if shortfall <= headroom {
					a.AllocatedAmount = p.MinCap
				} else {
					result.Stats.DroppedBelowFloor++
					continue
				}
			}
			kept = append(kept, a)
		}
		selected = kept
		e.log.Debug().
			Float64("shortfall", shortfall).
			Float64("headroom", headroom).
			Int("dropped", result.Stats.DroppedBelowFloor).
			Msg("Applied minimum cap floor")
	}

	// Quantisation
	for i := range selected {
		selected[i].Quantity, selected[i].FinalAmount = quantize(selected[i].AllocatedAmount, selected[i].LTP)
		result.TotalAllocated += selected[i].AllocatedAmount
		result.TotalFinal += selected[i].FinalAmount
	}

	result.Allocations = selected

	e.log.Info().
		Int("input", result.Stats.Input).
		Int("selected", len(selected)).
		Float64("total_allocated", result.TotalAllocated).
		Float64("total_final", result.TotalFinal).
		Msg("Allocation complete")

	return result
}

func (e *Engine) excluded(label string) bool {
	for _, kw := range e.params.ExcludedKeywords {
		if kw != "" && utils.ContainsFold(label, kw) {
			return true
		}
	}
	return false
}

// initialAmount interpolates linearly between MinCap and MaxCap, saturating at the ceiling
func (e *Engine) initialAmount(severity float64) float64 {
	p := e.params
	if severity >= p.SeverityCeiling {
		return p.MaxCap
	}
	return p.MinCap + (severity/p.SeverityCeiling)*(p.MaxCap-p.MinCap)
}

// dedupe keeps the highest-volume instrument per reference index, first seen wins ties.
// The output is ordered by group key.
func dedupe(candidates []Allocation) []Allocation {
	best := make(map[string]int)
	for i, a := range candidates {
		key := a.GroupKey()
		if j, ok := best[key]; !ok || a.Volume > candidates[j].Volume {
			best[key] = i
		}
	}

	keys := make([]string, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Allocation, 0, len(keys))
	for _, k := range keys {
		out = append(out, candidates[best[k]])
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// quantize returns floor(amount/price) units and their cost, using decimal arithmetic
// so that exact multiples are not lost to binary rounding.
func quantize(amount, price float64) (int64, float64) {
	if !finite(price) || !finite(amount) || price <= 0 || amount <= 0 {
		return 0, 0
	}
	p := decimal.NewFromFloat(price)
	qty := decimal.NewFromFloat(amount).Div(p).Floor()
	final, _ := qty.Mul(p).Round(2).Float64()
	return qty.IntPart(), final
}
