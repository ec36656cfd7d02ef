// Package reward derives a bounded scalar reward, plus its structured
// components, from observed task-completion facts.
//
// Grounded on original_source's reward_calculation.py for structure (a
// component breakdown, clip-and-log pattern) — the formula itself is
// spec.md §4.6's pinned version: different constants, and a rework_count
// hookup the source never wired up.
package reward

import "math"

// Bounds on the clipped reward value.
const (
	MinReward = -2.0
	MaxReward = 2.0
)

// Fixed reward-formula constants (spec.md §4.6).
const (
	rCompletion     = 1.0
	rOnTime         = 0.5
	rGoodBehaviour  = 0.2
	overduePenaltyPerDay = 0.4
	maxOverdueDaysPenalized = 7
	reworkPenaltyPerCount   = 0.5
	failurePenalty          = 1.2
)

// Facts are the inputs the Reward Calculator needs, derived from completion
// data with no user rating required.
type Facts struct {
	Difficulty     int
	CompletionDays float64 // (completion_time - assigned_at) in days
	OverdueDays    int     // max(0, floor((completion_time-due_date)/day)), 0 if no due date
	OnTime         bool    // due_date is null OR completion_time <= due_date
	ReworkCount    int
	Forced         bool // task was force-closed rather than completed
}

// Components are the six named reward terms a Feedback row stores.
type Components struct {
	RCompletion    float64
	ROnTime        float64
	RGoodBehaviour float64
	POverdue       float64
	PRework        float64
	PFailure       float64
}

// Sum returns the raw (pre-clip) reward: the sum of all six components.
func (c Components) Sum() float64 {
	return c.RCompletion + c.ROnTime + c.RGoodBehaviour + c.POverdue + c.PRework + c.PFailure
}

// expectedDays implements f(d) = max(1, d): one day per difficulty point.
func expectedDays(difficulty int) float64 {
	if difficulty < 1 {
		return 1
	}
	return float64(difficulty)
}

// Explain computes the six reward components for facts, without clipping.
// Exposed separately from Calculate so callers that want the breakdown
// (e.g. an audit view) don't need to recompute it.
func Explain(facts Facts) Components {
	var c Components

	if facts.Forced {
		c.PFailure = -failurePenalty
		return c
	}

	c.RCompletion = rCompletion
	if facts.OnTime {
		c.ROnTime = rOnTime
	}
	if facts.CompletionDays <= expectedDays(facts.Difficulty) {
		c.RGoodBehaviour = rGoodBehaviour
	}

	overdue := facts.OverdueDays
	if overdue > maxOverdueDaysPenalized {
		overdue = maxOverdueDaysPenalized
	}
	if overdue > 0 {
		c.POverdue = -overduePenaltyPerDay * float64(overdue)
	}

	if facts.ReworkCount > 0 {
		c.PRework = -reworkPenaltyPerCount * float64(facts.ReworkCount)
	}

	return c
}

// Calculate returns the clamped reward value and the raw (pre-clip) sum for
// facts. Deterministic: the same facts always produce the same reward (P5).
func Calculate(facts Facts) (rewardValue, rawReward float64, components Components) {
	components = Explain(facts)
	rawReward = components.Sum()
	rewardValue = clamp(rawReward, MinReward, MaxReward)
	return rewardValue, rawReward, components
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
