// Package feature builds the 8-dimensional context vector the bandit
// consumes, from a (task, employee) pair.
//
// Grounded on the "build a feature slice from task+employee" shape of
// original_source's contextual_bandit.py (get_context_features); every
// normalization formula below is this spec's pinned version, not the
// source's — the source mixes priority/difficulty scalings inconsistently
// across files and that is deliberately not carried over.
package feature

import (
	"time"

	"github.com/taskloop/assignengine/internal/model"
)

// Dimension is D, the fixed length of a context vector.
const Dimension = 8

// Config holds the tunables the extractor's normalizations depend on.
type Config struct {
	WorkloadCap   int           // W_max
	UrgencyHorizon time.Duration // H
}

// DefaultConfig matches spec.md §4.3's representative values.
func DefaultConfig() Config {
	return Config{WorkloadCap: 10, UrgencyHorizon: 72 * time.Hour}
}

// Extractor builds context vectors. The same Extractor (same Config) MUST be
// used at selection time and at learning time (§4.3); the vector stored on
// the Assignment is authoritative for learning (I5).
type Extractor struct {
	cfg Config
}

// New creates an Extractor with cfg. A zero Config falls back to DefaultConfig.
func New(cfg Config) *Extractor {
	if cfg.WorkloadCap <= 0 {
		cfg.WorkloadCap = DefaultConfig().WorkloadCap
	}
	if cfg.UrgencyHorizon <= 0 {
		cfg.UrgencyHorizon = DefaultConfig().UrgencyHorizon
	}
	return &Extractor{cfg: cfg}
}

// Extract builds the 8-dim context vector x for (task, employee) evaluated
// at now. similarity is the mean-pairwise cosine the Similarity Filter
// already computed for this employee (0 if either skill list is empty).
func (x *Extractor) Extract(task model.Task, employee model.Employee, similarity float64, now time.Time) []float64 {
	v := make([]float64, Dimension)

	v[0] = clamp01(employee.ProductivityScore)

	wMax := float64(x.cfg.WorkloadCap)
	workload := float64(employee.Workload)
	if workload > wMax {
		workload = wMax
	}
	v[1] = 1 - workload/wMax

	v[2] = clamp01(float64(task.Priority-1) / 4)
	v[3] = clamp01(float64(task.Difficulty-1) / 9)

	v[4] = clamp01(similarity)

	v[5] = urgency(task.DueDate, now, x.cfg.UrgencyHorizon)

	expMean, tenureMean := experienceTenure(task.RequiredSkills, employee.Skills)
	v[6] = expMean
	v[7] = tenureMean

	return v
}

func urgency(due *time.Time, now time.Time, horizon time.Duration) float64 {
	if due == nil {
		return 0
	}
	hoursUntilDue := due.Sub(now).Hours()
	h := horizon.Hours()
	if h <= 0 {
		h = 1
	}
	return clamp01((h - hoursUntilDue) / h)
}

// experienceTenure returns the mean normalized experience and tenure
// (months/60, clamped) over required skills the employee also has. Zero for
// either when there is no overlap.
func experienceTenure(required []string, skills []model.Skill) (expMean, tenureMean float64) {
	if len(required) == 0 || len(skills) == 0 {
		return 0, 0
	}
	byName := make(map[string]model.Skill, len(skills))
	for _, s := range skills {
		byName[s.Name] = s
	}

	var expSum, tenureSum float64
	var matches int
	for _, name := range required {
		s, ok := byName[name]
		if !ok {
			continue
		}
		matches++
		expSum += clamp01(float64(s.ExperienceMonths) / 60)
		tenureSum += clamp01(float64(s.TenureMonths) / 60)
	}
	if matches == 0 {
		return 0, 0
	}
	return expSum / float64(matches), tenureSum / float64(matches)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
