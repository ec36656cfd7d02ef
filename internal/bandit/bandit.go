// Package bandit implements a linear disjoint LinUCB contextual bandit: one
// ridge-regression model per arm (employee), selected by an upper-confidence
// bound and updated online from observed rewards.
//
// Grounded structurally on original_source's contextual_bandit.py (per-arm
// state, select/update naming, docstring register); the learning algorithm
// itself is a full replacement — the source's per-employee logistic
// regression is exactly what spec.md §4.4 and §9 supersede.
package bandit

import (
	"math"
	"sort"

	"github.com/taskloop/assignengine/internal/model"
)

// Config holds the bandit's tunables.
type Config struct {
	Dimension int     // D
	Alpha     float64 // exploration coefficient
	Lambda    float64 // ridge prior
}

// DefaultConfig matches spec.md §4.4's pinned defaults.
func DefaultConfig(dimension int) Config {
	return Config{Dimension: dimension, Alpha: 1.0, Lambda: 1.0}
}

// Arm is the in-memory working copy of one employee's ridge-regression
// state, mirroring model.BanditArm.
type Arm struct {
	EmployeeID  string
	A           [][]float64
	B           []float64
	UpdateCount uint64
}

// NewArm returns a cold-start arm: A = lambda*I, b = 0.
func NewArm(employeeID string, cfg Config) Arm {
	return Arm{
		EmployeeID: employeeID,
		A:          identity(cfg.Dimension, cfg.Lambda),
		B:          make([]float64, cfg.Dimension),
	}
}

// FromModel converts a persisted model.BanditArm into a working Arm,
// cold-starting it if absent (arm == nil).
func FromModel(employeeID string, arm *model.BanditArm, cfg Config) Arm {
	if arm == nil {
		return NewArm(employeeID, cfg)
	}
	return Arm{
		EmployeeID:  arm.EmployeeID,
		A:           cloneMatrix(arm.A),
		B:           cloneVector(arm.B),
		UpdateCount: arm.UpdateCount,
	}
}

// ToModel converts a working Arm back into its persisted form.
func (a Arm) ToModel() model.BanditArm {
	return model.BanditArm{
		EmployeeID:  a.EmployeeID,
		A:           cloneMatrix(a.A),
		B:           cloneVector(a.B),
		UpdateCount: a.UpdateCount,
	}
}

// Candidate is one arm under consideration for selection, paired with the
// context vector the Feature Extractor built for it.
type Candidate struct {
	Employee model.Employee
	Arm      Arm
	Context  []float64
}

// Decision is the result of a selection: the winning employee id, its UCB
// score, and the context vector that produced it (authoritative per I5).
type Decision struct {
	EmployeeID string
	Score      float64
	Context    []float64
}

// Select returns the arg max over candidates of theta_a . x_a +
// alpha*sqrt(x_a^T A_a^-1 x_a), breaking ties by higher productivity score,
// then lower workload, then lexicographic employee id (§4.4). candidates
// must be non-empty.
func Select(candidates []Candidate, cfg Config) Decision {
	type scored struct {
		c     Candidate
		score float64
	}
	scoredAll := make([]scored, len(candidates))
	for i, c := range candidates {
		scoredAll[i] = scored{c: c, score: ucb(c.Arm, c.Context, cfg)}
	}

	sort.SliceStable(scoredAll, func(i, j int) bool {
		a, b := scoredAll[i], scoredAll[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.c.Employee.ProductivityScore != b.c.Employee.ProductivityScore {
			return a.c.Employee.ProductivityScore > b.c.Employee.ProductivityScore
		}
		if a.c.Employee.Workload != b.c.Employee.Workload {
			return a.c.Employee.Workload < b.c.Employee.Workload
		}
		return a.c.Employee.ID < b.c.Employee.ID
	})

	best := scoredAll[0]
	return Decision{EmployeeID: best.c.Employee.ID, Score: best.score, Context: best.c.Context}
}

// ucb computes theta^T x + alpha*sqrt(x^T A^-1 x) for one arm. A Cholesky
// failure (extreme ill-conditioning) degrades the arm to cold-start for
// this decision only, per §4.4.
func ucb(arm Arm, x []float64, cfg Config) float64 {
	l, err := cholesky(arm.A)
	if err != nil {
		cold := NewArm(arm.EmployeeID, cfg)
		l, err = cholesky(cold.A)
		if err != nil {
			return 0
		}
		exploration := cfg.Alpha * math.Sqrt(quadForm(l, x))
		return exploration
	}
	theta := choleskySolve(l, arm.B)
	mean := dot(theta, x)
	exploration := cfg.Alpha * math.Sqrt(quadForm(l, x))
	return mean + exploration
}

// Update applies the ridge-regression update for an observed reward:
// A <- A + x x^T, b <- b + r*x. It returns the updated arm; callers persist
// it transactionally alongside the feedback row that produced r.
func Update(arm Arm, x []float64, reward float64) Arm {
	a := cloneMatrix(arm.A)
	b := cloneVector(arm.B)
	addOuterProduct(a, x)
	addScaled(b, reward, x)
	return Arm{
		EmployeeID:  arm.EmployeeID,
		A:           a,
		B:           b,
		UpdateCount: arm.UpdateCount + 1,
	}
}
