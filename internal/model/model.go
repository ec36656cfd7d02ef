// Package model contains the domain entities passed between the
// assignment engine's layers.
package model

import "time"

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

// Task lifecycle states. A task never transitions backwards.
const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskReview     TaskStatus = "review"
	TaskDone       TaskStatus = "done"
)

// AssignMode selects how a task is assigned: picked automatically by the
// bandit, or pinned to a specific employee by the caller.
type AssignMode string

// Supported assignment modes.
const (
	AssignAuto   AssignMode = "auto"
	AssignManual AssignMode = "manual"
)

// Skill is a single named skill with optional tenure/experience context.
// ExperienceMonths and TenureMonths are zero when unknown.
type Skill struct {
	Name             string
	ExperienceMonths int
	TenureMonths     int
}

// Embedding is a unit-L2-norm real vector of fixed dimension D.
type Embedding []float64

// Employee is a candidate for task assignment.
type Employee struct {
	ID         string
	Name       string
	Skills     []Skill
	Embeddings []Embedding // one per Skills entry, cached, unit norm

	ProductivityScore float64 // in [0,1]
	Workload          int     // count of open assignments
	Active            bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Task is a unit of work to be assigned to an employee.
type Task struct {
	ID          string
	Title       string
	Description string

	Priority   int // 1..5, higher = more urgent
	Difficulty int // 1..10

	RequiredSkills    []string
	SkillEmbeddings   []Embedding // one per RequiredSkills entry, cached

	Status     TaskStatus
	CreatorID  string
	AssigneeID string // empty when unassigned
	DueDate    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Assignment binds a task to an employee and records the context vector the
// bandit used to pick it. Once CompletedAt is set it is immutable (I1).
type Assignment struct {
	ID          string
	TaskID      string
	AssigneeID  string
	AssignerID  string
	Context     []float64 // D-dim, captured at selection time (I5)
	ReworkCount int

	AssignedAt  time.Time
	CompletedAt *time.Time
}

// Open reports whether the assignment has not yet been completed.
func (a *Assignment) Open() bool { return a.CompletedAt == nil }

// Feedback is the structured outcome of a completed task, written at most
// once per task (I2).
type Feedback struct {
	ID         string
	TaskID     string
	EmployeeID string

	RCompletion     float64
	ROnTime         float64
	RGoodBehaviour  float64
	POverdue        float64
	PRework         float64
	PFailure        float64

	OverdueDays int
	RawReward   float64
	RewardValue float64 // clipped to [-2.0, +2.0]

	Context []float64 // copied from the Assignment (P3)

	CreatedAt time.Time
}

// BanditArm is the persisted per-arm state of the contextual bandit: a DxD
// ridge matrix A, a D-vector b, and a monotonically increasing update
// counter. An arm is identified by an employee id.
type BanditArm struct {
	EmployeeID  string
	A           [][]float64 // D x D, symmetric positive definite
	B           []float64   // D
	UpdateCount uint64
}
