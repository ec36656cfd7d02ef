// Package repository defines the persistence abstraction the assignment
// engine's coordinator depends on, covering tasks, employees, assignments,
// feedback, and bandit arm state (spec's logical layout in §6). Two
// backends implement it: an in-memory store for tests and small
// deployments, and a durable SQLite store.
//
// The two multi-row operations (Assign, Complete) are the only mutation
// entry points that touch more than one table; both backends must apply
// their side effects atomically — all or nothing — so a failed call never
// leaves a task half-assigned or half-completed (§7 Recovery policy).
package repository

import (
	"context"
	"errors"

	"github.com/taskloop/assignengine/internal/model"
)

// Sentinel errors a Store implementation returns; internal/app translates
// these into its own public error taxonomy.
var (
	ErrNotFound = errors.New("repository: not found")
	ErrConflict = errors.New("repository: conflicting write")
)

// AssignRecord bundles everything a single assign_task call commits: the
// task transitioning out of unassigned state, and the new open assignment.
// The employee's workload is derived and incremented by the store from
// Assignment.AssigneeID; callers don't pass a separate Employee record.
type AssignRecord struct {
	Task       model.Task
	Assignment model.Assignment
}

// CompletionRecord bundles everything a single complete_task call commits:
// the task moving to done, the assignment closing out, the feedback row,
// and the arm's updated ridge-regression state.
type CompletionRecord struct {
	Task       model.Task
	Assignment model.Assignment
	Feedback   model.Feedback
	Arm        model.BanditArm
}

// Store is the full persistence surface the coordinator depends on.
type Store interface {
	// GetTask returns ErrNotFound if id does not exist.
	GetTask(ctx context.Context, id string) (model.Task, error)

	// PutTask upserts a task outside the two transactional operations below
	// (used for seeding; mark_rework goes through MarkRework, which touches
	// only the assignment row).
	PutTask(ctx context.Context, task model.Task) error

	// ListActiveEmployees returns every employee eligible for assignment.
	ListActiveEmployees(ctx context.Context) ([]model.Employee, error)

	// GetEmployee returns ErrNotFound if id does not exist.
	GetEmployee(ctx context.Context, id string) (model.Employee, error)

	// PutEmployee upserts an employee record (seeding, embedding cache
	// backfill).
	PutEmployee(ctx context.Context, employee model.Employee) error

	// GetBanditArm returns the persisted arm for employeeID, or (nil, nil)
	// if the employee has never been updated (cold start).
	GetBanditArm(ctx context.Context, employeeID string) (*model.BanditArm, error)

	// GetOpenAssignmentForTask returns the task's current open assignment,
	// or ErrNotFound if the task has none.
	GetOpenAssignmentForTask(ctx context.Context, taskID string) (model.Assignment, error)

	// GetFeedbackForTask returns ErrNotFound if no feedback row exists yet.
	GetFeedbackForTask(ctx context.Context, taskID string) (model.Feedback, error)

	// Assign atomically writes rec.Task and rec.Assignment and increments
	// the assignee's workload counter by one.
	Assign(ctx context.Context, rec AssignRecord) error

	// Complete atomically writes rec.Task, closes out rec.Assignment,
	// inserts rec.Feedback, decrements the assignee's workload counter by
	// one, and upserts rec.Arm.
	Complete(ctx context.Context, rec CompletionRecord) error

	// MarkRework increments the open assignment's rework counter for
	// taskID. Returns ErrNotFound if the task has no open assignment.
	MarkRework(ctx context.Context, taskID string) error

	// Close releases any resources the store holds (e.g. a database
	// handle). A no-op for pure in-memory stores.
	Close() error
}
