package sqlite_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/taskloop/assignengine/internal/model"
	"github.com/taskloop/assignengine/internal/repository"
	"github.com/taskloop/assignengine/internal/repository/sqlite"
)

func openTempStore(t *testing.T) *sqlite.Store {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "assignengine-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	path := tmpfile.Name()
	tmpfile.Close()
	os.Remove(path)
	t.Cleanup(func() {
		os.Remove(path)
		os.Remove(path + "-wal")
		os.Remove(path + "-shm")
	})

	s, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_PutAndGetTask(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	task := model.Task{
		ID:             "t1",
		Title:          "write docs",
		Priority:       3,
		Difficulty:     2,
		RequiredSkills: []string{"writing", "go"},
		Status:         model.TaskTodo,
		CreatorID:      "c1",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.PutTask(ctx, task); err != nil {
		t.Fatalf("PutTask failed: %v", err)
	}

	got, err := s.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Title != "write docs" || got.Priority != 3 || len(got.RequiredSkills) != 2 {
		t.Errorf("unexpected task returned: %+v", got)
	}
}

func TestStore_GetTask_NotFound(t *testing.T) {
	s := openTempStore(t)
	_, err := s.GetTask(context.Background(), "missing")
	if err != repository.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_AssignAndComplete(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	employee := model.Employee{ID: "e1", Name: "Ada", Active: true, CreatedAt: now, UpdatedAt: now}
	if err := s.PutEmployee(ctx, employee); err != nil {
		t.Fatalf("PutEmployee failed: %v", err)
	}

	task := model.Task{ID: "t1", Status: model.TaskTodo, CreatedAt: now, UpdatedAt: now}
	assignedTask := task
	assignedTask.Status = model.TaskInProgress
	assignedTask.AssigneeID = "e1"
	assignment := model.Assignment{
		ID: "a1", TaskID: "t1", AssigneeID: "e1",
		Context: []float64{0.1, 0.2}, AssignedAt: now,
	}

	if err := s.Assign(ctx, repository.AssignRecord{Task: assignedTask, Assignment: assignment}); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	gotEmployee, err := s.GetEmployee(ctx, "e1")
	if err != nil {
		t.Fatalf("GetEmployee failed: %v", err)
	}
	if gotEmployee.Workload != 1 {
		t.Errorf("expected workload 1, got %d", gotEmployee.Workload)
	}

	open, err := s.GetOpenAssignmentForTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetOpenAssignmentForTask failed: %v", err)
	}
	if open.ID != "a1" || len(open.Context) != 2 {
		t.Errorf("unexpected open assignment: %+v", open)
	}

	if err := s.Assign(ctx, repository.AssignRecord{Task: assignedTask, Assignment: assignment}); err != repository.ErrConflict {
		t.Errorf("expected ErrConflict on re-assign, got %v", err)
	}

	completedAt := now.Add(time.Hour)
	doneTask := assignedTask
	doneTask.Status = model.TaskDone
	doneTask.UpdatedAt = completedAt
	completedAssignment := assignment
	completedAssignment.CompletedAt = &completedAt
	feedback := model.Feedback{
		ID: "f1", TaskID: "t1", EmployeeID: "e1",
		RCompletion: 1.0, RawReward: 1.0, RewardValue: 1.0,
		Context: []float64{0.1, 0.2}, CreatedAt: completedAt,
	}
	arm := model.BanditArm{EmployeeID: "e1", A: [][]float64{{1, 0}, {0, 1}}, B: []float64{0.5, 0}, UpdateCount: 1}

	err = s.Complete(ctx, repository.CompletionRecord{
		Task: doneTask, Assignment: completedAssignment, Feedback: feedback, Arm: arm,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	gotEmployee, err = s.GetEmployee(ctx, "e1")
	if err != nil {
		t.Fatalf("GetEmployee failed: %v", err)
	}
	if gotEmployee.Workload != 0 {
		t.Errorf("expected workload back to 0, got %d", gotEmployee.Workload)
	}

	if _, err := s.GetOpenAssignmentForTask(ctx, "t1"); err != repository.ErrNotFound {
		t.Errorf("expected no open assignment after completion, got %v", err)
	}

	gotFeedback, err := s.GetFeedbackForTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetFeedbackForTask failed: %v", err)
	}
	if gotFeedback.RewardValue != 1.0 {
		t.Errorf("expected reward value 1.0, got %f", gotFeedback.RewardValue)
	}

	gotArm, err := s.GetBanditArm(ctx, "e1")
	if err != nil {
		t.Fatalf("GetBanditArm failed: %v", err)
	}
	if gotArm == nil || gotArm.UpdateCount != 1 || gotArm.A[0][0] != 1 {
		t.Errorf("unexpected persisted arm: %+v", gotArm)
	}

	err = s.Complete(ctx, repository.CompletionRecord{
		Task: doneTask, Assignment: completedAssignment, Feedback: feedback, Arm: arm,
	})
	if err != repository.ErrConflict {
		t.Errorf("expected ErrConflict on re-complete, got %v", err)
	}
}

func TestStore_GetBanditArm_ColdStart(t *testing.T) {
	s := openTempStore(t)
	arm, err := s.GetBanditArm(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("GetBanditArm failed: %v", err)
	}
	if arm != nil {
		t.Errorf("expected nil arm for unknown employee, got %+v", arm)
	}
}

func TestStore_MarkRework(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	task := model.Task{ID: "t1", CreatedAt: now, UpdatedAt: now}
	assignment := model.Assignment{ID: "a1", TaskID: "t1", AssignedAt: now}
	if err := s.Assign(ctx, repository.AssignRecord{Task: task, Assignment: assignment}); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	if err := s.MarkRework(ctx, "t1"); err != nil {
		t.Fatalf("MarkRework failed: %v", err)
	}
	if err := s.MarkRework(ctx, "t1"); err != nil {
		t.Fatalf("MarkRework failed: %v", err)
	}

	open, err := s.GetOpenAssignmentForTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetOpenAssignmentForTask failed: %v", err)
	}
	if open.ReworkCount != 2 {
		t.Errorf("expected rework count 2, got %d", open.ReworkCount)
	}
}

func TestStore_MarkRework_NotFound(t *testing.T) {
	s := openTempStore(t)
	if err := s.MarkRework(context.Background(), "missing"); err != repository.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
