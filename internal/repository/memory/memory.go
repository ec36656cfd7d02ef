// Package memory implements repository.Store with plain maps guarded by a
// single RWMutex. Lookups here are always by ID, so it skips the teacher
// treap store's ranked-index machinery entirely — that structure exists to
// answer "who is in the top N", a question this store never needs to
// answer; ranking candidates is the Similarity Filter and bandit's job, not
// the persistence layer's.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/taskloop/assignengine/internal/model"
	"github.com/taskloop/assignengine/internal/repository"
)

// Store is an in-memory repository.Store, safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	tasks       map[string]model.Task
	employees   map[string]model.Employee
	assignments map[string]model.Assignment // by assignment id
	openByTask  map[string]string           // task id -> open assignment id
	feedback    map[string]model.Feedback   // by task id
	arms        map[string]model.BanditArm  // by employee id
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		tasks:       make(map[string]model.Task),
		employees:   make(map[string]model.Employee),
		assignments: make(map[string]model.Assignment),
		openByTask:  make(map[string]string),
		feedback:    make(map[string]model.Feedback),
		arms:        make(map[string]model.BanditArm),
	}
}

func (s *Store) GetTask(_ context.Context, id string) (model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, repository.ErrNotFound
	}
	return t, nil
}

func (s *Store) PutTask(_ context.Context, task model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
	return nil
}

func (s *Store) ListActiveEmployees(_ context.Context) ([]model.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		if e.Active {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) GetEmployee(_ context.Context, id string) (model.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[id]
	if !ok {
		return model.Employee{}, repository.ErrNotFound
	}
	return e, nil
}

func (s *Store) PutEmployee(_ context.Context, employee model.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[employee.ID] = employee
	return nil
}

func (s *Store) GetBanditArm(_ context.Context, employeeID string) (*model.BanditArm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arm, ok := s.arms[employeeID]
	if !ok {
		return nil, nil
	}
	cloned := cloneArm(arm)
	return &cloned, nil
}

func (s *Store) GetOpenAssignmentForTask(_ context.Context, taskID string) (model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.openByTask[taskID]
	if !ok {
		return model.Assignment{}, repository.ErrNotFound
	}
	return s.assignments[id], nil
}

func (s *Store) GetFeedbackForTask(_ context.Context, taskID string) (model.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.feedback[taskID]
	if !ok {
		return model.Feedback{}, repository.ErrNotFound
	}
	return f, nil
}

func (s *Store) Assign(_ context.Context, rec repository.AssignRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, open := s.openByTask[rec.Task.ID]; open {
		return repository.ErrConflict
	}

	s.tasks[rec.Task.ID] = rec.Task
	s.assignments[rec.Assignment.ID] = rec.Assignment
	s.openByTask[rec.Task.ID] = rec.Assignment.ID

	if e, ok := s.employees[rec.Assignment.AssigneeID]; ok {
		e.Workload++
		e.UpdatedAt = rec.Assignment.AssignedAt
		s.employees[rec.Assignment.AssigneeID] = e
	}
	return nil
}

func (s *Store) Complete(_ context.Context, rec repository.CompletionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assignments[rec.Assignment.ID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.feedback[rec.Task.ID]; ok {
		return repository.ErrConflict
	}

	s.tasks[rec.Task.ID] = rec.Task
	s.assignments[rec.Assignment.ID] = rec.Assignment
	delete(s.openByTask, rec.Task.ID)
	s.feedback[rec.Task.ID] = rec.Feedback
	s.arms[rec.Arm.EmployeeID] = cloneArm(rec.Arm)

	if e, ok := s.employees[rec.Assignment.AssigneeID]; ok {
		if e.Workload > 0 {
			e.Workload--
		}
		e.UpdatedAt = time.Now()
		s.employees[rec.Assignment.AssigneeID] = e
	}
	return nil
}

func (s *Store) MarkRework(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.openByTask[taskID]
	if !ok {
		return repository.ErrNotFound
	}
	a := s.assignments[id]
	a.ReworkCount++
	s.assignments[id] = a
	return nil
}

func (s *Store) Close() error { return nil }

func cloneArm(a model.BanditArm) model.BanditArm {
	rows := make([][]float64, len(a.A))
	for i, row := range a.A {
		rows[i] = append([]float64(nil), row...)
	}
	return model.BanditArm{
		EmployeeID:  a.EmployeeID,
		A:           rows,
		B:           append([]float64(nil), a.B...),
		UpdateCount: a.UpdateCount,
	}
}

var _ repository.Store = (*Store)(nil)
