// Package app wires the Assignment Coordinator and Feedback Ingestor: the
// two synchronous operations (assign_task, complete_task) and the read-only
// recommend query, built from the Skill Similarity Filter, Feature
// Extractor, Contextual Bandit, Reward Calculator, and the persistence and
// notification layers.
//
// Grounded on the teacher's app/service.go: functional-options
// construction, an RWMutex-guarded struct of injected collaborators, and a
// Start/Stop lifecycle around the notification worker pool.
package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskloop/assignengine/internal/bandit"
	"github.com/taskloop/assignengine/internal/clock"
	"github.com/taskloop/assignengine/internal/dedupe"
	"github.com/taskloop/assignengine/internal/embedding"
	"github.com/taskloop/assignengine/internal/feature"
	"github.com/taskloop/assignengine/internal/model"
	"github.com/taskloop/assignengine/internal/notify"
	"github.com/taskloop/assignengine/internal/repository"
	"github.com/taskloop/assignengine/internal/reward"
	"github.com/taskloop/assignengine/internal/similarity"
	"github.com/taskloop/assignengine/pkg/logger"
	"github.com/taskloop/assignengine/pkg/metrics"
)

// storageBackoff is the retry schedule for §7's storage error
// policy: transaction conflicts (not business-level ErrConflict, which is
// surfaced immediately as AlreadyAssigned/AlreadyCompleted) are retried up
// to three times with exponential backoff before surfacing InternalError.
var storageBackoff = []time.Duration{10 * time.Millisecond, 40 * time.Millisecond, 160 * time.Millisecond}

// Recommendation is one ranked candidate returned by Recommend; it never
// mutates state.
type Recommendation struct {
	EmployeeID string
	Score      float64
	Context    []float64
}

// Service implements the Assignment Coordinator and Feedback Ingestor.
type Service struct {
	mu sync.RWMutex

	store    repository.Store
	deduper  dedupe.Deduper
	provider embedding.Provider
	filter   *similarity.Filter
	features *feature.Extractor
	banditCfg bandit.Config
	clk      clock.Clock

	notifyQueue notify.Queue
	notifyPool  *notify.Pool
	notifier    notify.Notifier

	similarityK  int
	notifyWorkers int
	notifyQueueSize int
	dedupeSize   int

	started bool
	logger  logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithStore sets the persistence backend.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithEmbeddingProvider sets the embedding provider used by the similarity
// filter to backfill missing employee embeddings.
func WithEmbeddingProvider(p embedding.Provider) Option {
	return func(s *Service) {
		if p != nil {
			s.provider = p
		}
	}
}

// WithFeatureConfig sets the context-vector extraction configuration.
func WithFeatureConfig(cfg feature.Config) Option {
	return func(s *Service) {
		s.features = feature.New(cfg)
	}
}

// WithBanditConfig sets the LinUCB tunables (dimension, alpha, lambda).
func WithBanditConfig(cfg bandit.Config) Option {
	return func(s *Service) {
		s.banditCfg = cfg
	}
}

// WithSimilarityK sets the Similarity Filter's top-K.
func WithSimilarityK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.similarityK = k
		}
	}
}

// WithClock overrides the wall clock (tests).
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clk = c
		}
	}
}

// WithNotifier sets the external notification collaborator. Defaults to a
// no-op notifier since delivery itself is out of scope.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithNotifyWorkers sets the notification dispatch pool's worker count.
func WithNotifyWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.notifyWorkers = n
		}
	}
}

// WithNotifyQueueSize sets the notification queue's capacity.
func WithNotifyQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.notifyQueueSize = n
		}
	}
}

// WithDedupeSize sets the in-flight operation guard's cache size.
func WithDedupeSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dedupeSize = n
		}
	}
}

// WithLogger overrides the service's logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration; Start must be called
// before use.
func New(opts ...Option) *Service {
	s := &Service{
		banditCfg:       bandit.DefaultConfig(feature.Dimension),
		features:        feature.New(feature.DefaultConfig()),
		similarityK:     similarity.DefaultK,
		clk:             clock.System{},
		notifier:        notify.NoopNotifier{},
		notifyWorkers:   4,
		notifyQueueSize: 10000,
		dedupeSize:      50000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start wires the remaining collaborators (similarity filter, dedupe cache,
// notification queue/pool) that depend on options and launches the
// notification workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("app")
	}
	if s.store == nil {
		return fmt.Errorf("app: Start: no repository.Store configured")
	}

	s.filter = similarity.New(s.provider, s.similarityK)
	s.deduper = dedupe.New(dedupe.WithMaxSize(s.dedupeSize))

	s.notifyQueue = notify.NewQueue(notify.WithCapacity(s.notifyQueueSize))
	s.notifyPool = notify.NewPool(s.notifyQueue, s.notifier, notify.WithWorkers(s.notifyWorkers), notify.WithPoolLogger(s.logger))
	s.notifyPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "assignment engine started",
		logger.Int("similarity_k", s.similarityK),
		logger.Int("notify_workers", s.notifyWorkers),
	)
	return nil
}

// Stop drains the notification pool and releases the store.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.notifyPool != nil {
		if err := s.notifyPool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "notify pool shutdown error", logger.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "store close error", logger.Error(err))
		}
	}
	s.started = false
	s.logger.Info(ctx, "assignment engine stopped")
}

// AssignTask implements assign_task(task_id, mode, manual_employee_id?).
func (s *Service) AssignTask(ctx context.Context, taskID string, mode model.AssignMode, manualEmployeeID string) (model.Assignment, error) {
	key := "assign:" + taskID
	if s.deduper.SeenAndRecord(key) {
		return model.Assignment{}, ErrAlreadyAssigned
	}
	defer s.deduper.Unrecord(key)

	start := time.Now()
	assignment, err := s.assignTask(ctx, taskID, mode, manualEmployeeID)
	metrics.RecordAssignmentLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return model.Assignment{}, err
	}
	metrics.RecordAssignment(string(mode))

	s.notifyQueue.Enqueue(notify.Event{
		Kind:         notify.EventAssigned,
		TaskID:       taskID,
		EmployeeID:   assignment.AssigneeID,
		AssignmentID: assignment.ID,
		OccurredAt:   assignment.AssignedAt,
	})
	return assignment, nil
}

func (s *Service) assignTask(ctx context.Context, taskID string, mode model.AssignMode, manualEmployeeID string) (model.Assignment, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Assignment{}, ErrUnknownTask
		}
		return model.Assignment{}, s.internalError(ctx, "get task", err)
	}

	if _, err := s.store.GetOpenAssignmentForTask(ctx, taskID); err == nil {
		return model.Assignment{}, ErrAlreadyAssigned
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.Assignment{}, s.internalError(ctx, "check open assignment", err)
	}

	now := s.clk.Now()

	var winner model.Employee
	var contextVector []float64

	switch mode {
	case model.AssignManual:
		employee, err := s.store.GetEmployee(ctx, manualEmployeeID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return model.Assignment{}, ErrUnknownEmployee
			}
			return model.Assignment{}, s.internalError(ctx, "get manual employee", err)
		}
		if !employee.Active {
			return model.Assignment{}, ErrInvalidManualTarget
		}
		winner = employee
		sim := s.employeeTaskSimilarity(ctx, task, employee)
		contextVector = s.features.Extract(task, employee, sim, now)

	case model.AssignAuto:
		pool, err := s.store.ListActiveEmployees(ctx)
		if err != nil {
			return model.Assignment{}, s.internalError(ctx, "list active employees", err)
		}
		if len(pool) == 0 {
			metrics.RecordNoCandidates()
			return model.Assignment{}, ErrNoCandidates
		}

		filterStart := time.Now()
		candidates := s.filter.TopK(ctx, task, pool)
		metrics.RecordSimilarityFilterLatency(float64(time.Since(filterStart).Milliseconds()))
		if len(candidates) == 0 {
			metrics.RecordNoCandidates()
			return model.Assignment{}, ErrNoCandidates
		}

		banditCandidates := make([]bandit.Candidate, 0, len(candidates))
		for _, c := range candidates {
			x := s.features.Extract(task, c.Employee, c.Similarity, now)
			arm, err := s.loadArm(ctx, c.Employee.ID)
			if err != nil {
				return model.Assignment{}, s.internalError(ctx, "load bandit arm", err)
			}
			banditCandidates = append(banditCandidates, bandit.Candidate{
				Employee: c.Employee, Arm: arm, Context: x,
			})
		}

		decision := bandit.Select(banditCandidates, s.banditCfg)
		metrics.RecordBanditSelectionScore(decision.Score)
		winner = byEmployeeID(pool, decision.EmployeeID)
		contextVector = decision.Context

	default:
		return model.Assignment{}, fmt.Errorf("%w: unsupported assign mode %q", ErrInvariantViolated, mode)
	}

	assignedTask := task
	assignedTask.Status = model.TaskInProgress
	assignedTask.AssigneeID = winner.ID
	assignedTask.UpdatedAt = now

	assignment := model.Assignment{
		ID:         uuid.NewString(),
		TaskID:     task.ID,
		AssigneeID: winner.ID,
		Context:    contextVector,
		AssignedAt: now,
	}

	err = s.withStorageRetry(ctx, "assign", func(ctx context.Context) error {
		return s.store.Assign(ctx, repository.AssignRecord{Task: assignedTask, Assignment: assignment})
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.Assignment{}, ErrAlreadyAssigned
		}
		return model.Assignment{}, err
	}

	return assignment, nil
}

// CompleteTask implements complete_task(task_id).
func (s *Service) CompleteTask(ctx context.Context, taskID string) (model.Feedback, error) {
	key := "complete:" + taskID
	if s.deduper.SeenAndRecord(key) {
		return model.Feedback{}, ErrAlreadyCompleted
	}
	defer s.deduper.Unrecord(key)

	feedback, assignment, err := s.completeTask(ctx, taskID)
	if err != nil {
		return model.Feedback{}, err
	}
	metrics.RecordFeedback()
	metrics.RecordReward(feedback.RewardValue, feedback.RawReward)

	s.notifyQueue.Enqueue(notify.Event{
		Kind:         notify.EventComplete,
		TaskID:       taskID,
		EmployeeID:   assignment.AssigneeID,
		AssignmentID: assignment.ID,
		Reward:       feedback.RewardValue,
		OccurredAt:   *assignment.CompletedAt,
	})
	return feedback, nil
}

func (s *Service) completeTask(ctx context.Context, taskID string) (model.Feedback, model.Assignment, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Feedback{}, model.Assignment{}, ErrUnknownTask
		}
		return model.Feedback{}, model.Assignment{}, s.internalError(ctx, "get task", err)
	}

	assignment, err := s.store.GetOpenAssignmentForTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Feedback{}, model.Assignment{}, ErrAlreadyCompleted
		}
		return model.Feedback{}, model.Assignment{}, s.internalError(ctx, "get open assignment", err)
	}

	if _, err := s.store.GetFeedbackForTask(ctx, taskID); err == nil {
		return model.Feedback{}, model.Assignment{}, ErrAlreadyCompleted
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.Feedback{}, model.Assignment{}, s.internalError(ctx, "check feedback", err)
	}

	now := s.clk.Now()
	facts := deriveFacts(task, assignment, now)

	rewardValue, rawReward, components := reward.Calculate(facts)

	arm, err := s.loadArm(ctx, assignment.AssigneeID)
	if err != nil {
		return model.Feedback{}, model.Assignment{}, s.internalError(ctx, "load bandit arm", err)
	}
	updatedArm := bandit.Update(arm, assignment.Context, rewardValue)
	metrics.RecordBanditUpdate()

	feedback := model.Feedback{
		ID:             uuid.NewString(),
		TaskID:         task.ID,
		EmployeeID:     assignment.AssigneeID,
		RCompletion:    components.RCompletion,
		ROnTime:        components.ROnTime,
		RGoodBehaviour: components.RGoodBehaviour,
		POverdue:       components.POverdue,
		PRework:        components.PRework,
		PFailure:       components.PFailure,
		OverdueDays:    facts.OverdueDays,
		RawReward:      rawReward,
		RewardValue:    rewardValue,
		Context:        assignment.Context,
		CreatedAt:      now,
	}

	completedAt := now
	completedAssignment := assignment
	completedAssignment.CompletedAt = &completedAt

	doneTask := task
	doneTask.Status = model.TaskDone
	doneTask.UpdatedAt = now

	err = s.withStorageRetry(ctx, "complete", func(ctx context.Context) error {
		return s.store.Complete(ctx, repository.CompletionRecord{
			Task:       doneTask,
			Assignment: completedAssignment,
			Feedback:   feedback,
			Arm:        updatedArm.ToModel(),
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.Feedback{}, model.Assignment{}, ErrAlreadyCompleted
		}
		if errors.Is(err, repository.ErrNotFound) {
			return model.Feedback{}, model.Assignment{}, ErrAlreadyCompleted
		}
		return model.Feedback{}, model.Assignment{}, err
	}

	return feedback, completedAssignment, nil
}

// MarkRework increments the open assignment's rework counter for taskID.
// Not part of the original two operations; added because the Reward
// Calculator's p_rework term is otherwise permanently dead (spec.md §9).
func (s *Service) MarkRework(ctx context.Context, taskID string) error {
	err := s.store.MarkRework(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUnknownTask
	}
	if err != nil {
		return s.internalError(ctx, "mark rework", err)
	}
	return nil
}

// Recommend implements recommend(task_id, k?): a read-only ranking of
// candidates by UCB score, using the same Similarity Filter and Feature
// Extractor as assign_task's auto path, but never mutating state.
func (s *Service) Recommend(ctx context.Context, taskID string, k int) ([]Recommendation, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownTask
		}
		return nil, s.internalError(ctx, "get task", err)
	}

	pool, err := s.store.ListActiveEmployees(ctx)
	if err != nil {
		return nil, s.internalError(ctx, "list active employees", err)
	}
	if len(pool) == 0 {
		return nil, ErrNoCandidates
	}

	now := s.clk.Now()
	candidates := s.filter.TopK(ctx, task, pool)

	scored := make([]Recommendation, 0, len(candidates))
	for _, c := range candidates {
		x := s.features.Extract(task, c.Employee, c.Similarity, now)
		arm, err := s.loadArm(ctx, c.Employee.ID)
		if err != nil {
			return nil, s.internalError(ctx, "load bandit arm", err)
		}
		decision := bandit.Select([]bandit.Candidate{{Employee: c.Employee, Arm: arm, Context: x}}, s.banditCfg)
		scored = append(scored, Recommendation{EmployeeID: decision.EmployeeID, Score: decision.Score, Context: x})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if k > 0 && k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

func (s *Service) loadArm(ctx context.Context, employeeID string) (bandit.Arm, error) {
	persisted, err := s.store.GetBanditArm(ctx, employeeID)
	if err != nil {
		return bandit.Arm{}, err
	}
	return bandit.FromModel(employeeID, persisted, s.banditCfg), nil
}

func (s *Service) employeeTaskSimilarity(ctx context.Context, task model.Task, employee model.Employee) float64 {
	candidates := s.filter.TopK(ctx, task, []model.Employee{employee})
	if len(candidates) == 0 {
		return 0
	}
	return candidates[0].Similarity
}

// withStorageRetry retries fn up to len(storageBackoff) times when it
// returns an error that is neither ErrConflict nor ErrNotFound (a
// business-level outcome, surfaced immediately) — i.e. a transient storage
// failure, per §7's storage error policy. Exhausted retries surface
// InternalError, wrapping the last error.
func (s *Service) withStorageRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
			return err
		}
		lastErr = err
		if attempt >= len(storageBackoff) {
			return s.internalError(ctx, op, lastErr)
		}
		select {
		case <-time.After(storageBackoff[attempt]):
		case <-ctx.Done():
			return s.internalError(ctx, op, ctx.Err())
		}
	}
}

func (s *Service) internalError(ctx context.Context, op string, err error) error {
	metrics.RecordRepositoryOpError(op)
	metrics.RecordErrorByComponent("repository", op)
	s.logger.Error(ctx, "storage operation failed", logger.String("op", op), logger.Error(err))
	return fmt.Errorf("%w: %s: %v", ErrInternalError, op, err)
}

func byEmployeeID(pool []model.Employee, id string) model.Employee {
	for _, e := range pool {
		if e.ID == id {
			return e
		}
	}
	return model.Employee{}
}

func deriveFacts(task model.Task, assignment model.Assignment, now time.Time) reward.Facts {
	completionDays := now.Sub(assignment.AssignedAt).Hours() / 24

	var overdueDays int
	onTime := true
	if task.DueDate != nil {
		onTime = !now.After(*task.DueDate)
		if diff := now.Sub(*task.DueDate).Hours() / 24; diff > 0 {
			overdueDays = int(math.Floor(diff))
		}
	}

	return reward.Facts{
		Difficulty:     task.Difficulty,
		CompletionDays: completionDays,
		OverdueDays:    overdueDays,
		OnTime:         onTime,
		ReworkCount:    assignment.ReworkCount,
		Forced:         false,
	}
}
