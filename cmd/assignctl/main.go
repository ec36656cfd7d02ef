// Command assignctl seeds a small in-process roster and drives the
// assignment engine through one assign -> complete -> recommend cycle,
// logging each step. It exists to exercise the wiring end to end without a
// transport layer (there is no HTTP server; HTTP transport is a non-goal,
// see SPEC_FULL.md).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taskloop/assignengine/internal/app"
	"github.com/taskloop/assignengine/internal/bandit"
	"github.com/taskloop/assignengine/internal/config"
	"github.com/taskloop/assignengine/internal/embedding"
	"github.com/taskloop/assignengine/internal/feature"
	"github.com/taskloop/assignengine/internal/model"
	"github.com/taskloop/assignengine/internal/repository"
	"github.com/taskloop/assignengine/internal/repository/memory"
	"github.com/taskloop/assignengine/internal/repository/sqlite"
	"github.com/taskloop/assignengine/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			logger.Error(err)
		}
	}()

	loggerInstance := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := openStore(cfg)
	if err != nil {
		os.Stderr.WriteString("failed to open store: " + err.Error() + "\n")
		return
	}

	provider := embedding.New(
		embedding.WithDimension(cfg.EmbeddingDimension),
		embedding.WithLatencyRange(
			time.Duration(cfg.EmbeddingLatencyMinMS)*time.Millisecond,
			time.Duration(cfg.EmbeddingLatencyMaxMS)*time.Millisecond,
		),
	)

	svc := app.New(
		app.WithLogger(loggerInstance),
		app.WithStore(store),
		app.WithEmbeddingProvider(provider),
		app.WithFeatureConfig(feature.Config{
			WorkloadCap:    cfg.WorkloadCap,
			UrgencyHorizon: time.Duration(cfg.UrgencyHorizonHours) * time.Hour,
		}),
		app.WithBanditConfig(bandit.Config{
			Dimension: feature.Dimension,
			Alpha:     cfg.BanditAlpha,
			Lambda:    cfg.BanditLambda,
		}),
		app.WithSimilarityK(cfg.SimilarityTopK),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithNotifyWorkers(cfg.NotifyWorkerCount),
		app.WithNotifyQueueSize(cfg.NotifyQueueSize),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		svc.Stop(shutdownCtx)
	}()

	if err := seed(ctx, store); err != nil {
		loggerInstance.Error(ctx, "failed to seed demo data", logger.Error(err))
		return
	}

	runDemoCycle(ctx, loggerInstance, svc)

	loggerInstance.Info(ctx, "demo cycle complete, press Ctrl+C to exit")
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down")
}

func openStore(cfg *config.Config) (repository.Store, error) {
	if cfg.Backend == config.BackendSQLite {
		return sqlite.Open(cfg.SQLitePath)
	}
	return memory.New(), nil
}

func seed(ctx context.Context, store repository.Store) error {
	now := time.Now()
	employees := []model.Employee{
		{
			ID: "emp-ada", Name: "Ada", Active: true, ProductivityScore: 0.9,
			Skills:    []model.Skill{{Name: "go", ExperienceMonths: 60, TenureMonths: 36}},
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "emp-grace", Name: "Grace", Active: true, ProductivityScore: 0.6,
			Skills:    []model.Skill{{Name: "go", ExperienceMonths: 12, TenureMonths: 8}},
			CreatedAt: now, UpdatedAt: now,
		},
	}
	for _, e := range employees {
		if err := store.PutEmployee(ctx, e); err != nil {
			return err
		}
	}

	due := now.Add(48 * time.Hour)
	task := model.Task{
		ID: "task-001", Title: "Fix flaky retry loop", Priority: 4, Difficulty: 5,
		RequiredSkills: []string{"go"}, Status: model.TaskTodo, DueDate: &due,
		CreatedAt: now, UpdatedAt: now,
	}
	return store.PutTask(ctx, task)
}

func runDemoCycle(ctx context.Context, log logger.Logger, svc *app.Service) {
	recs, err := svc.Recommend(ctx, "task-001", 2)
	if err != nil {
		log.Error(ctx, "recommend failed", logger.Error(err))
		return
	}
	for _, r := range recs {
		log.Info(ctx, "recommendation", logger.String("employee_id", r.EmployeeID), logger.Float64("score", r.Score))
	}

	assignment, err := svc.AssignTask(ctx, "task-001", model.AssignAuto, "")
	if err != nil {
		log.Error(ctx, "assign failed", logger.Error(err))
		return
	}
	log.Info(ctx, "task assigned", logger.String("task_id", assignment.TaskID), logger.String("assignee_id", assignment.AssigneeID))

	feedback, err := svc.CompleteTask(ctx, "task-001")
	if err != nil {
		log.Error(ctx, "complete failed", logger.Error(err))
		return
	}
	log.Info(ctx, "task completed", logger.String("task_id", feedback.TaskID), logger.Float64("reward", feedback.RewardValue))
}
