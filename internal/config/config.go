// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New(ctx) builds a Config populated with defaults; Load layers a file
//   and environment variables on top of it.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import "context"

// Backend selects the persistence implementation.
type Backend string

// Supported persistence backends.
const (
	BackendMemory Backend = "memory"
	BackendSQLite Backend = "sqlite"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Backend selects the repository.Store implementation ("memory" or
	// "sqlite").
	Backend Backend `koanf:"backend"`

	// SQLitePath is the database file path, used when Backend is "sqlite".
	SQLitePath string `koanf:"sqlite_path"`

	// EmbeddingModel identifies the embedding model in use (informational;
	// the in-memory provider does not read it).
	EmbeddingModel string `koanf:"embedding_model"`

	// EmbeddingDimension is D, the fixed vector length of skill embeddings.
	// Context vectors have their own fixed length, feature.Dimension.
	EmbeddingDimension int `koanf:"embedding_dimension"`

	// SimilarityTopK bounds how many candidates the Skill Similarity Filter
	// keeps before the bandit selects among them.
	SimilarityTopK int `koanf:"similarity_top_k"`

	// BanditAlpha is LinUCB's exploration coefficient.
	BanditAlpha float64 `koanf:"bandit_alpha"`

	// BanditLambda is the ridge-regression prior.
	BanditLambda float64 `koanf:"bandit_lambda"`

	// WorkloadCap is W_max, the workload the Feature Extractor normalizes
	// against.
	WorkloadCap int `koanf:"workload_cap"`

	// UrgencyHorizonHours is H, the Feature Extractor's due-date urgency
	// window.
	UrgencyHorizonHours int `koanf:"urgency_horizon_hours"`

	// RewardMin and RewardMax are loaded and validated (RewardMax must exceed
	// RewardMin). The Reward Calculator does not read them: it clips with its
	// own fixed bounds, reward.MinReward and reward.MaxReward.
	RewardMin float64 `koanf:"reward_min"`
	RewardMax float64 `koanf:"reward_max"`

	// DedupeSize sets the size of the in-flight assign/complete guard cache.
	DedupeSize int `koanf:"dedupe_size"`

	// NotifyQueueSize bounds the notification dispatch queue.
	NotifyQueueSize int `koanf:"notify_queue_size"`

	// NotifyWorkerCount sets the number of notification dispatch workers.
	NotifyWorkerCount int `koanf:"notify_worker_count"`

	// EmbeddingLatencyMinMS and EmbeddingLatencyMaxMS simulate the
	// embedding provider's remote-call latency bounds.
	EmbeddingLatencyMinMS int `koanf:"embedding_latency_min_ms"`
	EmbeddingLatencyMaxMS int `koanf:"embedding_latency_max_ms"`
}

// New creates a Config populated with defaults. Context is accepted first to
// satisfy the project-wide convention; it is currently unused.
func New(_ context.Context) *Config {
	c := &Config{
		LogLevel:              "info",
		Backend:               BackendMemory,
		SQLitePath:            "assignengine.db",
		EmbeddingModel:        "in-memory-hash-v1",
		EmbeddingDimension:    1536,
		SimilarityTopK:        3,
		BanditAlpha:           1.0,
		BanditLambda:          1.0,
		WorkloadCap:           10,
		UrgencyHorizonHours:   72,
		RewardMin:             -2.0,
		RewardMax:             2.0,
		DedupeSize:            50_000,
		NotifyQueueSize:       10_000,
		NotifyWorkerCount:     4,
		EmbeddingLatencyMinMS: 20,
		EmbeddingLatencyMaxMS: 60,
	}
	return c
}
