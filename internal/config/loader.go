package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New(ctx))
//  2. file (YAML) if ASSIGNENGINE_CONFIG is set
//  3. env (prefix ASSIGNENGINE_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv("ASSIGNENGINE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: ASSIGNENGINE_BACKEND, ASSIGNENGINE_BANDIT_ALPHA, ...
	// Map env keys like ASSIGNENGINE_BANDIT_ALPHA -> bandit_alpha (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("ASSIGNENGINE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "assignengine_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Backend != BackendMemory && cfg.Backend != BackendSQLite {
		return fmt.Errorf("%w: backend must be %q or %q, got %q", ErrInvalidConfig, BackendMemory, BackendSQLite, cfg.Backend)
	}
	if cfg.Backend == BackendSQLite && cfg.SQLitePath == "" {
		return fmt.Errorf("%w: sqlite_path must not be empty when backend is sqlite", ErrInvalidConfig)
	}
	if cfg.EmbeddingDimension <= 0 {
		return fmt.Errorf("%w: embedding_dimension must be positive", ErrInvalidConfig)
	}
	if cfg.SimilarityTopK <= 0 {
		return fmt.Errorf("%w: similarity_top_k must be positive", ErrInvalidConfig)
	}
	if cfg.RewardMax <= cfg.RewardMin {
		return fmt.Errorf("%w: reward_max must be greater than reward_min", ErrInvalidConfig)
	}
	return nil
}
