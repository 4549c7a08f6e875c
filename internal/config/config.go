// Package config provides the typed configuration surface for the search
// core: one struct, defaults applied once at construction, validation at the
// edge — no option is read through a package global (spec.md §9 DESIGN
// NOTES, "Configuration surface"). Adapted from the teacher's layered
// viper+yaml loader (pkg/config/loader.go).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full process configuration.
type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	GraphStore GraphStoreConfig `mapstructure:"graph_store"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Search     SearchConfig     `mapstructure:"search"`
}

type HTTPConfig struct {
	Addr              string `mapstructure:"addr"`
	MaxConcurrent      int    `mapstructure:"max_concurrent_requests"`
}

// GraphStoreConfig selects and configures the C5 dialect.
type GraphStoreConfig struct {
	Dialect     string        `mapstructure:"dialect"` // "cypher" | "falkor"
	URI         string        `mapstructure:"uri"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	PoolSize    int           `mapstructure:"pool_size"`
	AcquireWait time.Duration `mapstructure:"acquire_wait"`
	MaxQueryLen int           `mapstructure:"max_query_len"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig configures the two-tier cache (C2).
type CacheConfig struct {
	L1ResultEntries    int           `mapstructure:"l1_result_entries"`
	L1EmbeddingEntries int           `mapstructure:"l1_embedding_entries"`
	L2TTL              time.Duration `mapstructure:"l2_ttl"`
	CacheVersion       int           `mapstructure:"cache_version"`
}

// EmbeddingConfig configures the embedding collaborator client (§6.4).
type EmbeddingConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	Model          string        `mapstructure:"model"`
	Dimension      int           `mapstructure:"dimension"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
}

// SearchConfig holds deployment-wide defaults and maxima for §6.1 options.
type SearchConfig struct {
	DefaultLimit      int           `mapstructure:"default_limit"`
	MaxLimit          int           `mapstructure:"max_limit"`
	MethodTimeout     time.Duration `mapstructure:"method_timeout"`
	AggregateTimeout  time.Duration `mapstructure:"aggregate_timeout"`
	MaxBFSDepth       int           `mapstructure:"max_bfs_depth"`
	RRFK              int           `mapstructure:"rrf_k"`
	DedupSimThreshold float64       `mapstructure:"dedup_similarity_threshold"`
}

// New returns a Config populated with the deployment defaults named
// throughout spec.md (limit=10, TTL=300s, L1=1000/10000 entries, BFS depth
// bound 1-5, RRF k=60, dedup threshold 0.85, method deadline 5s / aggregate
// 10s, pool size 10).
func New() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:          ":8080",
			MaxConcurrent: 256,
		},
		GraphStore: GraphStoreConfig{
			Dialect:     "cypher",
			PoolSize:    10,
			AcquireWait: 2 * time.Second,
			MaxQueryLen: 10_000,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Cache: CacheConfig{
			L1ResultEntries:    1_000,
			L1EmbeddingEntries: 10_000,
			L2TTL:              300 * time.Second,
			CacheVersion:       1,
		},
		Embedding: EmbeddingConfig{
			Dimension:      1024,
			Timeout:        5 * time.Second,
			MaxRetries:     3,
			MaxConcurrency: 64,
		},
		Search: SearchConfig{
			DefaultLimit:      10,
			MaxLimit:          100,
			MethodTimeout:     5 * time.Second,
			AggregateTimeout:  10 * time.Second,
			MaxBFSDepth:       5,
			RRFK:              60,
			DedupSimThreshold: 0.85,
		},
	}
}

// Load layers the YAML file at path over the defaults. With an empty path it
// returns the defaults unchanged and reads no environment variables. With a
// path, a GRAPHCORE_-prefixed environment variable overrides only a key that
// the file itself sets.
func Load(path string) (*Config, error) {
	cfg := New()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("graphcore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("config: unmarshal: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that violate spec.md's stated bounds.
func (c *Config) Validate() error {
	if c.Search.MaxLimit <= 0 || c.Search.MaxLimit > 1000 {
		return fmt.Errorf("config: search.max_limit out of range: %d", c.Search.MaxLimit)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("config: search.default_limit out of range: %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxBFSDepth < 0 || c.Search.MaxBFSDepth > 5 {
		return fmt.Errorf("config: search.max_bfs_depth must be 0-5: %d", c.Search.MaxBFSDepth)
	}
	if c.GraphStore.Dialect != "cypher" && c.GraphStore.Dialect != "falkor" {
		return fmt.Errorf("config: graph_store.dialect must be cypher or falkor: %q", c.GraphStore.Dialect)
	}
	if c.GraphStore.PoolSize <= 0 {
		return fmt.Errorf("config: graph_store.pool_size must be positive: %d", c.GraphStore.PoolSize)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("config: embedding.dimension must be positive: %d", c.Embedding.Dimension)
	}
	return nil
}
