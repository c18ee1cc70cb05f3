// Package config loads kbingest settings from a YAML file, a .env file and
// KBINGEST_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/kbingest/ai"
	"github.com/poiesic/kbingest/breaker"
	"github.com/poiesic/kbingest/embedding"
	"github.com/poiesic/kbingest/ingestion"
	"github.com/poiesic/kbingest/parser"
)

// Supported vector stores.
const (
	StoreBadger   = "badger"
	StoreChromem  = "chromem"
	StorePgvector = "pgvector"
	StoreMemory   = "memory"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "KBINGEST_"

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete process configuration.
type Config struct {
	// DataDir holds the badger database and the chromem files.
	DataDir   string          `yaml:"data_dir"`
	Store     StoreConfig     `yaml:"store"`
	AI        AIConfig        `yaml:"ai"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Workers   WorkersConfig   `yaml:"workers"`
	Watch     WatchConfig     `yaml:"watch"`
}

type StoreConfig struct {
	Type string `yaml:"type"`
	// DSN is the Postgres connection string for the pgvector store.
	DSN string `yaml:"dsn"`
	// InMemory keeps badger data in memory only.
	InMemory bool `yaml:"in_memory"`
}

type AIConfig struct {
	Backend string `yaml:"backend"`
	Host    string `yaml:"host"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
}

type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
}

type EmbeddingConfig struct {
	MaxBatchSize      int           `yaml:"max_batch_size"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	CallTimeout       time.Duration `yaml:"call_timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

type IngestionConfig struct {
	BatchSize           int    `yaml:"batch_size"`
	FailFast            bool   `yaml:"fail_fast"`
	AllowZero           bool   `yaml:"allow_zero"`
	EnableDeduplication bool   `yaml:"enable_deduplication"`
	ExpectedDimension   int    `yaml:"expected_dimension"`
	Normalize           bool   `yaml:"normalize"`
	SkipExisting        bool   `yaml:"skip_existing"`
	ChunkSize           int    `yaml:"chunk_size"`
	ChunkOverlap        int    `yaml:"chunk_overlap"`
	Strategy            string `yaml:"strategy"`
}

type WorkersConfig struct {
	PoolSize             int `yaml:"pool_size"`
	QueueSize            int `yaml:"queue_size"`
	DirectoryConcurrency int `yaml:"directory_concurrency"`
}

type WatchConfig struct {
	Extensions []string      `yaml:"extensions"`
	Debounce   time.Duration `yaml:"debounce"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	aiCfg := ai.DefaultConfig()
	br := breaker.DefaultConfig()
	emb := embedding.DefaultConfig()
	ing := ingestion.DefaultConfig()

	return &Config{
		DataDir: "./kbingest-data",
		Store:   StoreConfig{Type: StoreBadger},
		AI: AIConfig{
			Backend: aiCfg.Backend,
			Host:    aiCfg.EmbeddingHost,
			Model:   aiCfg.EmbeddingModel,
			APIKey:  aiCfg.APIKey,
		},
		Breaker: BreakerConfig{
			FailureThreshold: br.FailureThreshold,
			ResetTimeout:     br.ResetTimeout,
		},
		Embedding: EmbeddingConfig{
			MaxBatchSize: emb.MaxBatchSize,
			MaxAttempts:  emb.MaxAttempts,
			RetryDelay:   emb.RetryDelay,
			CallTimeout:  emb.CallTimeout,
		},
		Ingestion: IngestionConfig{
			BatchSize:           ing.BatchSize,
			EnableDeduplication: ing.EnableDeduplication,
			ChunkSize:           parser.DefaultChunkSize,
			ChunkOverlap:        parser.DefaultChunkOverlap,
			Strategy:            ing.Strategy,
		},
		Workers: WorkersConfig{
			PoolSize:             4,
			QueueSize:            64,
			DirectoryConcurrency: 4,
		},
		Watch: WatchConfig{
			Debounce: 250 * time.Millisecond,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment. A .env file in the working directory
// is loaded first if present; variables already set take precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %w", ErrInvalidConfig, path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from KBINGEST_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.str("DATA_DIR", &c.DataDir)
	e.str("STORE_TYPE", &c.Store.Type)
	e.str("STORE_DSN", &c.Store.DSN)
	e.boolean("STORE_IN_MEMORY", &c.Store.InMemory)

	e.str("AI_BACKEND", &c.AI.Backend)
	e.str("AI_HOST", &c.AI.Host)
	e.str("AI_MODEL", &c.AI.Model)
	e.str("AI_API_KEY", &c.AI.APIKey)

	e.integer("BREAKER_FAILURE_THRESHOLD", &c.Breaker.FailureThreshold)
	e.duration("BREAKER_RESET_TIMEOUT", &c.Breaker.ResetTimeout)

	e.integer("EMBEDDING_MAX_BATCH_SIZE", &c.Embedding.MaxBatchSize)
	e.integer("EMBEDDING_MAX_ATTEMPTS", &c.Embedding.MaxAttempts)
	e.duration("EMBEDDING_RETRY_DELAY", &c.Embedding.RetryDelay)
	e.duration("EMBEDDING_CALL_TIMEOUT", &c.Embedding.CallTimeout)
	e.float("EMBEDDING_REQUESTS_PER_SECOND", &c.Embedding.RequestsPerSecond)

	e.integer("BATCH_SIZE", &c.Ingestion.BatchSize)
	e.boolean("FAIL_FAST", &c.Ingestion.FailFast)
	e.boolean("ALLOW_ZERO", &c.Ingestion.AllowZero)
	e.boolean("ENABLE_DEDUPLICATION", &c.Ingestion.EnableDeduplication)
	e.integer("EXPECTED_DIMENSION", &c.Ingestion.ExpectedDimension)
	e.boolean("NORMALIZE", &c.Ingestion.Normalize)
	e.boolean("SKIP_EXISTING", &c.Ingestion.SkipExisting)
	e.integer("CHUNK_SIZE", &c.Ingestion.ChunkSize)
	e.integer("CHUNK_OVERLAP", &c.Ingestion.ChunkOverlap)
	e.str("STRATEGY", &c.Ingestion.Strategy)

	e.integer("WORKERS", &c.Workers.PoolSize)
	e.integer("QUEUE_SIZE", &c.Workers.QueueSize)
	e.integer("DIRECTORY_CONCURRENCY", &c.Workers.DirectoryConcurrency)

	if v, ok := e.get("WATCH_EXTENSIONS"); ok {
		c.Watch.Extensions = splitList(v)
	}
	e.duration("WATCH_DEBOUNCE", &c.Watch.Debounce)

	return errors.Join(e.errs...)
}

// Validate checks every section.
func (c *Config) Validate() error {
	var errs []error

	c.Store.Type = strings.ToLower(strings.TrimSpace(c.Store.Type))
	switch c.Store.Type {
	case StoreBadger, StoreChromem:
		if c.DataDir == "" && !c.Store.InMemory {
			errs = append(errs, fmt.Errorf("%w: data_dir is required for %s", ErrInvalidConfig, c.Store.Type))
		}
	case StorePgvector:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("%w: store.dsn is required for pgvector", ErrInvalidConfig))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("%w: unknown store type %q", ErrInvalidConfig, c.Store.Type))
	}

	if err := c.AIConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	if err := c.BreakerConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.EmbeddingConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.IngestionConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Workers.PoolSize < 1 || c.Workers.QueueSize < 1 || c.Workers.DirectoryConcurrency < 1 {
		errs = append(errs, fmt.Errorf("%w: worker settings must be positive", ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

// AIConfig converts the ai section.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithBackend(c.AI.Backend),
		ai.WithEmbeddingHost(c.AI.Host),
		ai.WithEmbeddingModel(c.AI.Model),
		ai.WithAPIKey(c.AI.APIKey),
	)
}

func (c *Config) BreakerConfig() breaker.Config {
	return breaker.Config{
		FailureThreshold: c.Breaker.FailureThreshold,
		ResetTimeout:     c.Breaker.ResetTimeout,
	}
}

func (c *Config) EmbeddingConfig() embedding.Config {
	return embedding.Config{
		MaxBatchSize:      c.Embedding.MaxBatchSize,
		MaxAttempts:       c.Embedding.MaxAttempts,
		RetryDelay:        c.Embedding.RetryDelay,
		CallTimeout:       c.Embedding.CallTimeout,
		RequestsPerSecond: c.Embedding.RequestsPerSecond,
	}
}

func (c *Config) IngestionConfig() ingestion.Config {
	i := c.Ingestion
	return ingestion.Config{
		BatchSize:           i.BatchSize,
		FailFast:            i.FailFast,
		AllowZero:           i.AllowZero,
		EnableDeduplication: i.EnableDeduplication,
		ExpectedDimension:   i.ExpectedDimension,
		Normalize:           i.Normalize,
		SkipExisting:        i.SkipExisting,
		ChunkSize:           i.ChunkSize,
		ChunkOverlap:        i.ChunkOverlap,
		Strategy:            i.Strategy,
	}
}

// BadgerPath is where the badger database lives.
func (c *Config) BadgerPath() string {
	return filepath.Join(c.DataDir, "badger")
}

// ChromemPath is where chromem persists its collections.
func (c *Config) ChromemPath() string {
	return filepath.Join(c.DataDir, "chromem")
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(name string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(name, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%w: %s%s=%q: %w", ErrInvalidConfig, EnvPrefix, name, value, err))
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) integer(name string, dst *int) {
	if v, ok := e.get(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) float(name string, dst *float64) {
	if v, ok := e.get(name); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) boolean(name string, dst *bool) {
	if v, ok := e.get(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(name string, dst *time.Duration) {
	if v, ok := e.get(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = d
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
