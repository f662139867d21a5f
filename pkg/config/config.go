// Package config loads the gateway configuration from an optional YAML file
// overlaid with environment variables. Environment variables win, the YAML
// file carries the tunables operators rarely change per deployment.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root gateway configuration.
type Config struct {
	Port    int    `yaml:"port"`
	Backend string `yaml:"backend"` // "memory" or "postgres"

	Vectorizer VectorizerConfig `yaml:"vectorizer"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	DLQ        DLQConfig        `yaml:"dlq"`
}

// VectorizerConfig selects and configures the vectorizer port implementation.
type VectorizerConfig struct {
	Type      string `yaml:"type"` // "hashing" or "hugot"
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// ChunkerConfig configures how ingested documents are split into chunks.
type ChunkerConfig struct {
	SentencesPerChunk int `yaml:"sentences_per_chunk"`
}

// RetrievalConfig configures the retrieval engine defaults.
type RetrievalConfig struct {
	TopK            int `yaml:"top_k"`
	CandidateFactor int `yaml:"candidate_factor"`
}

// DLQConfig configures the dead-letter queue and its sweeper.
type DLQConfig struct {
	MaxAttempts      int           `yaml:"max_attempts"`
	DedupWindow      time.Duration `yaml:"dedup_window"`
	StaleLease       time.Duration `yaml:"stale_lease"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	PortTimeout      time.Duration `yaml:"port_timeout"`
	DisableSweeper   bool          `yaml:"disable_sweeper"`
	ReprocessDefault int           `yaml:"reprocess_default"`
}

func defaultConfig() *Config {
	return &Config{
		Port:    8080,
		Backend: "memory",
		Vectorizer: VectorizerConfig{
			Type:      "hashing",
			Model:     "sentence-transformers/all-MiniLM-L6-v2",
			Dimension: 256,
		},
		Chunker: ChunkerConfig{
			SentencesPerChunk: 3,
		},
		Retrieval: RetrievalConfig{
			TopK:            5,
			CandidateFactor: 2,
		},
		DLQ: DLQConfig{
			MaxAttempts:      5,
			DedupWindow:      time.Minute,
			StaleLease:       5 * time.Minute,
			SweepInterval:    30 * time.Second,
			PortTimeout:      10 * time.Second,
			ReprocessDefault: 10,
		},
	}
}

// Load reads the config from path, falling back to defaults when the file
// does not exist, and overlays environment variables on top. A .env file in
// the working directory is honored.
func Load(path string) (*Config, error) {
	godotenv.Load()

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnvInt("PORT", cfg.Port)
	cfg.Backend = getEnv("DOCFLOW_BACKEND", cfg.Backend)
	cfg.Vectorizer.Type = getEnv("DOCFLOW_VECTORIZER", cfg.Vectorizer.Type)
	cfg.Vectorizer.Model = getEnv("DOCFLOW_VECTORIZER_MODEL", cfg.Vectorizer.Model)
	cfg.Vectorizer.Dimension = getEnvInt("DOCFLOW_VECTORIZER_DIM", cfg.Vectorizer.Dimension)
	cfg.Chunker.SentencesPerChunk = getEnvInt("DOCFLOW_SENTENCES_PER_CHUNK", cfg.Chunker.SentencesPerChunk)
	cfg.Retrieval.TopK = getEnvInt("DOCFLOW_TOP_K", cfg.Retrieval.TopK)
	cfg.Retrieval.CandidateFactor = getEnvInt("DOCFLOW_CANDIDATE_FACTOR", cfg.Retrieval.CandidateFactor)
	cfg.DLQ.MaxAttempts = getEnvInt("DOCFLOW_DLQ_MAX_ATTEMPTS", cfg.DLQ.MaxAttempts)
	cfg.DLQ.DedupWindow = getEnvDuration("DOCFLOW_DLQ_DEDUP_WINDOW", cfg.DLQ.DedupWindow)
	cfg.DLQ.StaleLease = getEnvDuration("DOCFLOW_DLQ_STALE_LEASE", cfg.DLQ.StaleLease)
	cfg.DLQ.SweepInterval = getEnvDuration("DOCFLOW_DLQ_SWEEP_INTERVAL", cfg.DLQ.SweepInterval)
	cfg.DLQ.PortTimeout = getEnvDuration("DOCFLOW_PORT_TIMEOUT", cfg.DLQ.PortTimeout)

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
