package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Missing file falls back to defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err, "Expected a missing config file to not be an error")
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "memory", cfg.Backend)
		assert.Equal(t, "hashing", cfg.Vectorizer.Type)
		assert.Equal(t, 256, cfg.Vectorizer.Dimension)
		assert.Equal(t, 5, cfg.Retrieval.TopK)
		assert.Equal(t, 5, cfg.DLQ.MaxAttempts)
		assert.Equal(t, time.Minute, cfg.DLQ.DedupWindow)
	})

	t.Run("YAML file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "docflow.yaml")
		content := `
port: 9090
backend: postgres
vectorizer:
  type: hugot
  dimension: 384
retrieval:
  top_k: 10
dlq:
  max_attempts: 3
  dedup_window: 2m
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Port)
		assert.Equal(t, "postgres", cfg.Backend)
		assert.Equal(t, "hugot", cfg.Vectorizer.Type)
		assert.Equal(t, 384, cfg.Vectorizer.Dimension)
		assert.Equal(t, 10, cfg.Retrieval.TopK)
		assert.Equal(t, 3, cfg.DLQ.MaxAttempts)
		assert.Equal(t, 2*time.Minute, cfg.DLQ.DedupWindow)
		assert.Equal(t, 3, cfg.Chunker.SentencesPerChunk, "Expected unset values to keep their defaults")
	})

	t.Run("Environment variables win over the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "docflow.yaml")
		require.NoError(t, os.WriteFile(path, []byte("port: 9090\n"), 0o644))

		t.Setenv("PORT", "7070")
		t.Setenv("DOCFLOW_BACKEND", "postgres")
		t.Setenv("DOCFLOW_TOP_K", "7")
		t.Setenv("DOCFLOW_PORT_TIMEOUT", "3s")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Port)
		assert.Equal(t, "postgres", cfg.Backend)
		assert.Equal(t, 7, cfg.Retrieval.TopK)
		assert.Equal(t, 3*time.Second, cfg.DLQ.PortTimeout)
	})

	t.Run("Invalid environment values keep the defaults", func(t *testing.T) {
		t.Setenv("PORT", "not-a-number")
		t.Setenv("DOCFLOW_PORT_TIMEOUT", "soon")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, 10*time.Second, cfg.DLQ.PortTimeout)
	})

	t.Run("Malformed YAML returns an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "docflow.yaml")
		require.NoError(t, os.WriteFile(path, []byte("port: [not an int"), 0o644))

		_, err := Load(path)
		assert.Error(t, err)
	})
}
