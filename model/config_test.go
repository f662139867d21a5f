package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRetrievalConfig(t *testing.T) {
	t.Run("Returns correct default values", func(t *testing.T) {
		config := DefaultRetrievalConfig()

		assert.Equal(t, 5, config.TopK, "Default TopK should be 5")
		assert.Equal(t, 2, config.CandidateFactor, "Default CandidateFactor should be 2")
	})

	t.Run("Can be modified after creation", func(t *testing.T) {
		config := DefaultRetrievalConfig()

		config.TopK = 10
		config.CandidateFactor = 3

		assert.Equal(t, 10, config.TopK)
		assert.Equal(t, 3, config.CandidateFactor)
	})
}

func TestDefaultRerankConfig(t *testing.T) {
	t.Run("Returns correct default values", func(t *testing.T) {
		config := DefaultRerankConfig()

		assert.Equal(t, 0.8, config.SimilarityWeight, "Default SimilarityWeight should be 0.8")
		assert.Equal(t, 0.2, config.BoostWeight, "Default BoostWeight should be 0.2")
	})

	t.Run("Default weights sum to 1.0", func(t *testing.T) {
		config := DefaultRerankConfig()

		sum := config.SimilarityWeight + config.BoostWeight
		assert.InDelta(t, 1.0, sum, 0.001, "Default weights should sum to 1.0")
	})
}

func TestDefaultCitationConfig(t *testing.T) {
	t.Run("Returns correct default values", func(t *testing.T) {
		config := DefaultCitationConfig()

		assert.Equal(t, 0.3, config.OverlapThreshold, "Default OverlapThreshold should be 0.3")
	})
}

func TestDefaultDLQConfig(t *testing.T) {
	t.Run("Returns correct default values", func(t *testing.T) {
		config := DefaultDLQConfig()

		assert.Equal(t, 5, config.MaxAttempts, "Default MaxAttempts should be 5")
		assert.Equal(t, time.Minute, config.DedupWindow, "Default DedupWindow should be 1m")
		assert.Equal(t, 5*time.Minute, config.StaleLease, "Default StaleLease should be 5m")
		assert.Equal(t, 30*time.Second, config.SweepInterval, "Default SweepInterval should be 30s")
		assert.Equal(t, 10*time.Second, config.PortTimeout, "Default PortTimeout should be 10s")
	})

	t.Run("Stale lease outlives the sweep interval", func(t *testing.T) {
		config := DefaultDLQConfig()

		assert.Greater(t, config.StaleLease, config.SweepInterval, "A lease should survive at least one sweep")
	})
}
