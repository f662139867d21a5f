package model

import "time"

// RetrievalConfig represents configuration for a retrieval query.
type RetrievalConfig struct {
	TopK int `json:"top_k"`
	// CandidateFactor multiplies TopK for the per-collection candidate fetch so
	// the merge has enough material when several collections are queried.
	CandidateFactor int `json:"candidate_factor"`
}

// DefaultRetrievalConfig returns a sensible default configuration.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:            5,
		CandidateFactor: 2,
	}
}

// RerankConfig weights the rerank score components.
type RerankConfig struct {
	SimilarityWeight float64 `json:"similarity_weight"`
	BoostWeight      float64 `json:"boost_weight"`
}

// DefaultRerankConfig returns the default rerank weights.
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		SimilarityWeight: 0.8,
		BoostWeight:      0.2,
	}
}

// CitationConfig configures the citation verifier.
type CitationConfig struct {
	// OverlapThreshold is the minimum claim/chunk overlap for a claim to count
	// as covered.
	OverlapThreshold float64 `json:"overlap_threshold"`
}

// DefaultCitationConfig returns the default citation configuration.
func DefaultCitationConfig() CitationConfig {
	return CitationConfig{
		OverlapThreshold: 0.3,
	}
}

// DLQConfig configures the dead-letter queue and its reprocessing engine.
type DLQConfig struct {
	// MaxAttempts is the attempt ceiling after which a transiently failing job
	// is quarantined.
	MaxAttempts int `json:"max_attempts"`
	// DedupWindow is how long an enqueue with the same dedup key updates the
	// existing job instead of creating a duplicate.
	DedupWindow time.Duration `json:"dedup_window"`
	// StaleLease is the age after which an in-flight job is presumed abandoned
	// and released back to pending by the sweeper.
	StaleLease time.Duration `json:"stale_lease"`
	// SweepInterval is how often the sweeper runs.
	SweepInterval time.Duration `json:"sweep_interval"`
	// PortTimeout bounds a single executor run during reprocessing.
	PortTimeout time.Duration `json:"port_timeout"`
}

// DefaultDLQConfig returns the default queue configuration.
func DefaultDLQConfig() DLQConfig {
	return DLQConfig{
		MaxAttempts:   5,
		DedupWindow:   time.Minute,
		StaleLease:    5 * time.Minute,
		SweepInterval: 30 * time.Second,
		PortTimeout:   10 * time.Second,
	}
}
