package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidJobKind(t *testing.T) {
	t.Run("Known kinds are valid", func(t *testing.T) {
		for _, kind := range []JobKind{JobKindClassify, JobKindScan, JobKindEmbed, JobKindRetrieve, JobKindRerank, JobKindCite} {
			assert.True(t, ValidJobKind(kind), "Expected %q to be a valid kind", kind)
		}
	})

	t.Run("Unknown kinds are invalid", func(t *testing.T) {
		assert.False(t, ValidJobKind(JobKind("frobnicate")))
		assert.False(t, ValidJobKind(JobKind("")))
	})
}
