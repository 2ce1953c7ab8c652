package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

var fixedTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestAverageScore(t *testing.T) {
	scores := func(s ...int) []Rating {
		out := make([]Rating, len(s))
		for i, v := range s {
			out[i] = Rating{Score: v}
		}
		return out
	}

	assert.Equal(t, 0.0, AverageScore(nil))
	assert.Equal(t, 4.0, AverageScore(scores(5, 4, 3)))
	assert.Equal(t, 4.7, AverageScore(scores(5, 5, 4)))
	assert.Equal(t, 1.0, AverageScore(scores(1)))
}

func TestValidateScore(t *testing.T) {
	for s := MinScore; s <= MaxScore; s++ {
		assert.NoError(t, ValidateScore(s))
	}
	assert.ErrorIs(t, ValidateScore(0), ErrInvalidScore)
	assert.ErrorIs(t, ValidateScore(6), ErrInvalidScore)
}

func TestTransferEntriesBalance(t *testing.T) {
	from, to := uuid.New(), uuid.New()
	entries := TransferEntries(uuid.New(), from, to, 30, EntryPurchase, fixedTime)

	var sum int64
	for _, e := range entries {
		sum += e.Delta
	}
	assert.Zero(t, sum)
	assert.Equal(t, int64(-30), entries[0].Delta)
	assert.Equal(t, from, entries[0].AccountID)
	assert.Equal(t, to, entries[1].AccountID)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"title": "required", "size": "invalid"}}
	assert.Equal(t, "validation failed: size: invalid; title: required", err.Error())
}
