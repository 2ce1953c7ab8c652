package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	MinScore = 1
	MaxScore = 5
)

type Rating struct {
	ID             uuid.UUID  `json:"id"`
	RaterAccountID uuid.UUID  `json:"rater_account_id"`
	RatedAccountID uuid.UUID  `json:"rated_account_id"`
	TransactionID  *uuid.UUID `json:"transaction_id,omitempty"`
	Score          int        `json:"score"`
	Comment        *string    `json:"comment,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return fmt.Errorf("%w: score must be between %d and %d, got %d", ErrInvalidScore, MinScore, MaxScore, score)
	}
	return nil
}

// AverageScore is the mean of all scores rounded to one decimal place, or 0
// for no ratings.
func AverageScore(ratings []Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	var sum int
	for _, r := range ratings {
		sum += r.Score
	}
	avg := float64(sum) / float64(len(ratings))
	return math.Round(avg*10) / 10
}
