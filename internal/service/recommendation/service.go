// Package recommendation asks the external scorer which available tasks fit
// a user and maps its answer back to positions in the board listing.
//
// Recommendations are advisory. Every failure degrades to an empty list so
// the board always renders.
package recommendation

import (
	"context"
	"errors"

	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/platform/scorer"
)

// TopN is the number of ranked scorer entries considered.
const TopN = 5

// Profile defaults for users without completions.
const (
	DefaultComplexity = 0.0
	DefaultTime       = 5.0
)

// ErrRecommendationUnavailable is logged whenever the scorer cannot be used.
// It never reaches callers of Recommend.
var ErrRecommendationUnavailable = errors.New("recommendation unavailable")

// Ranker orders candidate tasks for a worker profile, best first.
type Ranker interface {
	Rank(ctx context.Context, req scorer.Request) ([]scorer.Record, error)
}

// Cache stores rankings by request key. Implementations must treat a miss
// as (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]scorer.Record, bool, error)
	Set(ctx context.Context, key string, ranked []scorer.Record) error
}

// Profile is the worker side of a scorer request.
type Profile struct {
	Complexity float64
	Time       float64
	Tags       []string
}

// Service produces recommendations.
type Service interface {
	// ProfileFor derives a profile from the user's completion history: the
	// average complexity and expected time of finished tasks plus the
	// user's tags.
	ProfileFor(ctx context.Context, user *domain.User) (Profile, error)

	// Recommend returns indexes into tasks, in scorer rank order, for the
	// first TopN ranked entries. It returns an empty, non-nil slice when
	// the scorer is disabled or fails.
	Recommend(ctx context.Context, profile Profile, tasks []*domain.Task) []int
}
