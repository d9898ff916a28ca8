package recommendation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/platform/logger"
	"github.com/phrazzld/questboard-api/internal/platform/scorer"
	"github.com/phrazzld/questboard-api/internal/store"
)

// Verify interface compliance at compile time
var _ Service = (*serviceImpl)(nil)

type serviceImpl struct {
	ranker      Ranker
	cache       Cache
	completions store.CompletionStore
	logger      *slog.Logger
}

// NewService creates a recommendation Service. A nil ranker disables
// recommendations and a nil cache disables caching.
func NewService(ranker Ranker, cache Cache, completions store.CompletionStore, logger *slog.Logger) Service {
	if completions == nil {
		// ALLOW-PANIC: constructor misuse
		panic("completion store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &serviceImpl{
		ranker:      ranker,
		cache:       cache,
		completions: completions,
		logger:      logger.With(slog.String("component", "recommendation_service")),
	}
}

// ProfileFor implements Service.ProfileFor.
func (s *serviceImpl) ProfileFor(ctx context.Context, user *domain.User) (Profile, error) {
	profile := Profile{
		Complexity: DefaultComplexity,
		Time:       DefaultTime,
		Tags:       user.Tags,
	}

	complexity, ok, err := s.completions.AverageComplexity(ctx, user.ID)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to average completed complexity: %w", err)
	}
	if ok {
		profile.Complexity = complexity
	}

	hours, ok, err := s.completions.AverageExpectedTime(ctx, user.ID)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to average completed time: %w", err)
	}
	if ok {
		profile.Time = hours
	}

	return profile, nil
}

// Recommend implements Service.Recommend.
func (s *serviceImpl) Recommend(ctx context.Context, profile Profile, tasks []*domain.Task) []int {
	if s.ranker == nil || len(tasks) == 0 {
		return []int{}
	}

	log := logger.FromContextOrDefault(ctx, s.logger)

	req := BuildRequest(profile, tasks)
	ranked, err := s.rank(ctx, log, req)
	if err != nil {
		log.Warn("recommendations degraded to empty list",
			slog.String("error", err.Error()),
			slog.Int("candidates", len(tasks)))
		return []int{}
	}

	return Match(ranked, req.Tasks)
}

// rank returns the scorer ranking for req, consulting the cache first.
// Cache failures only cost a scorer call.
func (s *serviceImpl) rank(ctx context.Context, log *slog.Logger, req scorer.Request) ([]scorer.Record, error) {
	var key string
	if s.cache != nil {
		var err error
		key, err = req.Key()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRecommendationUnavailable, err)
		}

		ranked, hit, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn("ranking cache read failed", slog.String("error", err.Error()))
		case hit:
			log.Debug("ranking cache hit", slog.String("key", key))
			return ranked, nil
		}
	}

	ranked, err := s.ranker.Rank(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecommendationUnavailable, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, ranked); err != nil {
			log.Warn("ranking cache write failed", slog.String("error", err.Error()))
		}
	}
	return ranked, nil
}
