package recommendation

import (
	"context"
	"errors"
	"testing"

	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/platform/scorer"
	"github.com/phrazzld/questboard-api/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRanker struct {
	mock.Mock
}

func (m *mockRanker) Rank(ctx context.Context, req scorer.Request) ([]scorer.Record, error) {
	args := m.Called(ctx, req)
	ranked, _ := args.Get(0).([]scorer.Record)
	return ranked, args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string) ([]scorer.Record, bool, error) {
	args := m.Called(ctx, key)
	ranked, _ := args.Get(0).([]scorer.Record)
	return ranked, args.Bool(1), args.Error(2)
}

func (m *mockCache) Set(ctx context.Context, key string, ranked []scorer.Record) error {
	args := m.Called(ctx, key, ranked)
	return args.Error(0)
}

var scenarioProfile = Profile{Complexity: 1, Time: 4, Tags: []string{"go", "sql"}}

var scenarioRanking = []scorer.Record{
	{Complexity: 1, Time: 5, Tags: []string{"go", "sql"}},
	{Complexity: 0, Time: 2, Tags: []string{"sql"}},
}

func TestRecommend_Scenario(t *testing.T) {
	ranker := &mockRanker{}
	ranker.On("Rank", mock.Anything, BuildRequest(scenarioProfile, scenarioTasks())).Return(scenarioRanking, nil)

	svc := NewService(ranker, nil, memstore.New().Completions(), nil)
	got := svc.Recommend(context.Background(), scenarioProfile, scenarioTasks())

	assert.Equal(t, []int{1, 0}, got)
	ranker.AssertExpectations(t)
}

func TestRecommend_DegradesToEmpty(t *testing.T) {
	tests := []struct {
		name   string
		ranker Ranker
	}{
		{"scorer disabled", nil},
		{"scorer fails", func() Ranker {
			r := &mockRanker{}
			r.On("Rank", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
			return r
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.ranker, nil, memstore.New().Completions(), nil)
			got := svc.Recommend(context.Background(), scenarioProfile, scenarioTasks())
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestRecommend_NoTasksSkipsScorer(t *testing.T) {
	ranker := &mockRanker{}
	svc := NewService(ranker, nil, memstore.New().Completions(), nil)

	assert.Empty(t, svc.Recommend(context.Background(), scenarioProfile, nil))
	ranker.AssertNotCalled(t, "Rank", mock.Anything, mock.Anything)
}

func TestRecommend_Cache(t *testing.T) {
	req := BuildRequest(scenarioProfile, scenarioTasks())
	key, err := req.Key()
	require.NoError(t, err)

	t.Run("hit skips the scorer", func(t *testing.T) {
		ranker := &mockRanker{}
		cache := &mockCache{}
		cache.On("Get", mock.Anything, key).Return(scenarioRanking, true, nil)

		svc := NewService(ranker, cache, memstore.New().Completions(), nil)
		assert.Equal(t, []int{1, 0}, svc.Recommend(context.Background(), scenarioProfile, scenarioTasks()))

		ranker.AssertNotCalled(t, "Rank", mock.Anything, mock.Anything)
		cache.AssertExpectations(t)
	})

	t.Run("miss stores the ranking", func(t *testing.T) {
		ranker := &mockRanker{}
		ranker.On("Rank", mock.Anything, req).Return(scenarioRanking, nil)
		cache := &mockCache{}
		cache.On("Get", mock.Anything, key).Return(nil, false, nil)
		cache.On("Set", mock.Anything, key, scenarioRanking).Return(nil)

		svc := NewService(ranker, cache, memstore.New().Completions(), nil)
		assert.Equal(t, []int{1, 0}, svc.Recommend(context.Background(), scenarioProfile, scenarioTasks()))

		ranker.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("cache errors fall through", func(t *testing.T) {
		ranker := &mockRanker{}
		ranker.On("Rank", mock.Anything, req).Return(scenarioRanking, nil)
		cache := &mockCache{}
		cache.On("Get", mock.Anything, key).Return(nil, false, errors.New("redis down"))
		cache.On("Set", mock.Anything, key, scenarioRanking).Return(errors.New("redis down"))

		svc := NewService(ranker, cache, memstore.New().Completions(), nil)
		assert.Equal(t, []int{1, 0}, svc.Recommend(context.Background(), scenarioProfile, scenarioTasks()))
	})

	t.Run("scorer failure is not cached", func(t *testing.T) {
		ranker := &mockRanker{}
		ranker.On("Rank", mock.Anything, req).Return(nil, errors.New("timeout"))
		cache := &mockCache{}
		cache.On("Get", mock.Anything, key).Return(nil, false, nil)

		svc := NewService(ranker, cache, memstore.New().Completions(), nil)
		assert.Empty(t, svc.Recommend(context.Background(), scenarioProfile, scenarioTasks()))
		cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestProfileFor(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()

	user := &domain.User{Login: "ada", Name: "Ada", HashedPassword: "hash", Tags: []string{"go"}}
	require.NoError(t, mem.Users().Create(ctx, user))

	svc := NewService(nil, nil, mem.Completions(), nil)

	profile, err := svc.ProfileFor(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, Profile{Complexity: DefaultComplexity, Time: DefaultTime, Tags: []string{"go"}}, profile)

	for _, task := range []*domain.Task{
		{Complexity: domain.RankA, Description: "a", ExpectedTime: 3},
		{Complexity: domain.RankB, Description: "b", ExpectedTime: 6},
	} {
		require.NoError(t, mem.Tasks().Create(ctx, task))
		require.NoError(t, mem.Completions().Insert(ctx, user.ID, task.ID))
	}

	profile, err = svc.ProfileFor(ctx, user)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, profile.Complexity, 1e-9)
	assert.InDelta(t, 4.5, profile.Time, 1e-9)

	mem.FailOn("completions.AverageExpectedTime", errors.New("boom"))
	_, err = svc.ProfileFor(ctx, user)
	assert.Error(t, err)
}
