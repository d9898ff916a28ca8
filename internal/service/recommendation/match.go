package recommendation

import (
	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/platform/scorer"
)

// taskRecord encodes a task the way the scorer expects it.
func taskRecord(t *domain.Task) scorer.Record {
	return scorer.Record{
		Complexity: float64(t.Complexity),
		Time:       t.ExpectedTime,
		Tags:       t.Tags,
	}
}

// BuildRequest assembles the scorer request for profile and tasks.
func BuildRequest(profile Profile, tasks []*domain.Task) scorer.Request {
	records := make([]scorer.Record, len(tasks))
	for i, t := range tasks {
		records[i] = taskRecord(t)
	}
	return scorer.Request{
		Worker: scorer.Record{
			Complexity: profile.Complexity,
			Time:       profile.Time,
			Tags:       profile.Tags,
		},
		Tasks: records,
	}
}

// Match maps the first TopN ranked records back to input positions.
//
// The scorer echoes records instead of identifiers, so matching is by value:
// every input equal to a ranked slot is reported, in ascending position
// within the slot. Candidates that share complexity, time and tags are
// indistinguishable and can appear more than once. The result never holds
// more than TopN indexes.
func Match(ranked, inputs []scorer.Record) []int {
	indexes := make([]int, 0, TopN)
	for _, slot := range ranked[:min(TopN, len(ranked))] {
		for i, in := range inputs {
			if len(indexes) == TopN {
				return indexes
			}
			if in.Equal(slot) {
				indexes = append(indexes, i)
			}
		}
	}
	return indexes
}
