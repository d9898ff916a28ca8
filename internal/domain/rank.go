package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Rank is the ordered three-tier scale shared by task complexity and user
// class. The integer encoding is what gets persisted and sent to the scorer,
// and calibration compares the two directly.
type Rank int16

const (
	RankC Rank = iota
	RankB
	RankA
)

// MinRank and MaxRank bound the valid encoding range.
const (
	MinRank = RankC
	MaxRank = RankA
)

// ParseRank converts an integer encoding into a Rank.
// Values outside [0, 2] are rejected rather than coerced.
func ParseRank(v int) (Rank, error) {
	if v < int(MinRank) || v > int(MaxRank) {
		return RankC, fmt.Errorf("%w: %d", ErrInvalidRank, v)
	}
	return Rank(v), nil
}

// ParseRankLetter converts "C", "B" or "A" (case-insensitive) into a Rank.
func ParseRankLetter(s string) (Rank, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "C":
		return RankC, nil
	case "B":
		return RankB, nil
	case "A":
		return RankA, nil
	}
	return RankC, fmt.Errorf("%w: %q", ErrInvalidRank, s)
}

// Valid reports whether r is one of C, B, A.
func (r Rank) Valid() bool {
	return r >= MinRank && r <= MaxRank
}

// String returns the letter form of the rank.
func (r Rank) String() string {
	switch r {
	case RankC:
		return "C"
	case RankB:
		return "B"
	case RankA:
		return "A"
	}
	return fmt.Sprintf("Rank(%d)", int16(r))
}

// MarshalJSON renders the rank as its letter.
func (r Rank) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRank, int16(r))
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts either the letter form or the integer encoding.
func (r *Rank) UnmarshalJSON(data []byte) error {
	var letter string
	if err := json.Unmarshal(data, &letter); err == nil {
		parsed, err := ParseRankLetter(letter)
		if err != nil {
			return err
		}
		*r = parsed
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRank, string(data))
	}
	parsed, err := ParseRank(n)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
