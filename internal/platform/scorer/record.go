package scorer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
)

// Record is one worker profile or candidate task on the wire. It encodes as
// the JSON array [complexity, time, tags].
type Record struct {
	Complexity float64
	Time       float64
	Tags       []string
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return json.Marshal([3]any{r.Complexity, r.Time, tags})
}

// UnmarshalJSON implements json.Unmarshaler. It requires exactly three
// elements.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("scorer record: %w", err)
	}
	if len(raw) != 3 {
		return fmt.Errorf("scorer record: want 3 elements, got %d", len(raw))
	}

	var out Record
	if err := json.Unmarshal(raw[0], &out.Complexity); err != nil {
		return fmt.Errorf("scorer record complexity: %w", err)
	}
	if err := json.Unmarshal(raw[1], &out.Time); err != nil {
		return fmt.Errorf("scorer record time: %w", err)
	}
	if err := json.Unmarshal(raw[2], &out.Tags); err != nil {
		return fmt.Errorf("scorer record tags: %w", err)
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	*r = out
	return nil
}

// Equal reports structural equality: same complexity, same time and the
// same tags in the same order. A nil and an empty tag list are equal.
func (r Record) Equal(other Record) bool {
	return r.Complexity == other.Complexity &&
		r.Time == other.Time &&
		slices.Equal(r.Tags, other.Tags)
}

// Request is the scorer request body.
type Request struct {
	Worker Record   `json:"worker"`
	Tasks  []Record `json:"tasks"`
}

// Key returns a stable identifier for the request, the hex SHA-256 of its
// JSON encoding. Identical requests share a key.
func (r Request) Key() (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode scorer request: %w", err)
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}
