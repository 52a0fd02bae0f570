package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Vector stores an embedding as a JSON array in a text column. It works on
// both SQLite and PostgreSQL without the pgvector extension.
type Vector []float32

// GormDataType stores vectors in a text column on every dialect.
func (Vector) GormDataType() string { return "text" }

// Scan implements sql.Scanner.
func (v *Vector) Scan(value any) error {
	if value == nil {
		*v = nil
		return nil
	}
	var raw []byte
	switch val := value.(type) {
	case string:
		raw = []byte(val)
	case []byte:
		raw = val
	default:
		return fmt.Errorf("cannot scan %T into Vector", value)
	}
	if len(raw) == 0 {
		*v = nil
		return nil
	}
	var floats []float32
	if err := json.Unmarshal(raw, &floats); err != nil {
		return fmt.Errorf("decode vector: %w", err)
	}
	*v = floats
	return nil
}

// Value implements driver.Valuer. An empty vector is stored as NULL so
// "embedding IS NULL" finds assets still waiting for one.
func (v Vector) Value() (driver.Value, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal([]float32(v))
	if err != nil {
		return nil, fmt.Errorf("encode vector: %w", err)
	}
	return string(b), nil
}

// CosineSimilarity returns the cosine similarity of a and b, or 0 when the
// dimensions differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Scored pairs an identifier with its similarity to a query vector.
type Scored struct {
	ID    string
	Score float64
}

// TopKSimilar ranks candidates by cosine similarity to query, dropping
// those below threshold, and returns at most k results, best first.
func TopKSimilar(query []float32, candidates map[string][]float32, threshold float64, k int) []Scored {
	results := make([]Scored, 0, len(candidates))
	for id, vec := range candidates {
		score := CosineSimilarity(query, vec)
		if score < threshold {
			continue
		}
		results = append(results, Scored{ID: id, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].ID < results[j].ID
		}
		return results[i].Score > results[j].Score
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}
