package database

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector_RoundTrip(t *testing.T) {
	v := Vector{0.5, -1, 2}
	raw, err := v.Value()
	require.NoError(t, err)
	assert.Equal(t, "[0.5,-1,2]", raw)

	var back Vector
	require.NoError(t, back.Scan(raw))
	assert.Equal(t, v, back)

	require.NoError(t, back.Scan([]byte("[1]")))
	assert.Equal(t, Vector{1}, back)
}

func TestVector_EmptyIsNull(t *testing.T) {
	raw, err := Vector(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, raw)

	v := Vector{1}
	require.NoError(t, v.Scan(nil))
	assert.Nil(t, v)
}

func TestVector_ScanRejectsUnknownType(t *testing.T) {
	var v Vector
	assert.Error(t, v.Scan(42))
}

type vectorRow struct {
	ID        string `gorm:"primaryKey"`
	Embedding Vector
}

type vectorProjection struct {
	ID        string
	Embedding Vector
}

func TestVector_GORMColumn(t *testing.T) {
	ctx := context.Background()
	db, _ := openFile(t)
	session := db.Session(ctx)
	require.NoError(t, session.AutoMigrate(&vectorRow{}))

	require.NoError(t, session.Create(&vectorRow{ID: "a", Embedding: Vector{0.25, -1}}).Error)
	require.NoError(t, session.Create(&vectorRow{ID: "b"}).Error)

	var rows []vectorProjection
	err := session.Model(&vectorRow{}).
		Select("id, embedding").
		Where("embedding IS NOT NULL").
		Scan(&rows).Error
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].ID)
	assert.Equal(t, Vector{0.25, -1}, rows[0].Embedding)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"dimension mismatch", []float32{1}, []float32{1, 2}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTopKSimilar(t *testing.T) {
	query := []float32{1, 0}
	candidates := map[string][]float32{
		"exact":   {1, 0},
		"close":   {0.9, 0.1},
		"far":     {0, 1},
		"nothing": nil,
	}

	got := TopKSimilar(query, candidates, 0.3, 10)
	require.Len(t, got, 2)
	assert.Equal(t, "exact", got[0].ID)
	assert.Equal(t, "close", got[1].ID)

	got = TopKSimilar(query, candidates, 0.3, 1)
	require.Len(t, got, 1)
	assert.Equal(t, "exact", got[0].ID)
}
