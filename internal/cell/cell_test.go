package cell

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b Content
		want bool
	}{
		{"same text", Content{Type: "text", Value: Str("a")}, Content{Type: "text", Value: Str("a")}, true},
		{"different value", Content{Type: "text", Value: Str("a")}, Content{Type: "text", Value: Str("b")}, false},
		{"different type", Content{Type: "text", Value: Str("1")}, Content{Type: "number", Value: Str("1")}, false},
		{"both cleared", Content{Type: "text"}, Content{Type: "text"}, true},
		{"cleared vs empty string", Content{Type: "text"}, Content{Type: "text", Value: Str("")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
			assert.Equal(t, tt.want, tt.b.Equal(tt.a))
		})
	}
}

func TestContent_Cleared(t *testing.T) {
	assert.True(t, Content{Type: "text"}.Cleared())
	assert.False(t, Content{Type: "text", Value: Str("")}.Cleared())
}

func TestCell_AsOf(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &Cell{
		ID: uuid.New(),
		Snapshots: []Snapshot{
			{ID: uuid.New(), Type: "text", Value: Str("v1"), CreatedAt: t0},
			{ID: uuid.New(), Type: "text", Value: Str("v2"), CreatedAt: t0.Add(time.Minute)},
			{ID: uuid.New(), Type: "text", Value: nil, CreatedAt: t0.Add(2 * time.Minute)},
		},
	}

	_, ok := c.AsOf(t0.Add(-time.Second))
	assert.False(t, ok, "cell did not exist before its first snapshot")

	s, ok := c.AsOf(t0)
	require.True(t, ok)
	assert.Equal(t, "v1", *s.Value)

	s, ok = c.AsOf(t0.Add(90 * time.Second))
	require.True(t, ok)
	assert.Equal(t, "v2", *s.Value)

	s, ok = c.AsOf(t0.Add(time.Hour))
	require.True(t, ok)
	assert.Nil(t, s.Value)
}

func TestSnapshot_JSONNullValue(t *testing.T) {
	data, err := json.Marshal(Snapshot{ID: uuid.New(), Type: "text"})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	v, ok := m["value"]
	assert.True(t, ok, "value key must be present")
	assert.Nil(t, v)
}

func TestWrite_EmbedsPositionAndContent(t *testing.T) {
	w := Write{Position: Position{Column: 2, Row: 3}, Content: Content{Type: "text", Value: Str("x")}}
	assert.Equal(t, 2, w.Column)
	assert.Equal(t, 3, w.Row)
	assert.Equal(t, Content{Type: "text", Value: Str("x")}, w.Content)
}
