package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMaxPlusManhattan(t *testing.T) {
	tests := []struct {
		name string
		a, b Tile
		want uint
	}{
		{"same tile", Tile{3, 4}, Tile{3, 4}, 0},
		{"horizontal", Tile{0, 0}, Tile{5, 0}, 10},
		{"vertical", Tile{0, 0}, Tile{0, 7}, 14},
		{"diagonal", Tile{0, 0}, Tile{3, 4}, 11},
		{"symmetric", Tile{3, 4}, Tile{0, 0}, 11},
		{"negative coords", Tile{-2, -2}, Tile{1, 2}, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DistanceMaxPlusManhattan(tt.a, tt.b))
		})
	}
}

func TestStationIDValidity(t *testing.T) {
	assert.False(t, InvalidStation.IsValid())
	assert.True(t, StationID(0).IsValid())
	assert.True(t, StationID(42).IsValid())
}

func TestDateShift(t *testing.T) {
	assert.Equal(t, Date(110), Date(100).Shift(10))
	assert.Equal(t, Date(90), Date(100).Shift(-10))
	// A never-set date must stay never-set across epoch shifts.
	assert.Equal(t, DateNever, DateNever.Shift(1000))
}

func TestDateAgeSince(t *testing.T) {
	assert.Equal(t, int64(30), Date(130).AgeSince(Date(100)))
	// Same-day and inverted ranges clamp to one day.
	assert.Equal(t, int64(1), Date(100).AgeSince(Date(100)))
	assert.Equal(t, int64(1), Date(90).AgeSince(Date(100)))
	assert.Equal(t, int64(1), Date(100).AgeSince(DateNever))
}
