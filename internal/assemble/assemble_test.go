package assemble

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, Mean([]float64{}))
	assert.Equal(t, 36.0, Mean([]float64{24, 48}))
}

func TestRate(t *testing.T) {
	assert.Equal(t, 0.0, Rate(3, 0))
	assert.Equal(t, 0.0, Rate(0, 10))
	assert.Equal(t, 50.0, Rate(5, 10))
	assert.InDelta(t, 33.3, Rate(1, 3), 0.05)
	assert.Equal(t, 100.0, Rate(10, 10))
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 33.3, Round1(33.333333))
	assert.Equal(t, 24.0, Round1(24.04))
	assert.Equal(t, 24.1, Round1(24.05))
}

func TestHours(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(90 * time.Minute)
	assert.Equal(t, 1.5, Hours(from, to))
}

func TestStageHealthBoundaries(t *testing.T) {
	cases := []struct {
		hours float64
		want  string
	}{
		{25, "Critical"},
		{24.01, "Critical"},
		{24.0, "Warning"},
		{10, "Warning"},
		{8.0, "Healthy"},
		{5, "Healthy"},
		{0, "Healthy"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StageHealth(tc.hours), "avg %v", tc.hours)
	}
}
