package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateRemaining(t *testing.T) {
	capacity := Quantity{Value: 1000, Unit: "MB"}

	tests := []struct {
		name      string
		rate      Quantity
		recovered float64
		want      string
	}{
		{"seconds", Quantity{Value: 10, Unit: "MB", Rate: true}, 500, "50 seconds"},
		{"minutes", Quantity{Value: 1, Unit: "MB", Rate: true}, 700, "5 minutes"},
		{"hours", Quantity{Value: 100, Unit: "kB", Rate: true}, 280, "2 hours"},
		{"days", Quantity{Value: 1, Unit: "kB", Rate: true}, 0, "11.57 days"},
		{"rate in bigger unit", Quantity{Value: 1, Unit: "GB", Rate: true}, 0, "1 seconds"},
		{"finished", Quantity{Value: 10, Unit: "MB", Rate: true}, 1000, "0 seconds"},
		{"overshoot never negative", Quantity{Value: 10, Unit: "MB", Rate: true}, 1200, "0 seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateRemaining(tt.rate, capacity, tt.recovered))
		})
	}
}

func TestEstimateRemaining_Unknown(t *testing.T) {
	capacity := Quantity{Value: 1000, Unit: "MB"}

	assert.Equal(t, Unknown, EstimateRemaining(Quantity{Value: 0, Unit: "kB", Rate: true}, capacity, 10))
	assert.Equal(t, Unknown, EstimateRemaining(Quantity{}, capacity, 10))
	assert.Equal(t, Unknown, EstimateRemaining(Quantity{Value: 5, Unit: "kB"}, Quantity{}, 10))
	assert.Equal(t, Unknown, EstimateRemaining(Quantity{Value: 5, Unit: "furlongs"}, capacity, 10))
}

func TestHumanizeElapsed(t *testing.T) {
	assert.Equal(t, "0 seconds", HumanizeElapsed(-3))
	assert.Equal(t, "2 seconds", HumanizeElapsed(2))
	assert.Equal(t, "60 seconds", HumanizeElapsed(60))
	assert.Equal(t, "1 minutes", HumanizeElapsed(61))
	assert.Equal(t, "1.5 minutes", HumanizeElapsed(90))
	assert.Equal(t, "60 minutes", HumanizeElapsed(3600))
	assert.Equal(t, "1.5 hours", HumanizeElapsed(5400))
	assert.Equal(t, "24 hours", HumanizeElapsed(86400))
	assert.Equal(t, "1.5 days", HumanizeElapsed(129600))

	for s := 0; s < 200000; s += 997 {
		assert.False(t, strings.HasPrefix(HumanizeElapsed(s), "-"))
	}
}
