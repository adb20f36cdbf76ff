package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolatility(t *testing.T) {
	tests := []struct {
		name   string
		scores []int
		want   float64
	}{
		{"empty", nil, 0},
		{"identical", []int{7, 7, 7}, 0},
		{"extremes", []int{0, 10}, 100},
		{"spread", []int{2, 4, 4, 4, 5, 5, 7, 9}, 40},
		{"rounded", []int{1, 2, 4}, 24.94},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Volatility(tt.scores, 0, 10, 2)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestVolatilityBadRange(t *testing.T) {
	_, err := Volatility([]int{1}, 5, 5, 2)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "Very Consistent", Classify(0))
	assert.Equal(t, "Consistent", Classify(10))
	assert.Equal(t, "Somewhat Inconsistent", Classify(49.99))
	assert.Equal(t, "Very Inconsistent", Classify(50))
	assert.Equal(t, "HIGHLY VOLATILE", Classify(75))
}
