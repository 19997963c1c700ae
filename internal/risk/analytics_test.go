package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolatility(t *testing.T) {
	// mean 0.015, sample stdev sqrt(5e-5), annualized by sqrt(252)
	vol, err := Volatility([]float64{0.01, 0.02})
	require.NoError(t, err)
	assert.InDelta(t, 0.112250, vol, 1e-5)

	// Flat series has zero volatility, not an error
	vol, err = Volatility([]float64{0.01, 0.01, 0.01})
	require.NoError(t, err)
	assert.Equal(t, 0.0, vol)
}

func TestAverageReturn(t *testing.T) {
	avg, err := AverageReturn([]float64{0.01, 0.02})
	require.NoError(t, err)
	assert.InDelta(t, 3.78, avg, 1e-9)
}

func TestSharpeRatio(t *testing.T) {
	sharpe, err := SharpeRatio([]float64{0.01, 0.02})
	require.NoError(t, err)
	assert.InDelta(t, 33.675, sharpe, 0.01)

	// Zero volatility yields exactly zero, never a division error
	sharpe, err = SharpeRatio([]float64{0.02, 0.02, 0.02})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sharpe)
}

func TestValueAtRisk95(t *testing.T) {
	// mean 0, sample stdev sqrt(2e-4): VaR = -1.645*stdev * value
	valueAtRisk, err := ValueAtRisk95([]float64{0.01, -0.01}, 100000)
	require.NoError(t, err)
	assert.InDelta(t, -2326.38, valueAtRisk, 0.01)
	assert.Less(t, valueAtRisk, 0.0)
}

func TestMaxDrawdown(t *testing.T) {
	// Curve 1.10 -> 0.55 -> 0.66: trough is half the peak
	maxDD, err := MaxDrawdown([]float64{0.10, -0.50, 0.20})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, maxDD, 1e-9)

	// Monotonic growth never draws down
	maxDD, err = MaxDrawdown([]float64{0.01, 0.02, 0.03})
	require.NoError(t, err)
	assert.Equal(t, 0.0, maxDD)
}

func TestDrawdownDependsOnOrderButMomentsDoNot(t *testing.T) {
	// Reordering consolidates the two losses into one slide, deepening the
	// trough: 0.2 max drawdown versus 0.28.
	original := []float64{-0.10, 0.30, -0.20, 0.10}
	reordered := []float64{-0.10, -0.20, 0.30, 0.10}

	volA, err := Volatility(original)
	require.NoError(t, err)
	volB, err := Volatility(reordered)
	require.NoError(t, err)
	assert.InDelta(t, volA, volB, 1e-12, "volatility is a moment, not path-dependent")

	sharpeA, err := SharpeRatio(original)
	require.NoError(t, err)
	sharpeB, err := SharpeRatio(reordered)
	require.NoError(t, err)
	assert.InDelta(t, sharpeA, sharpeB, 1e-12)

	ddA, err := MaxDrawdown(original)
	require.NoError(t, err)
	ddB, err := MaxDrawdown(reordered)
	require.NoError(t, err)
	assert.Greater(t, math.Abs(ddA-ddB), 1e-9, "drawdown follows the path, so order must matter")
}

func TestInsufficientData(t *testing.T) {
	short := []float64{0.01}

	_, err := Volatility(short)
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = AverageReturn(short)
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = SharpeRatio(short)
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = ValueAtRisk95(short, 1000)
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = MaxDrawdown(short)
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = Analyze(nil, 1000)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		volatility float64
		want       Level
	}{
		{"zero volatility is low", 0.0, LevelLow},
		{"just under low ceiling", 0.0999, LevelLow},
		{"low ceiling is moderate", 0.10, LevelModerate},
		{"mid band is moderate", 0.18, LevelModerate},
		{"moderate ceiling stays moderate", 0.25, LevelModerate},
		{"above moderate ceiling is high", 0.2501, LevelHigh},
		{"extreme volatility is high", 3.0, LevelHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.volatility))
		})
	}
}

func TestAnalyze(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.015, 0.005, -0.01}

	metrics, err := Analyze(returns, 250000)
	require.NoError(t, err)

	vol, _ := Volatility(returns)
	sharpe, _ := SharpeRatio(returns)
	maxDD, _ := MaxDrawdown(returns)

	assert.Equal(t, vol, metrics.Volatility)
	assert.Equal(t, sharpe, metrics.SharpeRatio)
	assert.Equal(t, maxDD, metrics.MaxDrawdown)
	assert.Equal(t, Classify(vol), metrics.RiskLevel)
	assert.Equal(t, len(returns), metrics.ObservationCount)
	assert.Less(t, metrics.ValueAtRisk95, 0.0)
}
