package risk

import (
	"errors"
	"math"

	"github.com/rs/zerolog/log"
)

// Trading days per year, used to annualize daily return statistics
const tradingDaysPerYear = 252.0

// One-tailed z-score for the 95% confidence level
const var95ZScore = 1.645

// ErrInsufficientData is returned when a return series is too short for a
// sample statistic. Every calculation here needs at least two points.
var ErrInsufficientData = errors.New("insufficient data points for risk calculation")

// Level classifies annualized volatility into a risk band
type Level string

const (
	LevelLow      Level = "Low"
	LevelModerate Level = "Moderate"
	LevelHigh     Level = "High"
)

// Volatility band cut points on annualized volatility
const (
	lowVolatilityCeiling      = 0.10
	moderateVolatilityCeiling = 0.25
)

// Metrics bundles every statistic the risk analysis tool reports
type Metrics struct {
	Volatility       float64 `json:"volatility"`
	AverageReturn    float64 `json:"average_return"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	ValueAtRisk95    float64 `json:"value_at_risk_95"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	RiskLevel        Level   `json:"risk_level"`
	ObservationCount int     `json:"observation_count"`
}

// Volatility returns annualized volatility: sample standard deviation of the
// daily returns scaled by sqrt(252)
func Volatility(returns []float64) (float64, error) {
	if len(returns) < 2 {
		return 0, ErrInsufficientData
	}
	return sampleStdDev(returns) * math.Sqrt(tradingDaysPerYear), nil
}

// AverageReturn returns the annualized mean of the daily returns
func AverageReturn(returns []float64) (float64, error) {
	if len(returns) < 2 {
		return 0, ErrInsufficientData
	}
	return mean(returns) * tradingDaysPerYear, nil
}

// SharpeRatio returns annualized mean return over annualized volatility,
// with a zero risk-free rate. A flat series has zero volatility and yields
// a Sharpe of exactly 0 rather than a division error.
func SharpeRatio(returns []float64) (float64, error) {
	vol, err := Volatility(returns)
	if err != nil {
		return 0, err
	}
	if vol == 0 {
		return 0, nil
	}
	avg, err := AverageReturn(returns)
	if err != nil {
		return 0, err
	}
	return avg / vol, nil
}

// ValueAtRisk95 returns the parametric one-day 95% VaR in currency terms:
// (mean - 1.645 * stdev) of the daily returns, scaled by portfolio value.
// The result is negative for any portfolio with meaningful downside.
func ValueAtRisk95(returns []float64, portfolioValue float64) (float64, error) {
	if len(returns) < 2 {
		return 0, ErrInsufficientData
	}
	quantile := mean(returns) - var95ZScore*sampleStdDev(returns)
	return quantile * portfolioValue, nil
}

// MaxDrawdown returns the largest peak-to-trough decline of the cumulative
// value curve implied by the return series, as a positive fraction.
func MaxDrawdown(returns []float64) (float64, error) {
	if len(returns) < 2 {
		return 0, ErrInsufficientData
	}

	value := 1.0
	peak := 1.0
	maxDD := 0.0
	for _, r := range returns {
		value *= 1 + r
		if value > peak {
			peak = value
		}
		if peak > 0 {
			if dd := (peak - value) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD, nil
}

// Classify maps annualized volatility onto a risk band. The bands cover
// [0, +inf) without overlap: Low below 10%, Moderate from 10% through 25%
// inclusive, High above 25%.
func Classify(volatility float64) Level {
	switch {
	case volatility < lowVolatilityCeiling:
		return LevelLow
	case volatility <= moderateVolatilityCeiling:
		return LevelModerate
	default:
		return LevelHigh
	}
}

// Analyze computes the full metric set for a return series
func Analyze(returns []float64, portfolioValue float64) (*Metrics, error) {
	vol, err := Volatility(returns)
	if err != nil {
		return nil, err
	}
	avg, err := AverageReturn(returns)
	if err != nil {
		return nil, err
	}
	sharpe, err := SharpeRatio(returns)
	if err != nil {
		return nil, err
	}
	valueAtRisk, err := ValueAtRisk95(returns, portfolioValue)
	if err != nil {
		return nil, err
	}
	maxDD, err := MaxDrawdown(returns)
	if err != nil {
		return nil, err
	}

	metrics := &Metrics{
		Volatility:       vol,
		AverageReturn:    avg,
		SharpeRatio:      sharpe,
		ValueAtRisk95:    valueAtRisk,
		MaxDrawdown:      maxDD,
		RiskLevel:        Classify(vol),
		ObservationCount: len(returns),
	}

	log.Debug().
		Float64("volatility", metrics.Volatility).
		Float64("sharpe_ratio", metrics.SharpeRatio).
		Float64("max_drawdown", metrics.MaxDrawdown).
		Str("risk_level", string(metrics.RiskLevel)).
		Int("observations", metrics.ObservationCount).
		Msg("Risk metrics calculated")

	return metrics, nil
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev uses Bessel's correction; callers guarantee len >= 2
func sampleStdDev(values []float64) float64 {
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}
