package portfolio

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cryptofolio/cryptofolio/internal/domain/entities"
	"github.com/google/uuid"
)

const tradingDaysPerYear = 365

// CalculateAdvancedMetrics builds the daily return series over the
// configured window and derives the annualized performance statistics
// from it.
func (s *Service) CalculateAdvancedMetrics(ctx context.Context, userID uuid.UUID) (*entities.AdvancedMetrics, error) {
	series, err := s.DailyReturnSeries(ctx, userID, s.cfg.ReturnWindowDays)
	if err != nil {
		return nil, fmt.Errorf("failed to build return series: %w", err)
	}
	return AdvancedMetricsFor(series), nil
}

// AdvancedMetricsFor derives annualized return, volatility, Sharpe
// ratio, maximum drawdown, win rate and best/worst day from a daily
// return series. Every statistic is nil when the series cannot support
// it; an empty series yields an all-nil result rather than an error.
func AdvancedMetricsFor(series []entities.DailyReturnPoint) *entities.AdvancedMetrics {
	m := &entities.AdvancedMetrics{ObservationDays: len(series)}
	if len(series) == 0 {
		return m
	}

	returns := make([]float64, len(series))
	for i, p := range series {
		returns[i] = p.Return
	}

	mean := meanOf(returns)
	annualized := mean * tradingDaysPerYear
	m.AnnualizedReturn = &annualized

	volatility := stddevOf(returns, mean) * math.Sqrt(tradingDaysPerYear)
	m.Volatility = &volatility
	if volatility > 0 {
		sharpe := annualized / volatility
		m.SharpeRatio = &sharpe
	}

	m.MaxDrawdown, m.MaxDrawdownStart, m.MaxDrawdownEnd = maxDrawdownOf(series)

	bestIdx, worstIdx := 0, 0
	for i, r := range returns {
		if r > returns[bestIdx] {
			bestIdx = i
		}
		if r < returns[worstIdx] {
			worstIdx = i
		}
		if r > 0 {
			m.PositiveDays++
		} else if r < 0 {
			m.NegativeDays++
		}
	}
	best, worst := returns[bestIdx], returns[worstIdx]
	bestDate, worstDate := series[bestIdx].Date, series[worstIdx].Date
	m.BestDay, m.BestDayDate = &best, &bestDate
	m.WorstDay, m.WorstDayDate = &worst, &worstDate

	winRate := float64(m.PositiveDays) / float64(len(returns)) * 100
	m.WinRate = &winRate

	return m
}

// maxDrawdownOf tracks the running peak value and reports the deepest
// peak-to-trough decline as a positive percentage with its bracketing
// dates. Nil when the series never declines from a positive peak.
func maxDrawdownOf(series []entities.DailyReturnPoint) (*float64, *time.Time, *time.Time) {
	var (
		maxDD      float64
		start, end time.Time
		found      bool
	)

	peak := series[0].ValueUSD
	peakDate := series[0].Date

	for _, p := range series[1:] {
		if p.ValueUSD.GreaterThan(peak) {
			peak = p.ValueUSD
			peakDate = p.Date
			continue
		}
		if !peak.IsPositive() {
			continue
		}
		dd, _ := peak.Sub(p.ValueUSD).Div(peak).Mul(hundred).Float64()
		if dd > maxDD {
			maxDD = dd
			start = peakDate
			end = p.Date
			found = true
		}
	}

	if !found {
		return nil, nil, nil
	}
	return &maxDD, &start, &end
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddevOf is the population standard deviation.
func stddevOf(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}
