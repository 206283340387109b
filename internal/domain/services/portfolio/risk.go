package portfolio

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/cryptofolio/cryptofolio/internal/domain/entities"
	"github.com/google/uuid"
)

// CalculateRiskMetrics builds the daily return series over the
// configured window and derives the tail-risk statistics from it.
func (s *Service) CalculateRiskMetrics(ctx context.Context, userID uuid.UUID) (*entities.RiskMetrics, error) {
	series, err := s.DailyReturnSeries(ctx, userID, s.cfg.ReturnWindowDays)
	if err != nil {
		return nil, fmt.Errorf("failed to build return series: %w", err)
	}
	return RiskMetricsFor(series), nil
}

// RiskMetricsFor derives Value-at-Risk (95/99), Conditional VaR,
// downside deviation and the Sortino ratio from a daily return series
// using the historical-simulation method. All fields are nil on an
// empty series. Beta and correlation require a parallel benchmark
// return series this engine does not build, so they stay nil.
func RiskMetricsFor(series []entities.DailyReturnPoint) *entities.RiskMetrics {
	m := &entities.RiskMetrics{ObservationDays: len(series)}
	n := len(series)
	if n == 0 {
		return m
	}

	returns := make([]float64, n)
	for i, p := range series {
		returns[i] = p.Return
	}

	sorted := make([]float64, n)
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx95 := clampIndex(int(math.Floor(float64(n)*0.05)), n)
	idx99 := clampIndex(int(math.Floor(float64(n)*0.01)), n)
	var95, var99 := sorted[idx95], sorted[idx99]
	m.ValueAtRisk95 = &var95
	m.ValueAtRisk99 = &var99

	// Expected loss over the tail at or below the VaR95 threshold.
	cvar := meanOf(sorted[:idx95+1])
	m.ConditionalVaR95 = &cvar

	var negSquaredSum float64
	negCount := 0
	for _, r := range returns {
		if r < 0 {
			negSquaredSum += r * r
			negCount++
		}
	}
	if negCount > 0 {
		dd := math.Sqrt(negSquaredSum / float64(negCount))
		m.DownsideDeviation = &dd
		if dd > 0 {
			sortino := (meanOf(returns) * tradingDaysPerYear) / (dd * math.Sqrt(tradingDaysPerYear))
			m.SortinoRatio = &sortino
		}
	}

	return m
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
