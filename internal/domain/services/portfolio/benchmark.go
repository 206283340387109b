package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/cryptofolio/cryptofolio/internal/domain/entities"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CalculateBenchmarkComparisons compares the portfolio's total return
// over the configured window against each configured benchmark asset's
// price return over the same window. An oracle failure for one
// benchmark nils that comparison only. Alpha assumes beta 1 since no
// parallel benchmark return series is built (beta stays nil).
func (s *Service) CalculateBenchmarkComparisons(ctx context.Context, userID uuid.UUID) ([]entities.BenchmarkComparison, error) {
	return s.CompareBenchmarks(ctx, userID, s.cfg.BenchmarkSymbols, s.cfg.ReturnWindowDays)
}

// CompareBenchmarks is CalculateBenchmarkComparisons with explicit
// benchmark symbols and window.
func (s *Service) CompareBenchmarks(ctx context.Context, userID uuid.UUID, symbols []string, windowDays int) ([]entities.BenchmarkComparison, error) {
	if windowDays <= 0 {
		windowDays = s.cfg.ReturnWindowDays
	}

	now := time.Now().UTC()
	windowStart := now.AddDate(0, 0, -windowDays)

	startValue, err := s.ValueAt(ctx, userID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to value portfolio at window start: %w", err)
	}
	endValue, err := s.ValueAt(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to value portfolio at window end: %w", err)
	}

	var portfolioReturn *float64
	if startValue.IsPositive() {
		pct, _ := endValue.Sub(startValue).Div(startValue).Mul(hundred).Float64()
		portfolioReturn = &pct
	}

	comparisons := make([]entities.BenchmarkComparison, 0, len(symbols))
	for _, symbol := range symbols {
		comparison := entities.BenchmarkComparison{
			Symbol:          symbol,
			PortfolioReturn: portfolioReturn,
			WindowDays:      windowDays,
		}

		benchmarkReturn := s.benchmarkReturn(ctx, symbol, windowStart, now)
		comparison.BenchmarkReturn = benchmarkReturn

		if portfolioReturn != nil && benchmarkReturn != nil {
			excess := *portfolioReturn - *benchmarkReturn
			comparison.ExcessReturn = &excess
			// No beta available, so alpha collapses to the excess
			// return (beta assumed 1).
			alpha := *portfolioReturn - *benchmarkReturn
			comparison.Alpha = &alpha
			outperforming := excess > 0
			comparison.Outperforming = &outperforming
		}

		comparisons = append(comparisons, comparison)
	}

	return comparisons, nil
}

// benchmarkReturn computes one asset's percentage price return between
// two dates, nil when either price cannot be resolved. Each lookup gets
// its own timeout so a slow start lookup cannot starve the end lookup.
func (s *Service) benchmarkReturn(ctx context.Context, symbol string, start, end time.Time) *float64 {
	startPrice, err := s.lookupHistoricalPrice(ctx, symbol, start)
	if err != nil || startPrice == nil || !startPrice.IsPositive() {
		if err != nil {
			s.logger.Warnw("Benchmark start price unavailable",
				"symbol", symbol, "date", start.Format("2006-01-02"), "error", err)
		}
		return nil
	}

	endPrice, err := s.lookupHistoricalPrice(ctx, symbol, end)
	if err != nil || endPrice == nil {
		if err != nil {
			s.logger.Warnw("Benchmark end price unavailable",
				"symbol", symbol, "date", end.Format("2006-01-02"), "error", err)
		}
		return nil
	}

	pct, _ := endPrice.Sub(*startPrice).Div(*startPrice).Mul(hundred).Float64()
	return &pct
}

func (s *Service) lookupHistoricalPrice(ctx context.Context, symbol string, date time.Time) (*decimal.Decimal, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.OracleTimeout)
	defer cancel()
	return s.oracle.HistoricalPrice(lookupCtx, symbol, date)
}
