package portfolio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cryptofolio/cryptofolio/internal/domain/entities"
	"github.com/cryptofolio/cryptofolio/pkg/metrics"
	"github.com/google/uuid"
)

// GetEnhancedPortfolioMetrics runs the summary and the four analytics
// sections concurrently and assembles one report. A failing or
// panicking section comes back in its nil form with the failure noted
// in Errors; the report itself is always structurally complete and the
// call only errors when the context is already dead.
func (s *Service) GetEnhancedPortfolioMetrics(ctx context.Context, userID uuid.UUID) (*entities.EnhancedPortfolioMetrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &entities.EnhancedPortfolioMetrics{
		Errors:      make(map[string]string),
		GeneratedAt: time.Now().UTC(),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	section := func(name string, run func(ctx context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			defer func() {
				metrics.ReportDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
				if r := recover(); r != nil {
					s.logger.Errorw("Report section panicked",
						"section", name, "user_id", userID, "panic", r)
					mu.Lock()
					report.Errors[name] = fmt.Sprintf("panic: %v", r)
					mu.Unlock()
				}
			}()

			if err := run(ctx); err != nil {
				s.logger.Warnw("Report section failed",
					"section", name, "user_id", userID, "error", err)
				mu.Lock()
				report.Errors[name] = err.Error()
				mu.Unlock()
			}
		}()
	}

	section("summary", func(ctx context.Context) error {
		summary, err := s.GetPortfolioSummary(ctx, userID)
		if err != nil {
			return err
		}
		mu.Lock()
		report.Summary = summary
		mu.Unlock()
		return nil
	})

	section("performance", func(ctx context.Context) error {
		performance, err := s.CalculateTimeBasedPerformance(ctx, userID)
		if err != nil {
			return err
		}
		mu.Lock()
		report.Performance = performance
		mu.Unlock()
		return nil
	})

	// Advanced and risk metrics share one return series; build it once
	// and feed both rather than paying for the valuation walk twice.
	section("statistics", func(ctx context.Context) error {
		series, err := s.DailyReturnSeries(ctx, userID, s.cfg.ReturnWindowDays)
		if err != nil {
			return err
		}
		advanced := AdvancedMetricsFor(series)
		risk := RiskMetricsFor(series)
		mu.Lock()
		report.DailyReturns = series
		report.Advanced = advanced
		report.Risk = risk
		mu.Unlock()
		return nil
	})

	section("benchmarks", func(ctx context.Context) error {
		benchmarks, err := s.CalculateBenchmarkComparisons(ctx, userID)
		if err != nil {
			return err
		}
		mu.Lock()
		report.Benchmarks = benchmarks
		mu.Unlock()
		return nil
	})

	wg.Wait()

	if len(report.Errors) == 0 {
		report.Errors = nil
	}
	return report, nil
}
