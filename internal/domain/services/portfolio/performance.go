package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/cryptofolio/cryptofolio/internal/domain/entities"
	"github.com/google/uuid"
)

// performancePeriod is one named trailing window. Days == 0 means
// year-to-date (anchored at Jan 1 instead of a fixed offset).
type performancePeriod struct {
	name string
	days int
}

var performancePeriods = []performancePeriod{
	{"1D", 1},
	{"7D", 7},
	{"30D", 30},
	{"90D", 90},
	{"1Y", 365},
	{"YTD", 0},
}

// CalculateTimeBasedPerformance values the portfolio at the start and
// end of each standard window (1D, 7D, 30D, 90D, 1Y, YTD) and reports
// absolute and percentage returns. The percentage is nil when the
// window's starting value is zero.
func (s *Service) CalculateTimeBasedPerformance(ctx context.Context, userID uuid.UUID) ([]entities.PeriodPerformance, error) {
	now := time.Now().UTC()

	endValue, err := s.ValueAt(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to value portfolio now: %w", err)
	}

	results := make([]entities.PeriodPerformance, 0, len(performancePeriods))
	for _, period := range performancePeriods {
		var start time.Time
		if period.days == 0 {
			start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		} else {
			start = now.AddDate(0, 0, -period.days)
		}

		startValue, err := s.ValueAt(ctx, userID, start)
		if err != nil {
			return nil, fmt.Errorf("failed to value portfolio for %s window: %w", period.name, err)
		}

		perf := entities.PeriodPerformance{
			Period:         period.name,
			StartDate:      start,
			EndDate:        now,
			StartValue:     startValue,
			EndValue:       endValue,
			AbsoluteReturn: endValue.Sub(startValue),
		}
		if startValue.IsPositive() {
			pct, _ := endValue.Sub(startValue).Div(startValue).Mul(hundred).Float64()
			perf.PercentReturn = &pct
		}
		results = append(results, perf)
	}

	return results, nil
}
