package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/cryptofolio/cryptofolio/internal/domain/entities"
	"github.com/google/uuid"
)

// DailyReturnSeries reconstructs one end-of-day portfolio value per
// calendar day across [now-windowDays, now] and derives the
// day-over-day simple return for each point. The first point's return
// is always zero (no prior baseline), as is any day following a
// zero-valued day. The series is recomputed from scratch on every
// call; callers needing it repeatedly should cache it themselves.
func (s *Service) DailyReturnSeries(ctx context.Context, userID uuid.UUID, windowDays int) ([]entities.DailyReturnPoint, error) {
	if windowDays <= 0 {
		windowDays = s.cfg.ReturnWindowDays
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	windowEnd := today.Add(24*time.Hour - time.Second)

	// An empty ledger yields an empty series, which the downstream
	// calculators report as all-nil statistics.
	txs, err := s.txRepo.ListByUserBefore(ctx, userID, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	if len(txs) == 0 {
		return []entities.DailyReturnPoint{}, nil
	}

	points := make([]entities.DailyReturnPoint, 0, windowDays+1)

	for i := windowDays; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		endOfDay := day.Add(24*time.Hour - time.Second)

		value, err := s.ValueAt(ctx, userID, endOfDay)
		if err != nil {
			return nil, fmt.Errorf("failed to value portfolio on %s: %w", day.Format("2006-01-02"), err)
		}

		point := entities.DailyReturnPoint{Date: day, ValueUSD: value}
		if n := len(points); n > 0 {
			prev := points[n-1].ValueUSD
			if prev.IsPositive() {
				point.Return, _ = value.Sub(prev).Div(prev).Mul(hundred).Float64()
			}
		}
		points = append(points, point)
	}

	return points, nil
}
