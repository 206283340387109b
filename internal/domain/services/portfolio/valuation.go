package portfolio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ValueAt reconstructs the USD value of a user's whole portfolio at the
// end of the given date by replaying the ledger up to that point and
// pricing each resulting position with the oracle's historical price.
// A miss, error, or timeout on one symbol degrades that symbol to its
// reconstructed cost basis; the other symbols are unaffected.
func (s *Service) ValueAt(ctx context.Context, userID uuid.UUID, date time.Time) (decimal.Decimal, error) {
	txs, err := s.txRepo.ListByUserBefore(ctx, userID, date)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list transactions: %w", err)
	}

	positions := make(map[string]*position)
	for _, tx := range txs {
		pos, ok := positions[tx.Symbol]
		if !ok {
			pos = &position{}
			positions[tx.Symbol] = pos
		}
		pos.apply(tx)
	}

	var (
		mu    sync.Mutex
		total decimal.Decimal
		wg    sync.WaitGroup
		sem   = make(chan struct{}, s.cfg.LookupConcurrency)
	)

	for symbol, pos := range positions {
		if !pos.amount.IsPositive() {
			if pos.amount.IsNegative() {
				s.logger.Warnw("Negative reconstructed amount at valuation date",
					"user_id", userID,
					"symbol", symbol,
					"date", date.Format("2006-01-02"),
					"amount", pos.amount.String())
			}
			continue
		}

		wg.Add(1)
		go func(symbol string, pos *position) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			contribution := s.priceContribution(ctx, symbol, pos, date)

			mu.Lock()
			total = total.Add(contribution)
			mu.Unlock()
		}(symbol, pos)
	}
	wg.Wait()

	return total, nil
}

// priceContribution values one position at the historical price,
// falling back to the reconstructed cost basis when the oracle cannot
// serve the lookup.
func (s *Service) priceContribution(ctx context.Context, symbol string, pos *position, date time.Time) decimal.Decimal {
	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.OracleTimeout)
	defer cancel()

	price, err := s.oracle.HistoricalPrice(lookupCtx, symbol, date)
	if err != nil {
		s.logger.Debugw("Historical price lookup failed, using cost basis",
			"symbol", symbol,
			"date", date.Format("2006-01-02"),
			"error", err)
		return pos.costBasis
	}
	if price == nil {
		s.logger.Debugw("No historical price, using cost basis",
			"symbol", symbol,
			"date", date.Format("2006-01-02"))
		return pos.costBasis
	}
	return pos.amount.Mul(*price)
}
