package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RefreshUserPrices fetches current quotes for every symbol the user
// holds and rewrites the market-derived columns (price, value,
// unrealized P&L, 24h change). Symbols the oracle cannot quote keep
// their previous values.
func (s *Service) RefreshUserPrices(ctx context.Context, userID uuid.UUID) error {
	holdings, err := s.holdingRepo.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list holdings: %w", err)
	}
	if len(holdings) == 0 {
		return nil
	}

	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.OracleTimeout)
	quotes, err := s.oracle.CurrentPrices(lookupCtx, symbols)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to fetch current prices: %w", err)
	}

	now := time.Now().UTC()
	var failed int
	for _, h := range holdings {
		quote, ok := quotes[h.Symbol]
		if !ok || quote == nil {
			s.logger.Debugw("No current quote for held symbol",
				"user_id", userID, "symbol", h.Symbol)
			continue
		}

		value := h.CurrentAmount.Mul(quote.PriceUSD)
		h.CurrentPrice = decimal.NewNullDecimal(quote.PriceUSD)
		h.CurrentValue = decimal.NewNullDecimal(value)
		h.UnrealizedPnL = decimal.NewNullDecimal(value.Sub(h.TotalCostBasis))
		if quote.Change24hPct != nil {
			h.ChangePercent = decimal.NewNullDecimal(decimal.NewFromFloat(*quote.Change24hPct))
		}
		h.PriceUpdatedAt = &now
		h.UpdatedAt = now

		if err := s.holdingRepo.UpdateCurrentPrice(ctx, h); err != nil {
			s.logger.Errorw("Failed to persist refreshed price",
				"user_id", userID, "symbol", h.Symbol, "error", err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("failed to persist prices for %d of %d holdings", failed, len(holdings))
	}
	return nil
}

// ListUsersWithHoldings exposes the set of users the refresher worker
// iterates over.
func (s *Service) ListUsersWithHoldings(ctx context.Context) ([]uuid.UUID, error) {
	return s.holdingRepo.ListUserIDs(ctx)
}
