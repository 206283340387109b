package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/cryptofolio/cryptofolio/internal/domain/entities"
	"github.com/cryptofolio/cryptofolio/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// position is the running state of a single asset's ledger replay.
type position struct {
	amount      decimal.Decimal
	costBasis   decimal.Decimal
	realizedPnL decimal.Decimal
}

// apply folds one transaction into the position. Inflows add units at
// cost; a SELL realizes P&L against the average cost of the units held
// before the sale; a TRANSFER_OUT removes units without realizing
// anything (no sale price is known); STAKE/UNSTAKE leave the position
// untouched. An oversell is applied as-is and may drive the amount
// negative; callers log it as a data-quality warning.
func (p *position) apply(tx *entities.Transaction) {
	switch tx.Type {
	case entities.TransactionTypeBuy,
		entities.TransactionTypeTransferIn,
		entities.TransactionTypeReward,
		entities.TransactionTypeAirdrop:
		p.amount = p.amount.Add(tx.Amount)
		p.costBasis = p.costBasis.Add(tx.EffectiveValue())

	case entities.TransactionTypeSell:
		if p.amount.IsPositive() {
			avgCost := p.costBasis.Div(p.amount)
			costOfSold := avgCost.Mul(tx.Amount)
			p.realizedPnL = p.realizedPnL.Add(tx.EffectiveValue().Sub(costOfSold))
			p.costBasis = p.costBasis.Sub(costOfSold)
		}
		p.amount = p.amount.Sub(tx.Amount)

	case entities.TransactionTypeTransferOut:
		p.amount = p.amount.Sub(tx.Amount)

	case entities.TransactionTypeStake, entities.TransactionTypeUnstake:
		// Locked/unlocked state does not change ownership.
	}
}

// replay folds an already date-ordered transaction list into a position.
func replay(txs []*entities.Transaction) position {
	var p position
	for _, tx := range txs {
		p.apply(tx)
	}
	return p
}

// RecomputeHolding rebuilds a holding's derived columns (amount,
// average/total cost basis, realized P&L) from its full ledger and
// persists them. Called after every transaction mutation; running it
// twice without an intervening ledger change is a no-op.
func (s *Service) RecomputeHolding(ctx context.Context, holdingID uuid.UUID) error {
	holding, err := s.holdingRepo.GetByID(ctx, holdingID)
	if err != nil {
		metrics.HoldingRecomputesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to load holding: %w", err)
	}
	if holding == nil {
		metrics.HoldingRecomputesTotal.WithLabelValues("error").Inc()
		return ErrHoldingNotFound
	}

	txs, err := s.txRepo.ListByHolding(ctx, holdingID)
	if err != nil {
		metrics.HoldingRecomputesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to list transactions: %w", err)
	}

	pos := replay(txs)
	if pos.amount.IsNegative() {
		s.logger.Warnw("Holding ledger oversells tracked amount",
			"holding_id", holdingID,
			"symbol", holding.Symbol,
			"amount", pos.amount.String())
	}

	holding.CurrentAmount = pos.amount
	holding.TotalCostBasis = pos.costBasis
	holding.RealizedPnL = pos.realizedPnL
	if pos.amount.IsPositive() {
		holding.AverageCostBasis = decimal.NewNullDecimal(pos.costBasis.Div(pos.amount))
	} else {
		holding.AverageCostBasis = decimal.NullDecimal{}
	}

	// Keep the market-derived columns consistent with the new amount
	// when a price is already on file.
	if holding.CurrentPrice.Valid {
		value := pos.amount.Mul(holding.CurrentPrice.Decimal)
		holding.CurrentValue = decimal.NewNullDecimal(value)
		holding.UnrealizedPnL = decimal.NewNullDecimal(value.Sub(pos.costBasis))
	}
	holding.UpdatedAt = time.Now().UTC()

	if err := s.holdingRepo.UpdateDerivedFields(ctx, holding); err != nil {
		metrics.HoldingRecomputesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to persist derived fields: %w", err)
	}

	metrics.HoldingRecomputesTotal.WithLabelValues("ok").Inc()
	s.logger.Debugw("Recomputed holding",
		"holding_id", holdingID,
		"symbol", holding.Symbol,
		"amount", pos.amount.String(),
		"cost_basis", pos.costBasis.String(),
		"realized_pnl", pos.realizedPnL.String())
	return nil
}
