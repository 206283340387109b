package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/cryptofolio/cryptofolio/internal/domain/entities"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// TransactionRepository handles ledger persistence operations
type TransactionRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sqlx.DB, logger *zap.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a transaction to the ledger
func (r *TransactionRepository) Create(ctx context.Context, tx *entities.Transaction) error {
	query := `
		INSERT INTO transactions (id, holding_id, type, amount, price_per_unit, total_value, fee, exchange, tx_hash, notes, transaction_date, created_at)
		VALUES (:id, :holding_id, :type, :amount, :price_per_unit, :total_value, :fee, :exchange, :tx_hash, :notes, :transaction_date, :created_at)
	`

	if _, err := r.db.NamedExecContext(ctx, query, tx); err != nil {
		r.logger.Error("failed to create transaction",
			zap.Error(err),
			zap.String("holding_id", tx.HoldingID.String()),
			zap.String("type", string(tx.Type)),
		)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	r.logger.Info("transaction recorded",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("holding_id", tx.HoldingID.String()),
		zap.String("type", string(tx.Type)),
		zap.String("amount", tx.Amount.String()),
	)
	return nil
}

// ListByHolding returns a holding's transactions ordered by date ascending
func (r *TransactionRepository) ListByHolding(ctx context.Context, holdingID uuid.UUID) ([]*entities.Transaction, error) {
	query := `
		SELECT t.*, h.symbol
		FROM transactions t
		JOIN holdings h ON h.id = t.holding_id
		WHERE t.holding_id = $1
		ORDER BY t.transaction_date ASC, t.created_at ASC
	`

	var txs []*entities.Transaction
	if err := r.db.SelectContext(ctx, &txs, query, holdingID); err != nil {
		r.logger.Error("failed to list transactions",
			zap.Error(err),
			zap.String("holding_id", holdingID.String()),
		)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// ListByUserBefore returns all of a user's transactions dated at or
// before cutoff, ordered by date ascending, with the owning holding's
// symbol attached
func (r *TransactionRepository) ListByUserBefore(ctx context.Context, userID uuid.UUID, cutoff time.Time) ([]*entities.Transaction, error) {
	query := `
		SELECT t.*, h.symbol
		FROM transactions t
		JOIN holdings h ON h.id = t.holding_id
		WHERE h.user_id = $1 AND t.transaction_date <= $2
		ORDER BY t.transaction_date ASC, t.created_at ASC
	`

	var txs []*entities.Transaction
	if err := r.db.SelectContext(ctx, &txs, query, userID, cutoff); err != nil {
		r.logger.Error("failed to list user transactions",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return nil, fmt.Errorf("failed to list user transactions: %w", err)
	}
	return txs, nil
}

// Delete removes a transaction; the caller is responsible for
// recomputing the owning holding afterwards
func (r *TransactionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("transaction not found: %s", id.String())
	}
	return nil
}
