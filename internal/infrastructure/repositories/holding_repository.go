package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cryptofolio/cryptofolio/internal/domain/entities"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrDuplicateHolding is returned when a user already holds the symbol.
var ErrDuplicateHolding = errors.New("holding already exists for symbol")

// HoldingRepository handles holding persistence operations
type HoldingRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewHoldingRepository creates a new holding repository
func NewHoldingRepository(db *sqlx.DB, logger *zap.Logger) *HoldingRepository {
	return &HoldingRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new holding row
func (r *HoldingRepository) Create(ctx context.Context, holding *entities.Holding) error {
	query := `
		INSERT INTO holdings (id, user_id, symbol, name, current_amount, total_cost_basis, realized_pnl, created_at, updated_at)
		VALUES (:id, :user_id, :symbol, :name, :current_amount, :total_cost_basis, :realized_pnl, :created_at, :updated_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, holding)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateHolding
		}
		r.logger.Error("failed to create holding",
			zap.Error(err),
			zap.String("user_id", holding.UserID.String()),
			zap.String("symbol", holding.Symbol),
		)
		return fmt.Errorf("failed to create holding: %w", err)
	}

	r.logger.Info("holding created",
		zap.String("holding_id", holding.ID.String()),
		zap.String("user_id", holding.UserID.String()),
		zap.String("symbol", holding.Symbol),
	)
	return nil
}

// GetByID retrieves a holding by id; (nil, nil) when it does not exist
func (r *HoldingRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Holding, error) {
	query := `SELECT * FROM holdings WHERE id = $1`

	holding := &entities.Holding{}
	if err := r.db.GetContext(ctx, holding, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("failed to get holding",
			zap.Error(err),
			zap.String("holding_id", id.String()),
		)
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}
	return holding, nil
}

// ListByUser retrieves all of a user's holdings ordered by symbol
func (r *HoldingRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Holding, error) {
	query := `SELECT * FROM holdings WHERE user_id = $1 ORDER BY symbol`

	var holdings []*entities.Holding
	if err := r.db.SelectContext(ctx, &holdings, query, userID); err != nil {
		r.logger.Error("failed to list holdings",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	return holdings, nil
}

// UpdateDerivedFields persists the ledger-derived columns after a recompute
func (r *HoldingRepository) UpdateDerivedFields(ctx context.Context, holding *entities.Holding) error {
	query := `
		UPDATE holdings
		SET current_amount = :current_amount,
		    average_cost_basis = :average_cost_basis,
		    total_cost_basis = :total_cost_basis,
		    realized_pnl = :realized_pnl,
		    current_value = :current_value,
		    unrealized_pnl = :unrealized_pnl,
		    updated_at = :updated_at
		WHERE id = :id
	`

	result, err := r.db.NamedExecContext(ctx, query, holding)
	if err != nil {
		r.logger.Error("failed to update holding derived fields",
			zap.Error(err),
			zap.String("holding_id", holding.ID.String()),
		)
		return fmt.Errorf("failed to update holding derived fields: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("holding not found: %s", holding.ID.String())
	}
	return nil
}

// UpdateCurrentPrice persists the market-derived columns after a price refresh
func (r *HoldingRepository) UpdateCurrentPrice(ctx context.Context, holding *entities.Holding) error {
	query := `
		UPDATE holdings
		SET current_price = :current_price,
		    current_value = :current_value,
		    unrealized_pnl = :unrealized_pnl,
		    change_percent = :change_percent,
		    price_updated_at = :price_updated_at,
		    updated_at = :updated_at
		WHERE id = :id
	`

	if _, err := r.db.NamedExecContext(ctx, query, holding); err != nil {
		r.logger.Error("failed to update holding price",
			zap.Error(err),
			zap.String("holding_id", holding.ID.String()),
			zap.String("symbol", holding.Symbol),
		)
		return fmt.Errorf("failed to update holding price: %w", err)
	}
	return nil
}

// ListUserIDs returns the distinct users that have at least one holding
func (r *HoldingRepository) ListUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT DISTINCT user_id FROM holdings`

	var userIDs []uuid.UUID
	if err := r.db.SelectContext(ctx, &userIDs, query); err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}
	return userIDs, nil
}

// Delete removes a holding and, through the schema's cascade, its transactions
func (r *HoldingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM holdings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("holding not found: %s", id.String())
	}
	return nil
}
