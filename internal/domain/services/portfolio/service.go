package portfolio

import (
	"context"
	"errors"
	"time"

	"github.com/cryptofolio/cryptofolio/internal/domain/entities"
	"github.com/cryptofolio/cryptofolio/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

var (
	// ErrHoldingNotFound is returned when a holding id resolves to nothing.
	ErrHoldingNotFound = errors.New("holding not found")
	// ErrPriceUnavailable is returned by oracle implementations when the
	// upstream price service cannot serve a lookup right now.
	ErrPriceUnavailable = errors.New("price unavailable")
)

// Service is the portfolio analytics engine: cost-basis reconstruction,
// point-in-time valuation, return series and the derived statistics.
// It reads the ledger, consults the price oracle, and writes back only
// the holdings' derived columns.
type Service struct {
	holdingRepo HoldingRepository
	txRepo      TransactionRepository
	oracle      PriceOracle
	cfg         Config
	logger      *logger.Logger
}

// Config bounds the engine's lookup fan-out and default windows.
type Config struct {
	// LookupConcurrency caps concurrent historical-price lookups within
	// one valuation call.
	LookupConcurrency int
	// ReturnWindowDays is the trailing window for the daily return
	// series backing advanced/risk metrics.
	ReturnWindowDays int
	// BenchmarkSymbols are the reference assets for comparisons.
	BenchmarkSymbols []string
	// OracleTimeout bounds each individual price lookup.
	OracleTimeout time.Duration
}

// HoldingRepository interface for holding persistence
type HoldingRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Holding, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Holding, error)
	UpdateDerivedFields(ctx context.Context, holding *entities.Holding) error
	UpdateCurrentPrice(ctx context.Context, holding *entities.Holding) error
	ListUserIDs(ctx context.Context) ([]uuid.UUID, error)
}

// TransactionRepository interface for ledger reads
type TransactionRepository interface {
	// ListByHolding returns the holding's transactions ordered by
	// transaction date ascending.
	ListByHolding(ctx context.Context, holdingID uuid.UUID) ([]*entities.Transaction, error)
	// ListByUserBefore returns all of the user's transactions dated at
	// or before cutoff, ordered by transaction date ascending, with
	// Symbol populated from the owning holding.
	ListByUserBefore(ctx context.Context, userID uuid.UUID, cutoff time.Time) ([]*entities.Transaction, error)
}

// PriceOracle interface for market price lookups. A (nil, nil) return
// is a miss; rate limiting and caching are the implementation's
// concern and are treated as normal here.
type PriceOracle interface {
	CurrentPrice(ctx context.Context, symbol string) (*entities.PriceQuote, error)
	CurrentPrices(ctx context.Context, symbols []string) (map[string]*entities.PriceQuote, error)
	HistoricalPrice(ctx context.Context, symbol string, date time.Time) (*decimal.Decimal, error)
}

// NewService creates the analytics engine.
func NewService(
	holdingRepo HoldingRepository,
	txRepo TransactionRepository,
	oracle PriceOracle,
	cfg Config,
	logger *logger.Logger,
) *Service {
	if cfg.LookupConcurrency <= 0 {
		cfg.LookupConcurrency = 5
	}
	if cfg.ReturnWindowDays <= 0 {
		cfg.ReturnWindowDays = 30
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = 10 * time.Second
	}
	return &Service{
		holdingRepo: holdingRepo,
		txRepo:      txRepo,
		oracle:      oracle,
		cfg:         cfg,
		logger:      logger,
	}
}

// GetPortfolioSummary aggregates the persisted holding rows into the
// current snapshot. It never consults the oracle, so it stays cheap and
// is the one section of the report expected to always succeed.
func (s *Service) GetPortfolioSummary(ctx context.Context, userID uuid.UUID) (*entities.PortfolioSummary, error) {
	holdings, err := s.holdingRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &entities.PortfolioSummary{
		Holdings: make([]entities.Holding, 0, len(holdings)),
		AsOf:     time.Now().UTC(),
	}

	for _, h := range holdings {
		summary.HoldingCount++
		summary.TotalCostBasisUSD = summary.TotalCostBasisUSD.Add(h.TotalCostBasis)
		summary.RealizedPnLUSD = summary.RealizedPnLUSD.Add(h.RealizedPnL)

		if h.CurrentValue.Valid {
			summary.PricedHoldings++
			summary.TotalValueUSD = summary.TotalValueUSD.Add(h.CurrentValue.Decimal)
			summary.UnrealizedPnLUSD = summary.UnrealizedPnLUSD.Add(h.CurrentValue.Decimal.Sub(h.TotalCostBasis))
		} else if h.CurrentAmount.IsPositive() {
			// No market price yet: carry the position at cost so the
			// total is conservative rather than understated.
			summary.TotalValueUSD = summary.TotalValueUSD.Add(h.TotalCostBasis)
		}

		summary.Holdings = append(summary.Holdings, *h)
	}

	if summary.TotalCostBasisUSD.IsPositive() {
		pct, _ := summary.UnrealizedPnLUSD.
			Div(summary.TotalCostBasisUSD).
			Mul(hundred).
			Float64()
		summary.UnrealizedPnLPct = &pct
	}

	return summary, nil
}
