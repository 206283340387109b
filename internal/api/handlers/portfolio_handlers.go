package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cryptofolio/cryptofolio/internal/domain/entities"
	"github.com/cryptofolio/cryptofolio/internal/domain/services/portfolio"
	"github.com/cryptofolio/cryptofolio/internal/infrastructure/repositories"
	"github.com/cryptofolio/cryptofolio/pkg/apperrors"
	"github.com/cryptofolio/cryptofolio/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PortfolioHandlers exposes the analytics engine over HTTP
type PortfolioHandlers struct {
	service     *portfolio.Service
	holdingRepo *repositories.HoldingRepository
	txRepo      *repositories.TransactionRepository
	logger      *logger.Logger
}

// NewPortfolioHandlers creates portfolio handlers
func NewPortfolioHandlers(
	service *portfolio.Service,
	holdingRepo *repositories.HoldingRepository,
	txRepo *repositories.TransactionRepository,
	logger *logger.Logger,
) *PortfolioHandlers {
	return &PortfolioHandlers{
		service:     service,
		holdingRepo: holdingRepo,
		txRepo:      txRepo,
		logger:      logger,
	}
}

func parseUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		respondError(c, apperrors.New(apperrors.ErrCodeInvalidInput, "Invalid user id"))
		return uuid.Nil, false
	}
	return userID, true
}

func parseHoldingID(c *gin.Context) (uuid.UUID, bool) {
	holdingID, err := uuid.Parse(c.Param("holdingId"))
	if err != nil {
		respondError(c, apperrors.New(apperrors.ErrCodeInvalidInput, "Invalid holding id"))
		return uuid.Nil, false
	}
	return holdingID, true
}

// GetSummary returns the current portfolio snapshot
// GET /api/v1/users/:userId/portfolio/summary
func (h *PortfolioHandlers) GetSummary(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	summary, err := h.service.GetPortfolioSummary(c.Request.Context(), userID)
	if err != nil {
		h.logger.Errorw("Failed to build portfolio summary", "user_id", userID, "error", err)
		respondError(c, apperrors.New(apperrors.ErrCodeInternal, "Failed to build portfolio summary"))
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetPerformance returns returns over the standard windows
// GET /api/v1/users/:userId/portfolio/performance
func (h *PortfolioHandlers) GetPerformance(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	performance, err := h.service.CalculateTimeBasedPerformance(c.Request.Context(), userID)
	if err != nil {
		h.logger.Errorw("Failed to calculate performance", "user_id", userID, "error", err)
		respondError(c, apperrors.New(apperrors.ErrCodeInternal, "Failed to calculate performance"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"performance": performance})
}

// GetAdvancedMetrics returns annualized performance statistics
// GET /api/v1/users/:userId/portfolio/metrics/advanced
func (h *PortfolioHandlers) GetAdvancedMetrics(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	metrics, err := h.service.CalculateAdvancedMetrics(c.Request.Context(), userID)
	if err != nil {
		h.logger.Errorw("Failed to calculate advanced metrics", "user_id", userID, "error", err)
		respondError(c, apperrors.New(apperrors.ErrCodeInternal, "Failed to calculate advanced metrics"))
		return
	}

	c.JSON(http.StatusOK, metrics)
}

// GetRiskMetrics returns tail-risk statistics
// GET /api/v1/users/:userId/portfolio/metrics/risk
func (h *PortfolioHandlers) GetRiskMetrics(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	metrics, err := h.service.CalculateRiskMetrics(c.Request.Context(), userID)
	if err != nil {
		h.logger.Errorw("Failed to calculate risk metrics", "user_id", userID, "error", err)
		respondError(c, apperrors.New(apperrors.ErrCodeInternal, "Failed to calculate risk metrics"))
		return
	}

	c.JSON(http.StatusOK, metrics)
}

// GetBenchmarks returns benchmark comparisons
// GET /api/v1/users/:userId/portfolio/benchmarks
func (h *PortfolioHandlers) GetBenchmarks(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	benchmarks, err := h.service.CalculateBenchmarkComparisons(c.Request.Context(), userID)
	if err != nil {
		h.logger.Errorw("Failed to calculate benchmarks", "user_id", userID, "error", err)
		respondError(c, apperrors.New(apperrors.ErrCodeInternal, "Failed to calculate benchmarks"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"benchmarks": benchmarks})
}

// GetEnhancedMetrics returns the full aggregated report
// GET /api/v1/users/:userId/portfolio/metrics
func (h *PortfolioHandlers) GetEnhancedMetrics(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	report, err := h.service.GetEnhancedPortfolioMetrics(c.Request.Context(), userID)
	if err != nil {
		h.logger.Errorw("Failed to build portfolio report", "user_id", userID, "error", err)
		respondError(c, apperrors.New(apperrors.ErrCodeInternal, "Failed to build portfolio report"))
		return
	}

	c.JSON(http.StatusOK, report)
}

// RecomputeHolding rebuilds a holding's derived fields from its ledger
// POST /api/v1/holdings/:holdingId/recompute
func (h *PortfolioHandlers) RecomputeHolding(c *gin.Context) {
	holdingID, ok := parseHoldingID(c)
	if !ok {
		return
	}

	if err := h.service.RecomputeHolding(c.Request.Context(), holdingID); err != nil {
		if errors.Is(err, portfolio.ErrHoldingNotFound) {
			respondError(c, apperrors.New(apperrors.ErrCodeHoldingNotFound, "Holding not found"))
			return
		}
		h.logger.Errorw("Failed to recompute holding", "holding_id", holdingID, "error", err)
		respondError(c, apperrors.New(apperrors.ErrCodeInternal, "Failed to recompute holding"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "recomputed"})
}

// CreateHoldingRequest is the payload for creating a holding
type CreateHoldingRequest struct {
	Symbol string `json:"symbol" binding:"required"`
	Name   string `json:"name"`
}

// CreateHolding registers a new asset for a user
// POST /api/v1/users/:userId/holdings
func (h *PortfolioHandlers) CreateHolding(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	var req CreateHoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.New(apperrors.ErrCodeValidation, "Invalid request: "+err.Error()))
		return
	}

	now := time.Now().UTC()
	holding := &entities.Holding{
		ID:        uuid.New(),
		UserID:    userID,
		Symbol:    strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Name:      req.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if holding.Symbol == "" {
		respondError(c, apperrors.New(apperrors.ErrCodeValidation, "Symbol is required"))
		return
	}

	if err := h.holdingRepo.Create(c.Request.Context(), holding); err != nil {
		if errors.Is(err, repositories.ErrDuplicateHolding) {
			respondError(c, apperrors.New(apperrors.ErrCodeDuplicateEntry, "Holding already exists for symbol"))
			return
		}
		h.logger.Errorw("Failed to create holding", "user_id", userID, "error", err)
		respondError(c, apperrors.New(apperrors.ErrCodeInternal, "Failed to create holding"))
		return
	}

	c.JSON(http.StatusCreated, holding)
}

// DeleteHolding removes a holding and its whole ledger
// DELETE /api/v1/holdings/:holdingId
func (h *PortfolioHandlers) DeleteHolding(c *gin.Context) {
	holdingID, ok := parseHoldingID(c)
	if !ok {
		return
	}

	holding, err := h.holdingRepo.GetByID(c.Request.Context(), holdingID)
	if err != nil {
		h.logger.Errorw("Failed to load holding", "holding_id", holdingID, "error", err)
		respondError(c, apperrors.New(apperrors.ErrCodeInternal, "Failed to load holding"))
		return
	}
	if holding == nil {
		respondError(c, apperrors.New(apperrors.ErrCodeHoldingNotFound, "Holding not found"))
		return
	}

	if err := h.holdingRepo.Delete(c.Request.Context(), holdingID); err != nil {
		h.logger.Errorw("Failed to delete holding", "holding_id", holdingID, "error", err)
		respondError(c, apperrors.New(apperrors.ErrCodeInternal, "Failed to delete holding"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// CreateTransactionRequest is the payload for recording a transaction
type CreateTransactionRequest struct {
	Type            string     `json:"type" binding:"required"`
	Amount          string     `json:"amount" binding:"required"`
	PricePerUnit    *string    `json:"price_per_unit"`
	TotalValue      *string    `json:"total_value"`
	Fee             *string    `json:"fee"`
	Exchange        *string    `json:"exchange"`
	TxHash          *string    `json:"tx_hash"`
	Notes           *string    `json:"notes"`
	TransactionDate *time.Time `json:"transaction_date"`
}

// CreateTransaction appends a ledger entry and recomputes the holding
// POST /api/v1/holdings/:holdingId/transactions
func (h *PortfolioHandlers) CreateTransaction(c *gin.Context) {
	holdingID, ok := parseHoldingID(c)
	if !ok {
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.New(apperrors.ErrCodeValidation, "Invalid request: "+err.Error()))
		return
	}

	txType := entities.TransactionType(strings.ToUpper(req.Type))
	if !txType.Valid() {
		respondError(c, apperrors.New(apperrors.ErrCodeValidation, "Unknown transaction type"))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		respondError(c, apperrors.New(apperrors.ErrCodeValidation, "Amount must be a non-negative number"))
		return
	}

	now := time.Now().UTC()
	txDate := now
	if req.TransactionDate != nil {
		txDate = req.TransactionDate.UTC()
	}
	if txDate.After(now) {
		respondError(c, apperrors.New(apperrors.ErrCodeValidation, "Transaction date must not be in the future"))
		return
	}

	tx := &entities.Transaction{
		ID:              uuid.New(),
		HoldingID:       holdingID,
		Type:            txType,
		Amount:          amount,
		Exchange:        req.Exchange,
		TxHash:          req.TxHash,
		Notes:           req.Notes,
		TransactionDate: txDate,
		CreatedAt:       now,
	}
	if tx.PricePerUnit, err = parseOptionalDecimal(req.PricePerUnit); err != nil {
		respondError(c, apperrors.New(apperrors.ErrCodeValidation, "Invalid price_per_unit"))
		return
	}
	if tx.TotalValue, err = parseOptionalDecimal(req.TotalValue); err != nil {
		respondError(c, apperrors.New(apperrors.ErrCodeValidation, "Invalid total_value"))
		return
	}
	if tx.Fee, err = parseOptionalDecimal(req.Fee); err != nil {
		respondError(c, apperrors.New(apperrors.ErrCodeValidation, "Invalid fee"))
		return
	}

	holding, err := h.holdingRepo.GetByID(c.Request.Context(), holdingID)
	if err != nil {
		h.logger.Errorw("Failed to load holding", "holding_id", holdingID, "error", err)
		respondError(c, apperrors.New(apperrors.ErrCodeInternal, "Failed to load holding"))
		return
	}
	if holding == nil {
		respondError(c, apperrors.New(apperrors.ErrCodeHoldingNotFound, "Holding not found"))
		return
	}

	if err := h.txRepo.Create(c.Request.Context(), tx); err != nil {
		h.logger.Errorw("Failed to record transaction", "holding_id", holdingID, "error", err)
		respondError(c, apperrors.New(apperrors.ErrCodeInternal, "Failed to record transaction"))
		return
	}

	if err := h.service.RecomputeHolding(c.Request.Context(), holdingID); err != nil {
		h.logger.Errorw("Failed to recompute after transaction", "holding_id", holdingID, "error", err)
		respondError(c, apperrors.New(apperrors.ErrCodeInternal, "Transaction recorded but recompute failed"))
		return
	}

	c.JSON(http.StatusCreated, tx)
}

// DeleteTransaction removes a ledger entry and recomputes the holding
// DELETE /api/v1/holdings/:holdingId/transactions/:transactionId
func (h *PortfolioHandlers) DeleteTransaction(c *gin.Context) {
	holdingID, ok := parseHoldingID(c)
	if !ok {
		return
	}
	txID, err := uuid.Parse(c.Param("transactionId"))
	if err != nil {
		respondError(c, apperrors.New(apperrors.ErrCodeInvalidInput, "Invalid transaction id"))
		return
	}

	if err := h.txRepo.Delete(c.Request.Context(), txID); err != nil {
		respondError(c, apperrors.New(apperrors.ErrCodeInvalidInput, "Transaction not found"))
		return
	}

	if err := h.service.RecomputeHolding(c.Request.Context(), holdingID); err != nil {
		h.logger.Errorw("Failed to recompute after delete", "holding_id", holdingID, "error", err)
		respondError(c, apperrors.New(apperrors.ErrCodeInternal, "Transaction deleted but recompute failed"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ListTransactions returns a holding's ledger ordered by date
// GET /api/v1/holdings/:holdingId/transactions
func (h *PortfolioHandlers) ListTransactions(c *gin.Context) {
	holdingID, ok := parseHoldingID(c)
	if !ok {
		return
	}

	txs, err := h.txRepo.ListByHolding(c.Request.Context(), holdingID)
	if err != nil {
		h.logger.Errorw("Failed to list transactions", "holding_id", holdingID, "error", err)
		respondError(c, apperrors.New(apperrors.ErrCodeInternal, "Failed to list transactions"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func parseOptionalDecimal(raw *string) (decimal.NullDecimal, error) {
	if raw == nil || *raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*raw)
	if err != nil || d.IsNegative() {
		if err == nil {
			err = errors.New("negative value")
		}
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
