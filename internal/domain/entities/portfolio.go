package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies how a transaction affects a position.
type TransactionType string

const (
	TransactionTypeBuy         TransactionType = "BUY"
	TransactionTypeSell        TransactionType = "SELL"
	TransactionTypeTransferIn  TransactionType = "TRANSFER_IN"
	TransactionTypeTransferOut TransactionType = "TRANSFER_OUT"
	TransactionTypeStake       TransactionType = "STAKE"
	TransactionTypeUnstake     TransactionType = "UNSTAKE"
	TransactionTypeReward      TransactionType = "REWARD"
	TransactionTypeAirdrop     TransactionType = "AIRDROP"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeBuy, TransactionTypeSell,
		TransactionTypeTransferIn, TransactionTypeTransferOut,
		TransactionTypeStake, TransactionTypeUnstake,
		TransactionTypeReward, TransactionTypeAirdrop:
		return true
	}
	return false
}

// IsInflow reports whether t adds units to a position at cost.
func (t TransactionType) IsInflow() bool {
	switch t {
	case TransactionTypeBuy, TransactionTypeTransferIn,
		TransactionTypeReward, TransactionTypeAirdrop:
		return true
	}
	return false
}

// IsOutflow reports whether t removes units from a position.
func (t TransactionType) IsOutflow() bool {
	return t == TransactionTypeSell || t == TransactionTypeTransferOut
}

// Holding is one user's position in a single asset. The amount, cost
// basis and P&L columns are derived from the transaction ledger and
// rewritten after every ledger mutation; the price columns are filled
// by the price refresher. Null columns mean "never computed", never
// zero.
type Holding struct {
	ID               uuid.UUID           `json:"id" db:"id"`
	UserID           uuid.UUID           `json:"user_id" db:"user_id"`
	Symbol           string              `json:"symbol" db:"symbol"`
	Name             string              `json:"name" db:"name"`
	CurrentAmount    decimal.Decimal     `json:"current_amount" db:"current_amount"`
	AverageCostBasis decimal.NullDecimal `json:"average_cost_basis" db:"average_cost_basis"`
	TotalCostBasis   decimal.Decimal     `json:"total_cost_basis" db:"total_cost_basis"`
	RealizedPnL      decimal.Decimal     `json:"realized_pnl" db:"realized_pnl"`
	CurrentPrice     decimal.NullDecimal `json:"current_price" db:"current_price"`
	CurrentValue     decimal.NullDecimal `json:"current_value" db:"current_value"`
	UnrealizedPnL    decimal.NullDecimal `json:"unrealized_pnl" db:"unrealized_pnl"`
	ChangePercent    decimal.NullDecimal `json:"change_percent" db:"change_percent"`
	PriceUpdatedAt   *time.Time          `json:"price_updated_at" db:"price_updated_at"`
	CreatedAt        time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at" db:"updated_at"`
}

// Transaction is one immutable ledger entry against a holding. Symbol
// is denormalized from the owning holding on read.
type Transaction struct {
	ID              uuid.UUID           `json:"id" db:"id"`
	HoldingID       uuid.UUID           `json:"holding_id" db:"holding_id"`
	Symbol          string              `json:"symbol" db:"symbol"`
	Type            TransactionType     `json:"type" db:"type"`
	Amount          decimal.Decimal     `json:"amount" db:"amount"`
	PricePerUnit    decimal.NullDecimal `json:"price_per_unit" db:"price_per_unit"`
	TotalValue      decimal.NullDecimal `json:"total_value" db:"total_value"`
	Fee             decimal.NullDecimal `json:"fee" db:"fee"`
	Exchange        *string             `json:"exchange,omitempty" db:"exchange"`
	TxHash          *string             `json:"tx_hash,omitempty" db:"tx_hash"`
	Notes           *string             `json:"notes,omitempty" db:"notes"`
	TransactionDate time.Time           `json:"transaction_date" db:"transaction_date"`
	CreatedAt       time.Time           `json:"created_at" db:"created_at"`
}

// EffectiveValue returns the transaction's USD value: the recorded
// total value when present, else amount x price-per-unit, else zero.
func (t *Transaction) EffectiveValue() decimal.Decimal {
	if t.TotalValue.Valid {
		return t.TotalValue.Decimal
	}
	if t.PricePerUnit.Valid {
		return t.Amount.Mul(t.PricePerUnit.Decimal)
	}
	return decimal.Zero
}

// PriceQuote is a point-in-time market price for one asset.
type PriceQuote struct {
	Symbol       string          `json:"symbol"`
	PriceUSD     decimal.Decimal `json:"price_usd"`
	Change24hPct *float64        `json:"change_24h_pct,omitempty"`
	FetchedAt    time.Time       `json:"fetched_at"`
}
