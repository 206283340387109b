package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyReturnPoint is one day-over-day simple return.
type DailyReturnPoint struct {
	Date     time.Time       `json:"date"`
	ValueUSD decimal.Decimal `json:"value_usd"`
	Return   float64         `json:"return"`
}

// PeriodPerformance is the portfolio return over one named window
// (1D, 7D, 30D, 90D, 1Y, YTD). PercentReturn is nil when the window's
// starting value is zero.
type PeriodPerformance struct {
	Period         string          `json:"period"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
	StartValue     decimal.Decimal `json:"start_value_usd"`
	EndValue       decimal.Decimal `json:"end_value_usd"`
	AbsoluteReturn decimal.Decimal `json:"absolute_return_usd"`
	PercentReturn  *float64        `json:"percent_return"`
}

// AdvancedMetrics are annualized statistics over the daily return
// series. Nil fields indicate insufficient data rather than zero.
type AdvancedMetrics struct {
	AnnualizedReturn *float64   `json:"annualized_return"`
	Volatility       *float64   `json:"volatility"`
	SharpeRatio      *float64   `json:"sharpe_ratio"`
	MaxDrawdown      *float64   `json:"max_drawdown"`
	MaxDrawdownStart *time.Time `json:"max_drawdown_start,omitempty"`
	MaxDrawdownEnd   *time.Time `json:"max_drawdown_end,omitempty"`
	BestDay          *float64   `json:"best_day"`
	BestDayDate      *time.Time `json:"best_day_date,omitempty"`
	WorstDay         *float64   `json:"worst_day"`
	WorstDayDate     *time.Time `json:"worst_day_date,omitempty"`
	PositiveDays     int        `json:"positive_days"`
	NegativeDays     int        `json:"negative_days"`
	WinRate          *float64   `json:"win_rate"`
	ObservationDays  int        `json:"observation_days"`
}

// RiskMetrics are tail-risk statistics over the daily return series.
type RiskMetrics struct {
	ValueAtRisk95     *float64 `json:"var_95"`
	ValueAtRisk99     *float64 `json:"var_99"`
	ConditionalVaR95  *float64 `json:"cvar_95"`
	DownsideDeviation *float64 `json:"downside_deviation"`
	SortinoRatio      *float64 `json:"sortino_ratio"`
	Beta              *float64 `json:"beta"`
	Correlation       *float64 `json:"correlation"`
	ObservationDays   int      `json:"observation_days"`
}

// BenchmarkComparison contrasts portfolio performance against a single
// reference asset over the same window.
type BenchmarkComparison struct {
	Symbol          string   `json:"symbol"`
	PortfolioReturn *float64 `json:"portfolio_return"`
	BenchmarkReturn *float64 `json:"benchmark_return"`
	ExcessReturn    *float64 `json:"excess_return"`
	Alpha           *float64 `json:"alpha"`
	Outperforming   *bool    `json:"outperforming"`
	WindowDays      int      `json:"window_days"`
}

// PortfolioSummary is the top-level current snapshot of a portfolio.
type PortfolioSummary struct {
	TotalValueUSD     decimal.Decimal `json:"total_value_usd"`
	TotalCostBasisUSD decimal.Decimal `json:"total_cost_basis_usd"`
	UnrealizedPnLUSD  decimal.Decimal `json:"unrealized_pnl_usd"`
	RealizedPnLUSD    decimal.Decimal `json:"realized_pnl_usd"`
	UnrealizedPnLPct  *float64        `json:"unrealized_pnl_pct"`
	HoldingCount      int             `json:"holding_count"`
	PricedHoldings    int             `json:"priced_holdings"`
	Holdings          []Holding       `json:"holdings"`
	AsOf              time.Time       `json:"as_of"`
}

// EnhancedPortfolioMetrics is the full analytics report assembled by
// the metrics aggregator. Sections that fail or lack data are nil.
type EnhancedPortfolioMetrics struct {
	Summary      *PortfolioSummary     `json:"summary,omitempty"`
	Performance  []PeriodPerformance   `json:"performance,omitempty"`
	Advanced     *AdvancedMetrics      `json:"advanced,omitempty"`
	Risk         *RiskMetrics          `json:"risk,omitempty"`
	Benchmarks   []BenchmarkComparison `json:"benchmarks,omitempty"`
	DailyReturns []DailyReturnPoint    `json:"daily_returns,omitempty"`
	Errors       map[string]string     `json:"errors,omitempty"`
	GeneratedAt  time.Time             `json:"generated_at"`
}
