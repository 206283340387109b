package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cryptofolio/cryptofolio/internal/domain/entities"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCompareBenchmarks_OracleFailureNilsOneComparison(t *testing.T) {
	service, _, txRepo, oracle := createTestService()

	ctx := context.Background()
	userID := uuid.New()

	txs := []*entities.Transaction{
		buyTx("BTC", 1, 40000, time.Now().UTC().AddDate(0, 0, -60)),
	}
	txRepo.On("ListByUserBefore", mock.Anything, userID, mock.Anything).Return(txs, nil)

	btcPrice := decimal.NewFromInt(50000)
	oracle.On("HistoricalPrice", mock.Anything, "BTC", mock.Anything).Return(&btcPrice, nil)
	oracle.On("HistoricalPrice", mock.Anything, "ETH", mock.Anything).
		Return(nil, errors.New("upstream down"))

	comparisons, err := service.CompareBenchmarks(ctx, userID, []string{"BTC", "ETH"}, 30)
	require.NoError(t, err)
	require.Len(t, comparisons, 2)

	btc, eth := comparisons[0], comparisons[1]
	require.Equal(t, "BTC", btc.Symbol)
	require.Equal(t, "ETH", eth.Symbol)

	// The healthy benchmark is fully populated. The BTC price is flat
	// across the window, so both returns and the excess are zero.
	require.NotNil(t, btc.PortfolioReturn)
	require.NotNil(t, btc.BenchmarkReturn)
	assert.InDelta(t, 0.0, *btc.BenchmarkReturn, 1e-9)
	require.NotNil(t, btc.ExcessReturn)
	assert.InDelta(t, 0.0, *btc.ExcessReturn, 1e-9)
	require.NotNil(t, btc.Outperforming)
	assert.False(t, *btc.Outperforming)

	// The failed benchmark nils only its own comparison; the portfolio
	// return computed once for the window survives on it.
	assert.Nil(t, eth.BenchmarkReturn)
	assert.Nil(t, eth.ExcessReturn)
	assert.Nil(t, eth.Alpha)
	assert.Nil(t, eth.Outperforming)
	require.NotNil(t, eth.PortfolioReturn)
}

func TestCompareBenchmarks_EachLookupTimedOutSeparately(t *testing.T) {
	service, _, txRepo, oracle := createTestService()
	service.cfg.OracleTimeout = 60 * time.Millisecond

	ctx := context.Background()
	userID := uuid.New()

	// Empty ledger: the oracle is only consulted for the benchmark, so
	// the lookups below are exactly the start and end price calls.
	txRepo.On("ListByUserBefore", mock.Anything, userID, mock.Anything).
		Return([]*entities.Transaction{}, nil)

	cutoff := time.Now().UTC().AddDate(0, 0, -1)
	price := decimal.NewFromInt(100)

	// The start lookup burns most of its budget.
	oracle.On("HistoricalPrice", mock.Anything, "BTC",
		mock.MatchedBy(func(d time.Time) bool { return d.Before(cutoff) })).
		Run(func(mock.Arguments) { time.Sleep(50 * time.Millisecond) }).
		Return(&price, nil)

	var endRemaining time.Duration
	oracle.On("HistoricalPrice", mock.Anything, "BTC",
		mock.MatchedBy(func(d time.Time) bool { return !d.Before(cutoff) })).
		Run(func(args mock.Arguments) {
			lookupCtx := args.Get(0).(context.Context)
			if deadline, ok := lookupCtx.Deadline(); ok {
				endRemaining = time.Until(deadline)
			}
		}).
		Return(&price, nil)

	comparisons, err := service.CompareBenchmarks(ctx, userID, []string{"BTC"}, 30)
	require.NoError(t, err)
	require.Len(t, comparisons, 1)
	require.NotNil(t, comparisons[0].BenchmarkReturn)

	// The end lookup got a fresh budget instead of the start lookup's
	// leftovers.
	assert.Greater(t, endRemaining, 30*time.Millisecond)
}
