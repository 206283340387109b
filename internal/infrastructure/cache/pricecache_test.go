package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cryptofolio/cryptofolio/internal/domain/entities"
	"github.com/cryptofolio/cryptofolio/pkg/logger"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*PriceCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewPriceCache(client, time.Minute, 24*time.Hour, logger.New("debug", "test")), mr
}

func TestPriceCache_CurrentRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	change := -2.5
	quote := &entities.PriceQuote{
		Symbol:       "BTC",
		PriceUSD:     decimal.NewFromFloat(45123.45),
		Change24hPct: &change,
		FetchedAt:    time.Now().UTC().Truncate(time.Second),
	}

	_, ok := c.GetCurrent(ctx, "BTC")
	assert.False(t, ok)

	c.SetCurrent(ctx, quote)

	got, ok := c.GetCurrent(ctx, "BTC")
	require.True(t, ok)
	assert.Equal(t, "BTC", got.Symbol)
	assert.True(t, got.PriceUSD.Equal(quote.PriceUSD))
	require.NotNil(t, got.Change24hPct)
	assert.Equal(t, change, *got.Change24hPct)
}

func TestPriceCache_CurrentExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.SetCurrent(ctx, &entities.PriceQuote{
		Symbol:   "ETH",
		PriceUSD: decimal.NewFromInt(3000),
	})

	mr.FastForward(2 * time.Minute)

	_, ok := c.GetCurrent(ctx, "ETH")
	assert.False(t, ok)
}

func TestPriceCache_HistoricalRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	_, ok := c.GetHistorical(ctx, "BTC", date)
	assert.False(t, ok)

	c.SetHistorical(ctx, "BTC", date, decimal.NewFromFloat(67890.12))

	got, ok := c.GetHistorical(ctx, "BTC", date)
	require.True(t, ok)
	assert.True(t, got.Equal(decimal.NewFromFloat(67890.12)))

	// Another date is a separate entry.
	_, ok = c.GetHistorical(ctx, "BTC", date.AddDate(0, 0, 1))
	assert.False(t, ok)
}

func TestPriceCache_CorruptEntryDropped(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("price:current:BTC", "not json"))

	_, ok := c.GetCurrent(ctx, "BTC")
	assert.False(t, ok)
	assert.False(t, mr.Exists("price:current:BTC"))
}
