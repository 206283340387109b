package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cryptofolio/cryptofolio/internal/domain/entities"
	"github.com/cryptofolio/cryptofolio/pkg/logger"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// PriceCache is a redis-backed cache in front of the price oracle.
// Current quotes are short-lived; historical prices never change, so
// they get a long TTL. Cache failures are logged and treated as
// misses, never surfaced to callers.
type PriceCache struct {
	client        redis.UniversalClient
	currentTTL    time.Duration
	historicalTTL time.Duration
	logger        *logger.Logger
}

// NewPriceCache creates a price cache with per-kind TTLs.
func NewPriceCache(client redis.UniversalClient, currentTTL, historicalTTL time.Duration, log *logger.Logger) *PriceCache {
	if currentTTL <= 0 {
		currentTTL = time.Minute
	}
	if historicalTTL <= 0 {
		historicalTTL = 24 * time.Hour
	}
	return &PriceCache{
		client:        client,
		currentTTL:    currentTTL,
		historicalTTL: historicalTTL,
		logger:        log,
	}
}

func currentKey(symbol string) string {
	return "price:current:" + symbol
}

func historicalKey(symbol string, date time.Time) string {
	return fmt.Sprintf("price:hist:%s:%s", symbol, date.UTC().Format("2006-01-02"))
}

// GetCurrent returns the cached quote for a symbol, or (nil, false).
func (c *PriceCache) GetCurrent(ctx context.Context, symbol string) (*entities.PriceQuote, bool) {
	data, err := c.client.Get(ctx, currentKey(symbol)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debugw("Price cache read failed", "symbol", symbol, "error", err)
		}
		return nil, false
	}

	var quote entities.PriceQuote
	if err := json.Unmarshal(data, &quote); err != nil {
		c.logger.Warnw("Corrupt cached quote dropped", "symbol", symbol, "error", err)
		c.client.Del(ctx, currentKey(symbol))
		return nil, false
	}
	return &quote, true
}

// SetCurrent caches a quote for the current-price TTL.
func (c *PriceCache) SetCurrent(ctx context.Context, quote *entities.PriceQuote) {
	data, err := json.Marshal(quote)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, currentKey(quote.Symbol), data, c.currentTTL).Err(); err != nil {
		c.logger.Debugw("Price cache write failed", "symbol", quote.Symbol, "error", err)
	}
}

// GetHistorical returns the cached historical price for a symbol/date,
// or (nil, false).
func (c *PriceCache) GetHistorical(ctx context.Context, symbol string, date time.Time) (*decimal.Decimal, bool) {
	raw, err := c.client.Get(ctx, historicalKey(symbol, date)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debugw("Price cache read failed", "symbol", symbol, "error", err)
		}
		return nil, false
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		c.logger.Warnw("Corrupt cached price dropped", "symbol", symbol, "error", err)
		c.client.Del(ctx, historicalKey(symbol, date))
		return nil, false
	}
	return &price, true
}

// SetHistorical caches a historical price for the long TTL.
func (c *PriceCache) SetHistorical(ctx context.Context, symbol string, date time.Time, price decimal.Decimal) {
	if err := c.client.Set(ctx, historicalKey(symbol, date), price.String(), c.historicalTTL).Err(); err != nil {
		c.logger.Debugw("Price cache write failed", "symbol", symbol, "error", err)
	}
}
