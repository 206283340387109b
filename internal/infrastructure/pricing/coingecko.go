package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cryptofolio/cryptofolio/internal/domain/entities"
	"github.com/cryptofolio/cryptofolio/internal/domain/services/portfolio"
	"github.com/cryptofolio/cryptofolio/internal/infrastructure/cache"
	"github.com/cryptofolio/cryptofolio/internal/infrastructure/config"
	"github.com/cryptofolio/cryptofolio/pkg/circuitbreaker"
	"github.com/cryptofolio/cryptofolio/pkg/logger"
	"github.com/cryptofolio/cryptofolio/pkg/metrics"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// symbolToID maps ticker symbols to CoinGecko coin ids for the assets
// seen most often; anything else falls back to the lowercased symbol,
// overridable per deployment via coingecko.symbol_overrides.
var symbolToID = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"BNB":   "binancecoin",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"SOL":   "solana",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
	"LINK":  "chainlink",
	"LTC":   "litecoin",
	"AVAX":  "avalanche-2",
	"UNI":   "uniswap",
	"ATOM":  "cosmos",
	"XLM":   "stellar",
	"NEAR":  "near",
	"ARB":   "arbitrum",
	"OP":    "optimism",
}

// CoinGeckoClient implements the engine's price oracle against the
// CoinGecko REST API, with a redis cache in front, a client-side rate
// limiter so bursts never hit the upstream limit, and a circuit
// breaker so a flapping upstream degrades fast instead of stalling
// every report.
type CoinGeckoClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	overrides  map[string]string
	cache      *cache.PriceCache
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *logger.Logger
}

// NewCoinGeckoClient builds the oracle client from config.
func NewCoinGeckoClient(cfg *config.CoinGeckoConfig, priceCache *cache.PriceCache, log *logger.Logger) *CoinGeckoClient {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 0.5
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	overrides := make(map[string]string, len(cfg.SymbolOverrides))
	for symbol, id := range cfg.SymbolOverrides {
		overrides[strings.ToUpper(symbol)] = id
	}

	breakerCfg := circuitbreaker.DefaultConfig()
	if cfg.BreakerCooldownSeconds > 0 {
		breakerCfg.Timeout = time.Duration(cfg.BreakerCooldownSeconds) * time.Second
	}
	if cfg.BreakerFailureRatio > 0 {
		breakerCfg.FailureRatio = cfg.BreakerFailureRatio
	}

	return &CoinGeckoClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		overrides:  overrides,
		cache:      priceCache,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		breaker:    circuitbreaker.New("coingecko", breakerCfg),
		logger:     log,
	}
}

func (c *CoinGeckoClient) coinID(symbol string) string {
	symbol = strings.ToUpper(symbol)
	if id, ok := c.overrides[symbol]; ok {
		return id
	}
	if id, ok := symbolToID[symbol]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

// CurrentPrice returns the current USD quote for one symbol, (nil, nil)
// when CoinGecko does not know the asset.
func (c *CoinGeckoClient) CurrentPrice(ctx context.Context, symbol string) (*entities.PriceQuote, error) {
	quotes, err := c.CurrentPrices(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	return quotes[strings.ToUpper(symbol)], nil
}

// CurrentPrices fetches current USD quotes for a batch of symbols in
// one upstream call, serving cached quotes without touching upstream.
// Unknown symbols are simply absent from the result.
func (c *CoinGeckoClient) CurrentPrices(ctx context.Context, symbols []string) (map[string]*entities.PriceQuote, error) {
	result := make(map[string]*entities.PriceQuote, len(symbols))

	var missing []string
	for _, symbol := range symbols {
		symbol = strings.ToUpper(symbol)
		if quote, ok := c.cache.GetCurrent(ctx, symbol); ok {
			metrics.PriceLookupsTotal.WithLabelValues("current", "hit").Inc()
			result[symbol] = quote
			continue
		}
		missing = append(missing, symbol)
	}
	if len(missing) == 0 {
		return result, nil
	}

	ids := make([]string, len(missing))
	idToSymbol := make(map[string]string, len(missing))
	for i, symbol := range missing {
		id := c.coinID(symbol)
		ids[i] = id
		idToSymbol[id] = symbol
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", "usd")
	query.Set("include_24hr_change", "true")

	var payload map[string]map[string]float64
	if err := c.get(ctx, "/simple/price", query, "current", &payload); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for id, prices := range payload {
		symbol, ok := idToSymbol[id]
		if !ok {
			continue
		}
		usd, ok := prices["usd"]
		if !ok {
			continue
		}

		quote := &entities.PriceQuote{
			Symbol:    symbol,
			PriceUSD:  decimal.NewFromFloat(usd),
			FetchedAt: now,
		}
		if change, ok := prices["usd_24h_change"]; ok {
			quote.Change24hPct = &change
		}

		c.cache.SetCurrent(ctx, quote)
		result[symbol] = quote
	}

	for _, symbol := range missing {
		if _, ok := result[symbol]; !ok {
			metrics.PriceLookupsTotal.WithLabelValues("current", "miss").Inc()
			c.logger.Debugw("No current price for symbol", "symbol", symbol)
		}
	}

	return result, nil
}

// historyResponse is the slice of /coins/{id}/history we care about.
type historyResponse struct {
	MarketData *struct {
		CurrentPrice map[string]float64 `json:"current_price"`
	} `json:"market_data"`
}

// HistoricalPrice returns the USD price of a symbol on a calendar day,
// (nil, nil) when no market data exists for that day.
func (c *CoinGeckoClient) HistoricalPrice(ctx context.Context, symbol string, date time.Time) (*decimal.Decimal, error) {
	symbol = strings.ToUpper(symbol)

	if price, ok := c.cache.GetHistorical(ctx, symbol, date); ok {
		metrics.PriceLookupsTotal.WithLabelValues("historical", "hit").Inc()
		return price, nil
	}

	query := url.Values{}
	query.Set("date", date.UTC().Format("02-01-2006"))
	query.Set("localization", "false")

	var payload historyResponse
	path := fmt.Sprintf("/coins/%s/history", url.PathEscape(c.coinID(symbol)))
	if err := c.get(ctx, path, query, "historical", &payload); err != nil {
		return nil, err
	}

	if payload.MarketData == nil {
		metrics.PriceLookupsTotal.WithLabelValues("historical", "miss").Inc()
		return nil, nil
	}
	usd, ok := payload.MarketData.CurrentPrice["usd"]
	if !ok {
		metrics.PriceLookupsTotal.WithLabelValues("historical", "miss").Inc()
		return nil, nil
	}

	price := decimal.NewFromFloat(usd)
	c.cache.SetHistorical(ctx, symbol, date, price)
	return &price, nil
}

// get performs one rate-limited, breaker-guarded GET and decodes the
// JSON body into out. Upstream throttling and outages come back as
// ErrPriceUnavailable so callers degrade instead of retrying.
func (c *CoinGeckoClient) get(ctx context.Context, path string, query url.Values, kind string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	defer func() {
		metrics.PriceLookupDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	body, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("x-cg-demo-api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, fmt.Errorf("%w: upstream throttled", portfolio.ErrPriceUnavailable)
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("%w: status %d", portfolio.ErrPriceUnavailable, resp.StatusCode)
		}

		var decoded json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return decoded, nil
	})
	if err != nil {
		metrics.PriceLookupsTotal.WithLabelValues(kind, "error").Inc()
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return fmt.Errorf("%w: circuit open", portfolio.ErrPriceUnavailable)
		}
		return err
	}

	if err := json.Unmarshal(body.(json.RawMessage), out); err != nil {
		metrics.PriceLookupsTotal.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
