package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	CoinGecko   CoinGeckoConfig `mapstructure:"coingecko"`
	Analytics   AnalyticsConfig `mapstructure:"analytics"`
	Refresher   RefresherConfig `mapstructure:"refresher"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Host            string   `mapstructure:"host"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CoinGeckoConfig configures the external price oracle client.
type CoinGeckoConfig struct {
	BaseURL                string            `mapstructure:"base_url"`
	APIKey                 string            `mapstructure:"api_key"`
	TimeoutSeconds         int               `mapstructure:"timeout_seconds"`
	RequestsPerSecond      float64           `mapstructure:"requests_per_second"`
	CurrentPriceTTL        int               `mapstructure:"current_price_ttl_seconds"`
	HistoricalTTL          int               `mapstructure:"historical_price_ttl_seconds"`
	BreakerCooldownSeconds int               `mapstructure:"breaker_cooldown_seconds"`
	BreakerFailureRatio    float64           `mapstructure:"breaker_failure_ratio"`
	SymbolOverrides        map[string]string `mapstructure:"symbol_overrides"`
}

// AnalyticsConfig bounds the analytics engine's fan-out and windows.
type AnalyticsConfig struct {
	LookupConcurrency int      `mapstructure:"lookup_concurrency"`
	ReturnWindowDays  int      `mapstructure:"return_window_days"`
	BenchmarkSymbols  []string `mapstructure:"benchmark_symbols"`
}

// RefresherConfig drives the periodic bulk price refresh worker.
type RefresherConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Schedule        string `mapstructure:"schedule"`
	UserConcurrency int    `mapstructure:"user_concurrency"`
	BatchDelayMs    int    `mapstructure:"batch_delay_ms"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	// Read from config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Build database URL if not provided
	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.rate_limit_per_min", 100)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "cryptofolio")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	// CoinGecko defaults
	viper.SetDefault("coingecko.base_url", "https://api.coingecko.com/api/v3")
	viper.SetDefault("coingecko.timeout_seconds", 10)
	viper.SetDefault("coingecko.requests_per_second", 0.5)
	viper.SetDefault("coingecko.current_price_ttl_seconds", 60)
	viper.SetDefault("coingecko.historical_price_ttl_seconds", 86400)
	viper.SetDefault("coingecko.breaker_cooldown_seconds", 60)
	viper.SetDefault("coingecko.breaker_failure_ratio", 0.6)

	// Analytics defaults
	viper.SetDefault("analytics.lookup_concurrency", 5)
	viper.SetDefault("analytics.return_window_days", 30)
	viper.SetDefault("analytics.benchmark_symbols", []string{"BTC", "ETH"})

	// Refresher defaults
	viper.SetDefault("refresher.enabled", true)
	viper.SetDefault("refresher.schedule", "*/15 * * * *")
	viper.SetDefault("refresher.user_concurrency", 3)
	viper.SetDefault("refresher.batch_delay_ms", 500)
}

func overrideFromEnv() {
	// Server
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}

	// Database
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	// Redis
	if redisURL := os.Getenv("REDIS_PASSWORD"); redisURL != "" {
		viper.Set("redis.password", redisURL)
	}

	// CoinGecko
	if apiKey := os.Getenv("COINGECKO_API_KEY"); apiKey != "" {
		viper.Set("coingecko.api_key", apiKey)
	}
	if baseURL := os.Getenv("COINGECKO_BASE_URL"); baseURL != "" {
		viper.Set("coingecko.base_url", baseURL)
	}

	// Analytics
	if symbols := os.Getenv("BENCHMARK_SYMBOLS"); symbols != "" {
		parts := strings.Split(symbols, ",")
		var cleaned []string
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				cleaned = append(cleaned, strings.ToUpper(trimmed))
			}
		}
		if len(cleaned) > 0 {
			viper.Set("analytics.benchmark_symbols", cleaned)
		}
	}
}

func validate(config *Config) error {
	if config.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}
	if config.CoinGecko.BaseURL == "" {
		return fmt.Errorf("coingecko base URL is required")
	}
	if config.Analytics.ReturnWindowDays <= 0 {
		return fmt.Errorf("analytics return window must be positive")
	}
	if config.Analytics.LookupConcurrency <= 0 {
		return fmt.Errorf("analytics lookup concurrency must be positive")
	}
	return nil
}

// RedisAddr returns the host:port address for the redis client.
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
