package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"updown/model"
	"updown/utils/tools"
)

// Config holds all configuration values
type Config struct {
	// Market data
	BinanceBaseURL string
	HTTPTimeout    time.Duration
	PriceCacheTTL  time.Duration
	SeriesCacheTTL time.Duration

	// Polling
	TickInterval    time.Duration
	RefreshInterval time.Duration
	RefreshMinGap   time.Duration
	MaxTickFailures int
	SeriesLimit     int

	// Account / trading
	InitialBalance  float64
	TradeAmount     float64
	TradeDuration   time.Duration
	DefaultSymbol   string
	DefaultInterval string

	// Server
	HTTPPort string
	LogLevel string

	// Notification (비어 있으면 로그로만 남김)
	TelegramBotToken string
	TelegramChatID   string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// .env 가 없으면 무시
	_ = godotenv.Load()

	cfg := &Config{
		BinanceBaseURL:   getEnv("BINANCE_BASE_URL", "https://api.binance.com"),
		DefaultSymbol:    strings.ToUpper(getEnv("DEFAULT_SYMBOL", "BTCUSDT")),
		DefaultInterval:  getEnv("DEFAULT_INTERVAL", "1M"),
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
	}

	var err error
	durations := []struct {
		key      string
		fallback string
		target   *time.Duration
	}{
		{"HTTP_TIMEOUT", "10s", &cfg.HTTPTimeout},
		{"PRICE_CACHE_TTL", "2s", &cfg.PriceCacheTTL},
		{"SERIES_CACHE_TTL", "15s", &cfg.SeriesCacheTTL},
		{"TICK_INTERVAL", "3s", &cfg.TickInterval},
		{"REFRESH_INTERVAL", "30s", &cfg.RefreshInterval},
		{"REFRESH_MIN_GAP", "25s", &cfg.RefreshMinGap},
		{"TRADE_DURATION", "5m", &cfg.TradeDuration},
	}
	for _, d := range durations {
		if *d.target, err = getDuration(d.key, d.fallback); err != nil {
			return nil, err
		}
	}

	if cfg.MaxTickFailures, err = getInt("MAX_TICK_FAILURES", 3); err != nil {
		return nil, err
	}
	if cfg.SeriesLimit, err = getInt("SERIES_LIMIT", 100); err != nil {
		return nil, err
	}
	if cfg.InitialBalance, err = getFloat("INITIAL_BALANCE", 20340.48); err != nil {
		return nil, err
	}
	if cfg.TradeAmount, err = getFloat("TRADE_AMOUNT", 1000); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that configuration values are usable
func (c *Config) Validate() error {
	positive := map[string]time.Duration{
		"HTTP_TIMEOUT":     c.HTTPTimeout,
		"TICK_INTERVAL":    c.TickInterval,
		"REFRESH_INTERVAL": c.RefreshInterval,
		"TRADE_DURATION":   c.TradeDuration,
	}
	for key, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be > 0", key)
		}
	}
	if c.PriceCacheTTL < 0 || c.SeriesCacheTTL < 0 || c.RefreshMinGap < 0 {
		return fmt.Errorf("cache TTLs and REFRESH_MIN_GAP must be >= 0")
	}
	if c.MaxTickFailures <= 0 {
		return fmt.Errorf("MAX_TICK_FAILURES must be > 0")
	}
	if c.SeriesLimit <= 0 {
		return fmt.Errorf("SERIES_LIMIT must be > 0")
	}
	if c.TradeAmount <= 0 {
		return fmt.Errorf("TRADE_AMOUNT must be > 0")
	}
	if c.InitialBalance < 0 {
		return fmt.Errorf("INITIAL_BALANCE must be >= 0")
	}
	if _, ok := model.LookupInstrument(c.DefaultSymbol); !ok {
		return fmt.Errorf("DEFAULT_SYMBOL %q is not a listed instrument", c.DefaultSymbol)
	}
	if _, err := tools.MapInterval(c.DefaultInterval); err != nil {
		return fmt.Errorf("invalid DEFAULT_INTERVAL: %w", err)
	}
	return nil
}

// TelegramEnabled : 토큰과 chat id 가 모두 있어야 켜진다
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return f, nil
}
