package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Portfolio
	InitialBalance  float64
	DefaultQuantity float64
	ExecuteTrades   bool

	// Strategy
	Symbols         string
	LookbackDays    int
	VolumeThreshold float64
	MinConfidence   float64
	StopLossPct     float64
	TakeProfitPct   float64

	// Risk limits
	MaxPositionQty   float64
	MaxOpenPositions int
	MaxExposure      float64
	MaxDrawdownPct   float64

	// AI advisor
	OpenAIAPIKey string
	OpenAIModel  string

	// Price predictor
	ONNXModelPath string

	// Notifications
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	JournalPath   string
	DataDir       string
	MetricsAddr   string
	QuoteWSURL    string
}

// Load reads configuration from environment variables with sensible defaults.
// The OpenAI key, ONNX model path, and quote stream URL are optional; leaving
// them empty disables those components.
func Load() *Config {
	return &Config{
		InitialBalance:  getEnvFloat("INITIAL_BALANCE", 100000),
		DefaultQuantity: getEnvFloat("DEFAULT_QUANTITY", 10),
		ExecuteTrades:   getEnvBool("EXECUTE_TRADES", false),

		Symbols:         getEnv("SYMBOLS", "AAPL,MSFT,GOOGL"),
		LookbackDays:    getEnvInt("LOOKBACK_DAYS", 60),
		VolumeThreshold: getEnvFloat("VOLUME_THRESHOLD", 1.5),
		MinConfidence:   getEnvFloat("MIN_CONFIDENCE", 0.6),
		StopLossPct:     getEnvFloat("STOP_LOSS_PCT", 0.05),
		TakeProfitPct:   getEnvFloat("TAKE_PROFIT_PCT", 0.10),

		MaxPositionQty:   getEnvFloat("MAX_POSITION_QTY", 100),
		MaxOpenPositions: getEnvInt("MAX_OPEN_POSITIONS", 5),
		MaxExposure:      getEnvFloat("MAX_EXPOSURE", 50000),
		MaxDrawdownPct:   getEnvFloat("MAX_DRAWDOWN_PCT", 10),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		ONNXModelPath: getEnv("ONNX_MODEL_PATH", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		JournalPath:   getEnv("JOURNAL_PATH", "data/orders.db"),
		DataDir:       getEnv("DATA_DIR", "trading_data"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		QuoteWSURL:    getEnv("QUOTE_WS_URL", ""),
	}
}

// ParseSymbols splits the Symbols string into a cleaned slice.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		symbols = append(symbols, strings.ToUpper(p))
	}
	return symbols
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return b
}
