package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	RedisURL         string
	JWTSecret        string
	CatalogBaseURL   string
	CatalogTimeout   time.Duration
	AIProvider       string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	AnthropicAPIKey  string
	GradingTimeout   time.Duration
	PassThreshold    int
	DescriptionLimit int
	MaxViolations    int
	ReentryDelay     time.Duration
	DedupeWindow     time.Duration
	LedgerKeyPrefix  string
	VerdictKeyPrefix string
	VerdictTTL       time.Duration
	CORSAllowOrigins string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SENTRA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Sentra API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("catalog.timeout", "10s")
	v.SetDefault("grading.timeout", "0s")
	v.SetDefault("grading.pass_threshold", 70)
	v.SetDefault("grading.description_limit", 1000)
	v.SetDefault("proctor.max_violations", 3)
	v.SetDefault("proctor.reentry_delay", "2s")
	v.SetDefault("proctor.dedupe_window", "500ms")
	v.SetDefault("ledger.key_prefix", "sentra:solved")
	v.SetDefault("verdicts.key_prefix", "sentra:verdicts")
	v.SetDefault("verdicts.ttl", "24h")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("openai.model", "gpt-4o-mini")

	catalogTimeout, err := time.ParseDuration(v.GetString("catalog.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid catalog timeout: %w", err)
	}

	gradingTimeout, err := time.ParseDuration(v.GetString("grading.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid grading timeout: %w", err)
	}

	reentryDelay, err := time.ParseDuration(v.GetString("proctor.reentry_delay"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid reentry delay: %w", err)
	}

	dedupeWindow, err := time.ParseDuration(v.GetString("proctor.dedupe_window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid dedupe window: %w", err)
	}

	verdictTTL, err := time.ParseDuration(v.GetString("verdicts.ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid verdict ttl: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		RedisURL:         v.GetString("redis.url"),
		JWTSecret:        v.GetString("jwt.secret"),
		CatalogBaseURL:   v.GetString("catalog.base_url"),
		CatalogTimeout:   catalogTimeout,
		AIProvider:       strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:     v.GetString("openai_api_key"),
		OpenAIBaseURL:    v.GetString("openai.base_url"),
		OpenAIModel:      v.GetString("openai.model"),
		AnthropicAPIKey:  v.GetString("anthropic_api_key"),
		GradingTimeout:   gradingTimeout,
		PassThreshold:    v.GetInt("grading.pass_threshold"),
		DescriptionLimit: v.GetInt("grading.description_limit"),
		MaxViolations:    v.GetInt("proctor.max_violations"),
		ReentryDelay:     reentryDelay,
		DedupeWindow:     dedupeWindow,
		LedgerKeyPrefix:  v.GetString("ledger.key_prefix"),
		VerdictKeyPrefix: v.GetString("verdicts.key_prefix"),
		VerdictTTL:       verdictTTL,
		CORSAllowOrigins: v.GetString("cors.allow_origins"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.CatalogBaseURL == "" {
		return Config{}, fmt.Errorf("catalog base url must be provided")
	}

	if cfg.PassThreshold <= 0 || cfg.PassThreshold > 100 {
		cfg.PassThreshold = 70
	}

	if cfg.MaxViolations <= 0 {
		cfg.MaxViolations = 3
	}

	return cfg, nil
}
