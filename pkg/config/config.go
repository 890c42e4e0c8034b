// Package config provides configuration loading and validation utilities.
package config

import (
	"time"
)

// Config holds runtime configuration for the sohaeng web frontend.
type Config struct {
	AppEnv     string           `mapstructure:"app_env"`
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	API        APIConfig        `mapstructure:"api" validate:"required"`
	Session    SessionConfig    `mapstructure:"session" validate:"required"`
	Kakao      KakaoConfig      `mapstructure:"kakao" validate:"required"`
	Redis      RedisConfig      `mapstructure:"redis" validate:"required"`
	Log        LogConfig        `mapstructure:"log"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
	Query      QueryConfig      `mapstructure:"query"`
	Likes      LikesConfig      `mapstructure:"likes"`
	Payment    PaymentConfig    `mapstructure:"payment"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Cloudinary CloudinaryConfig `mapstructure:"cloudinary"`
	I18n       I18nConfig       `mapstructure:"i18n"`
	CORS       CORSConfig       `mapstructure:"cors"`
}

// ServerConfig describes the public HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	BaseURL         string        `mapstructure:"base_url" validate:"required,url"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// APIConfig points at the matching backend.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SessionConfig struct {
	Secret     string        `mapstructure:"secret" validate:"required,min=32"`
	TTL        time.Duration `mapstructure:"ttl"`
	CookieName string        `mapstructure:"cookie_name" validate:"required"`
	Secure     bool          `mapstructure:"secure"`
}

type KakaoConfig struct {
	ClientID     string `mapstructure:"client_id" validate:"required"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url" validate:"required,url"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	File  string `mapstructure:"file"`
}

type SentryConfig struct {
	DSN string `mapstructure:"dsn"`
}

// QueryConfig controls freshness and retries of backend reads.
type QueryConfig struct {
	StaleTime  time.Duration `mapstructure:"stale_time"`
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
}

// LikesConfig selects how outbound likes are delivered.
type LikesConfig struct {
	Mode        string `mapstructure:"mode" validate:"oneof=inline queue"`
	Concurrency int    `mapstructure:"concurrency" validate:"gte=1"`
}

type PaymentConfig struct {
	BankName      string        `mapstructure:"bank_name"`
	AccountNumber string        `mapstructure:"account_number"`
	AccountHolder string        `mapstructure:"account_holder"`
	Window        time.Duration `mapstructure:"window"`
}

// RateLimitRule is a single sliding window rule, e.g. {Limit: 10, Window: "1m"}.
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit" validate:"gte=0"`
	Window string `mapstructure:"window"`
}

type RateLimitConfig struct {
	Enabled bool                     `mapstructure:"enabled"`
	Rules   map[string]RateLimitRule `mapstructure:"rules"`
}

type CloudinaryConfig struct {
	URL    string `mapstructure:"url"`
	Folder string `mapstructure:"folder"`
}

type I18nConfig struct {
	DefaultLang string `mapstructure:"default_lang" validate:"omitempty,oneof=ko en"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
