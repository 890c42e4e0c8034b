package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultConfigDir = "./configs"

// Load reads configuration from YAML files and environment variables, validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	if err := godotenv.Load(".env.local", ".env"); err != nil {
		// env files are optional, real environment wins anyway
		_ = err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	return LoadFrom(defaultConfigDir, env)
}

// LoadFrom reads <dir>/<env>.yaml when present, applies defaults and env overrides and validates the result.
func LoadFrom(dir, env string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.Set("app_env", env)
	v.SetConfigFile(filepath.Join(dir, fmt.Sprintf("%s.yaml", env)))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}

	return cfg, v, nil
}

// Watch reloads the config file on change and hands every valid snapshot to onChange.
// Invalid edits are reported through onError and otherwise ignored.
func Watch(v *viper.Viper, onChange func(*Config), onError func(error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.base_url", "http://localhost:3000")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("api.base_url", "http://localhost:8000/api/v1")
	v.SetDefault("api.timeout", 10*time.Second)

	v.SetDefault("session.secret", "")
	v.SetDefault("session.ttl", 30*24*time.Hour)
	v.SetDefault("session.cookie_name", "sohaeng_session")
	v.SetDefault("session.secure", false)

	v.SetDefault("kakao.client_id", "")
	v.SetDefault("kakao.client_secret", "")
	v.SetDefault("kakao.redirect_url", "http://localhost:3000/auth/callback")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("sentry.dsn", "")

	v.SetDefault("query.stale_time", 5*time.Minute)
	v.SetDefault("query.max_retries", 3)

	v.SetDefault("likes.mode", "inline")
	v.SetDefault("likes.concurrency", 10)

	v.SetDefault("payment.bank_name", "국민은행")
	v.SetDefault("payment.account_number", "123-456-789012")
	v.SetDefault("payment.account_holder", "소확행")
	v.SetDefault("payment.window", time.Hour)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.rules", map[string]any{
		"login": map[string]any{"limit": 10, "window": "1m"},
		"likes": map[string]any{"limit": 60, "window": "1m"},
		"admin": map[string]any{"limit": 30, "window": "1m"},
	})

	v.SetDefault("cloudinary.url", "")
	v.SetDefault("cloudinary.folder", "sohaeng/profiles")
	v.SetDefault("i18n.default_lang", "ko")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
}
