package ratelimit

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/Proton-105/sohaeng-web/pkg/config"
)

// Rule names used by the routes.
const (
	RuleLogin = "login"
	RuleLikes = "likes"
	RuleAdmin = "admin"
)

var ErrUnknownRule = errors.New("unknown rate limit rule")

// Rules holds the configured limits. They can be swapped at runtime when the config file changes.
type Rules struct {
	config atomic.Pointer[config.RateLimitConfig]
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	r := &Rules{}
	r.Update(cfg)
	return r
}

// Update replaces the active rules.
func (r *Rules) Update(cfg config.RateLimitConfig) {
	r.config.Store(&cfg)
}

// Enabled reports whether limits are enforced at all.
func (r *Rules) Enabled() bool {
	return r.config.Load().Enabled
}

// Get returns the limit and window of a named rule.
func (r *Rules) Get(name string) (int, time.Duration, error) {
	rule, ok := r.config.Load().Rules[name]
	if !ok {
		return 0, 0, ErrUnknownRule
	}
	return parseRule(rule)
}

func parseRule(rule config.RateLimitRule) (int, time.Duration, error) {
	if rule.Window == "" {
		return rule.Limit, 0, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, err
	}
	return rule.Limit, window, nil
}
