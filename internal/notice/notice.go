// Package notice stores transient per-user notifications shown as toasts on the next page render.
package notice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

const (
	keyPattern = "notice:%s"
	// DisplayDuration is how long a toast stays on screen.
	DisplayDuration = 4 * time.Second
	defaultTTL      = time.Minute
	maxPending      = 20
)

// Notice is one toast.
type Notice struct {
	Level     Level     `json:"level"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

func Error(text string) Notice   { return Notice{Level: LevelError, Text: text} }
func Success(text string) Notice { return Notice{Level: LevelSuccess, Text: text} }
func Info(text string) Notice    { return Notice{Level: LevelInfo, Text: text} }

// Store keeps pending notices in a capped Redis list per user.
type Store struct {
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration
}

func NewStore(client *redis.Client, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}

	return &Store{client: client, log: log, ttl: defaultTTL}
}

// Push appends n for userID. Notices older than the TTL are dropped unseen.
func (s *Store) Push(ctx context.Context, userID string, n Notice) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	key := fmt.Sprintf(keyPattern, userID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -maxPending, -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Error("failed to push notice", slog.String("user_id", userID), slog.Any("error", err))
		return err
	}

	return nil
}

// Drain returns and removes every pending notice for userID, oldest first.
func (s *Store) Drain(ctx context.Context, userID string) ([]Notice, error) {
	key := fmt.Sprintf(keyPattern, userID)

	pipe := s.client.TxPipeline()
	items := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	out := make([]Notice, 0, len(items.Val()))
	for _, raw := range items.Val() {
		var n Notice
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			s.log.Warn("dropping malformed notice", slog.String("user_id", userID), slog.Any("error", err))
			continue
		}
		out = append(out, n)
	}

	return out, nil
}
