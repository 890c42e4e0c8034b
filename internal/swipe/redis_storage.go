package swipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cursorKeyPattern  = "swipe:cursor:%s:%s"
	cursorScanPattern = "swipe:cursor:*"
	// a batch lives one week; keep the cursor a little longer so late visits still resume
	cursorTTL = 8 * 24 * time.Hour
)

// RedisStorage persists swipe cursors in Redis.
type RedisStorage struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisStorage initializes a Redis-backed Storage implementation.
func NewRedisStorage(client *redis.Client, log *slog.Logger) *RedisStorage {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStorage{
		client: client,
		log:    log,
	}
}

// GetCursor returns the stored cursor or ErrCursorNotFound when absent.
func (s *RedisStorage) GetCursor(ctx context.Context, userID, week string) (*Cursor, error) {
	data, err := s.client.Get(ctx, cursorKey(userID, week)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCursorNotFound
		}

		s.log.Error("failed to get swipe cursor", "user_id", userID, "week", week, "error", err)
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal([]byte(data), &cursor); err != nil {
		s.log.Error("failed to decode swipe cursor", "user_id", userID, "week", week, "error", err)
		return nil, err
	}

	return &cursor, nil
}

// SetCursor saves the cursor with the weekly TTL.
func (s *RedisStorage) SetCursor(ctx context.Context, cursor *Cursor) error {
	cursor.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(cursor)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, cursorKey(cursor.UserID, cursor.Week), data, cursorTTL).Err(); err != nil {
		s.log.Error("failed to save swipe cursor", "user_id", cursor.UserID, "week", cursor.Week, "error", err)
		return err
	}

	return nil
}

// CountByPhase scans every stored cursor and counts them per phase.
func (s *RedisStorage) CountByPhase(ctx context.Context) (map[string]int, error) {
	var cursor uint64
	counts := make(map[string]int)

	for {
		keys, next, err := s.client.Scan(ctx, cursor, cursorScanPattern, 100).Result()
		if err != nil {
			s.log.Error("failed to scan swipe cursors", "error", err)
			return nil, err
		}

		if len(keys) > 0 {
			values, err := s.client.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, err
			}

			for _, v := range values {
				raw, ok := v.(string)
				if !ok {
					continue
				}

				var c Cursor
				if err := json.Unmarshal([]byte(raw), &c); err != nil {
					continue
				}
				counts[string(c.Phase())]++
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return counts, nil
}

func cursorKey(userID, week string) string {
	return fmt.Sprintf(cursorKeyPattern, userID, week)
}
