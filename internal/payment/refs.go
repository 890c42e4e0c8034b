package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	refKeyPattern = "payment:ref:%s:%s"
	refTTL        = 7 * 24 * time.Hour
)

// ErrNoPayment means no intent was created for the match yet.
var ErrNoPayment = errors.New("no payment for match")

// Refs remembers which payment belongs to a viewer's match so GET pages never create intents.
type Refs struct {
	client *redis.Client
}

func NewRefs(client *redis.Client) *Refs {
	return &Refs{client: client}
}

// Remember stores the payment id created for matchID.
func (r *Refs) Remember(ctx context.Context, userID, matchID, paymentID string) error {
	return r.client.Set(ctx, fmt.Sprintf(refKeyPattern, userID, matchID), paymentID, refTTL).Err()
}

// Lookup returns the payment id of matchID or ErrNoPayment.
func (r *Refs) Lookup(ctx context.Context, userID, matchID string) (string, error) {
	id, err := r.client.Get(ctx, fmt.Sprintf(refKeyPattern, userID, matchID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoPayment
	}
	if err != nil {
		return "", err
	}
	return id, nil
}
