package swipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Proton-105/sohaeng-web/internal/domain"
	"github.com/Proton-105/sohaeng-web/internal/idempotency"
	"github.com/Proton-105/sohaeng-web/internal/notice"
	"github.com/Proton-105/sohaeng-web/pkg/logger"
)

const (
	lockKeyPattern = "swipe:lock:%s:%s"
	lockTTL        = 5 * time.Second
	likeGuardTTL   = 24 * time.Hour
)

var (
	// ErrFlowLocked indicates that another action of the same viewer is being processed.
	ErrFlowLocked = errors.New("swipe flow is locked, try again later")
	// ErrStaleCard indicates that the submitted form was rendered for a card that is no longer current.
	ErrStaleCard = errors.New("submitted card is no longer current")
)

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe flow transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// Viewer is the user browsing the feed together with their backend token.
type Viewer struct {
	UserID string
	Token  string
}

// BearerToken lets a Viewer be passed straight to the API client.
func (v Viewer) BearerToken() string { return v.Token }

// Feed loads the batch of week for a viewer.
type Feed func(ctx context.Context, v Viewer, week string) ([]domain.RecommendationItem, error)

// Service drives the flow for real viewers: it restores the cursor, applies actions and emits likes.
type Service struct {
	feed        Feed
	store       Storage
	dispatcher  Dispatcher
	guard       idempotency.Manager
	notifier    Notifier
	redisClient *redis.Client
	log         *slog.Logger
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithGuard makes likes exactly-once per (viewer, week, target) across double submits.
func WithGuard(guard idempotency.Manager) ServiceOption {
	return func(s *Service) { s.guard = guard }
}

// WithNotifier reports dispatch failures to the viewer.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithLocks serialises actions of one viewer through Redis.
func WithLocks(client *redis.Client) ServiceOption {
	return func(s *Service) { s.redisClient = client }
}

func NewService(feed Feed, store Storage, dispatcher Dispatcher, log *slog.Logger, opts ...ServiceOption) *Service {
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		feed:       feed,
		store:      store,
		dispatcher: dispatcher,
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Load returns the viewer's flow for week, resumed at the stored position.
func (s *Service) Load(ctx context.Context, v Viewer, week string) (Flow, error) {
	items, err := s.feed(ctx, v, week)
	if err != nil {
		return Flow{}, fmt.Errorf("load recommendations: %w", err)
	}

	flow := NewFlow(week, items)

	cursor, err := s.store.GetCursor(ctx, v.UserID, week)
	switch {
	case errors.Is(err, ErrCursorNotFound):
		return flow, nil
	case err != nil:
		// a lost cursor only means the viewer starts over; likes are guarded
		s.log.WarnContext(ctx, "swipe cursor unavailable", slog.String("user_id", v.UserID), slog.Any("error", err))
		return flow, nil
	default:
		return flow.WithIndex(cursor.Index), nil
	}
}

// Act answers the current card. target is the card the form was rendered for; an empty target skips the check.
//
// A like is handed to the dispatcher before the position advances. Dispatch problems are reported to the viewer
// as a notice and never undo the advance.
func (s *Service) Act(ctx context.Context, v Viewer, week string, action Action, target string) (Flow, error) {
	token, err := s.lock(ctx, v.UserID, week)
	if err != nil {
		return Flow{}, err
	}
	defer s.unlock(ctx, v.UserID, week, token)

	flow, err := s.Load(ctx, v, week)
	if err != nil {
		return Flow{}, err
	}

	if current, ok := flow.Current(); ok && target != "" && current.TargetUserID != target {
		return flow, ErrStaleCard
	}

	next, effect, err := flow.Apply(action)
	if err != nil {
		return flow, err
	}

	if effect.Kind == EffectSendLike {
		s.emitLike(ctx, v, effect.Like)
	}

	if err := s.store.SetCursor(ctx, &Cursor{
		UserID: v.UserID,
		Week:   week,
		Index:  next.Index,
		Length: len(next.Items),
	}); err != nil {
		s.log.ErrorContext(ctx, "failed to persist swipe cursor", slog.String("user_id", v.UserID), slog.Any("error", err))
	}

	transitionRecorder(string(flow.Phase()), string(next.Phase()))

	return next, nil
}

func (s *Service) emitLike(ctx context.Context, v Viewer, payload domain.LikePayload) {
	job := LikeJob{
		UserID:        v.UserID,
		Token:         v.Token,
		Payload:       payload,
		CorrelationID: logger.CorrelationIDFromContext(ctx),
	}

	dispatch := func(ctx context.Context) (any, error) {
		return nil, s.dispatcher.Dispatch(ctx, job)
	}

	var err error
	if s.guard != nil {
		key := idempotency.LikeKey(v.UserID, payload.BatchWeek, payload.ToUserID)
		_, err = s.guard.Execute(ctx, key, likeGuardTTL, dispatch)
		if errors.Is(err, idempotency.ErrRequestInProgress) {
			return
		}
	} else {
		_, err = dispatch(ctx)
	}

	if err == nil {
		return
	}

	s.log.WarnContext(ctx, "like dispatch failed", slog.String("user_id", v.UserID), slog.Any("error", err))
	if s.notifier != nil {
		if pushErr := s.notifier.Push(ctx, v.UserID, notice.Error(LikeFailedMessage)); pushErr != nil {
			s.log.ErrorContext(ctx, "failed to push like notice", slog.String("user_id", v.UserID), slog.Any("error", pushErr))
		}
	}
}

// releaseLock deletes the lock only while it still holds our token, so a
// request that outlived lockTTL cannot release a lock taken after it expired.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// lock takes the per-viewer flow lock and returns the token that releases it.
func (s *Service) lock(ctx context.Context, userID, week string) (string, error) {
	if s.redisClient == nil {
		return "", nil
	}

	token := uuid.NewString()
	acquired, err := s.redisClient.SetNX(ctx, fmt.Sprintf(lockKeyPattern, userID, week), token, lockTTL).Result()
	if err != nil {
		s.log.ErrorContext(ctx, "failed to acquire swipe lock", slog.String("user_id", userID), slog.Any("error", err))
		return "", err
	}
	if !acquired {
		return "", ErrFlowLocked
	}

	return token, nil
}

func (s *Service) unlock(ctx context.Context, userID, week, token string) {
	if s.redisClient == nil {
		return
	}

	key := fmt.Sprintf(lockKeyPattern, userID, week)
	released, err := releaseLock.Run(context.WithoutCancel(ctx), s.redisClient, []string{key}, token).Int()
	if err != nil {
		s.log.ErrorContext(ctx, "failed to release swipe lock", slog.String("user_id", userID), slog.Any("error", err))
		return
	}
	if released == 0 {
		s.log.WarnContext(ctx, "swipe lock expired before release", slog.String("user_id", userID), slog.String("week", week))
	}
}
