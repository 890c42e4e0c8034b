package swipe

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Proton-105/sohaeng-web/internal/domain"
	"github.com/Proton-105/sohaeng-web/internal/notice"
	"github.com/Proton-105/sohaeng-web/pkg/logger"
	"github.com/Proton-105/sohaeng-web/pkg/metrics"
)

// LikeFailedMessage is shown when a like could not be recorded. The flow has already moved on.
const LikeFailedMessage = "좋아요 전송에 실패했습니다."

// LikeJob is one like to deliver on behalf of a viewer.
type LikeJob struct {
	UserID        string             `json:"userId"`
	Token         string             `json:"token"`
	Payload       domain.LikePayload `json:"payload"`
	CorrelationID string             `json:"correlationId,omitempty"`
}

// Dispatcher hands a like over for delivery. It must not wait for the backend's answer.
type Dispatcher interface {
	Dispatch(ctx context.Context, job LikeJob) error
}

// LikeSender posts a like with an explicit token.
type LikeSender interface {
	SendLike(ctx context.Context, token string, payload domain.LikePayload) error
}

// Notifier queues a toast for a user.
type Notifier interface {
	Push(ctx context.Context, userID string, n notice.Notice) error
}

// Invalidator drops cached reads of a resource for one viewer.
type Invalidator interface {
	Invalidate(ctx context.Context, scope, resource string) error
}

// Deliverer performs the actual like call and its follow-ups. Both dispatch modes share it.
type Deliverer struct {
	sender      LikeSender
	notifier    Notifier
	invalidator Invalidator
	log         *slog.Logger
}

func NewDeliverer(sender LikeSender, notifier Notifier, invalidator Invalidator, log *slog.Logger) *Deliverer {
	if log == nil {
		log = slog.Default()
	}

	return &Deliverer{sender: sender, notifier: notifier, invalidator: invalidator, log: log}
}

// Deliver sends the like. On success the viewer's cached matches are dropped, since a mutual like creates one.
func (d *Deliverer) Deliver(ctx context.Context, job LikeJob) error {
	if job.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, job.CorrelationID)
	}

	if err := d.sender.SendLike(ctx, job.Token, job.Payload); err != nil {
		return err
	}

	if d.invalidator != nil {
		if err := d.invalidator.Invalidate(ctx, job.UserID, "matches"); err != nil {
			d.log.WarnContext(ctx, "failed to invalidate matches after like", slog.String("user_id", job.UserID), slog.Any("error", err))
		}
	}

	return nil
}

// Fail reports a like that will not be delivered.
func (d *Deliverer) Fail(ctx context.Context, job LikeJob, cause error) {
	d.log.WarnContext(ctx, "like delivery failed",
		slog.String("user_id", job.UserID),
		slog.String("to_user_id", job.Payload.ToUserID),
		slog.String("batch_week", job.Payload.BatchWeek),
		slog.Any("error", cause),
	)

	if d.notifier == nil {
		return
	}

	// the delivery context may already be past its deadline
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := d.notifier.Push(pushCtx, job.UserID, notice.Error(LikeFailedMessage)); err != nil {
		d.log.ErrorContext(ctx, "failed to push like notice", slog.String("user_id", job.UserID), slog.Any("error", err))
	}
}

// InlineDispatcher delivers likes on a goroutine detached from the page request.
type InlineDispatcher struct {
	deliverer *Deliverer
	timeout   time.Duration
	wg        sync.WaitGroup
}

func NewInlineDispatcher(deliverer *Deliverer, timeout time.Duration) *InlineDispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &InlineDispatcher{deliverer: deliverer, timeout: timeout}
}

// Dispatch starts the delivery and returns immediately.
func (d *InlineDispatcher) Dispatch(ctx context.Context, job LikeJob) error {
	if job.CorrelationID == "" {
		job.CorrelationID = logger.CorrelationIDFromContext(ctx)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.deliverer.Deliver(sendCtx, job); err != nil {
			metrics.RecordLike("inline", "failed")
			d.deliverer.Fail(sendCtx, job, err)
			return
		}
		metrics.RecordLike("inline", "sent")
	}()

	return nil
}

// Wait blocks until in-flight deliveries finish or ctx ends.
func (d *InlineDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
