package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/sohaeng-web/internal/domain"
	"github.com/Proton-105/sohaeng-web/internal/swipe"
)

const (
	TaskTypeLikeSend    = "like:send"
	TaskTypeCleanupData = "data:cleanup"
)

const (
	QueueLikes   = "likes"
	QueueDefault = "default"
	QueueLow     = "low"
)

const (
	LikeMaxRetry = 3
	likeTimeout  = 15 * time.Second
)

// Queues is the weighted queue set served by the worker.
var Queues = map[string]int{
	QueueLikes:   6,
	QueueDefault: 3,
	QueueLow:     1,
}

// LikeSendPayload is the queued form of a like.
type LikeSendPayload struct {
	UserID        string `json:"userId"`
	Token         string `json:"token"`
	ToUserID      string `json:"toUserId"`
	BatchWeek     string `json:"batchWeek"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (p LikeSendPayload) Job() swipe.LikeJob {
	return swipe.LikeJob{
		UserID:        p.UserID,
		Token:         p.Token,
		Payload:       domain.LikePayload{ToUserID: p.ToUserID, BatchWeek: p.BatchWeek},
		CorrelationID: p.CorrelationID,
	}
}

type CleanupDataPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

func NewLikeSendTask(job swipe.LikeJob) (*asynq.Task, error) {
	payload, err := json.Marshal(LikeSendPayload{
		UserID:        job.UserID,
		Token:         job.Token,
		ToUserID:      job.Payload.ToUserID,
		BatchWeek:     job.Payload.BatchWeek,
		CorrelationID: job.CorrelationID,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeLikeSend, payload,
		asynq.TaskID(likeTaskID(job)),
		asynq.Queue(QueueLikes),
		asynq.MaxRetry(LikeMaxRetry),
		asynq.Timeout(likeTimeout),
	), nil
}

// likeTaskID keys a like by sender, target and batch week so a double submit
// queues one delivery.
func likeTaskID(job swipe.LikeJob) string {
	return fmt.Sprintf("like:%s:%s:%s", job.UserID, job.Payload.ToUserID, job.Payload.BatchWeek)
}

func NewCleanupDataTask(olderThan time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(CleanupDataPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeCleanupData, payload, asynq.Queue(QueueLow)), nil
}
