package usage

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-resto/internal/promo"
)

// Enqueuer hands usage records to asynq. It satisfies promo.Recorder, so the
// API process only enqueues and the worker owns the transactional counter
// write.
type Enqueuer struct {
	Client   *asynq.Client
	Queue    string
	MaxRetry int
}

// Record enqueues one usage record. Duplicate deliveries are absorbed by the
// store's (promotion_id, order_id) key, so no uniqueness option is needed.
func (e *Enqueuer) Record(ctx context.Context, u promo.Usage) error {
	if e == nil || e.Client == nil {
		return errors.New("usage enqueuer not configured")
	}
	task, err := NewRecordTask(u)
	if err != nil {
		return err
	}
	queue := e.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	maxRetry := e.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 5
	}
	_, err = e.Client.EnqueueContext(ctx, task, asynq.Queue(queue), asynq.MaxRetry(maxRetry))
	return err
}
