package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-resto/internal/promo"
)

// Consumer processes queued usage records against the durable recorder.
type Consumer struct {
	Rec promo.Recorder
	Log zerolog.Logger
}

// Register attaches the consumer's handlers to the asynq mux.
func (c *Consumer) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskRecord, c.handleRecord)
}

func (c *Consumer) handleRecord(ctx context.Context, task *asynq.Task) error {
	u, err := decodeRecordTask(task)
	if err != nil {
		// A payload that never decodes will never decode; don't retry it.
		return fmt.Errorf("decode usage payload: %v: %w", err, asynq.SkipRetry)
	}
	if u.PromotionID == uuid.Nil || u.OrderID == uuid.Nil {
		c.Log.Warn().Msg("usage record missing ids, dropping")
		return nil
	}
	if err := c.Rec.Record(ctx, u); err != nil {
		switch {
		case errors.Is(err, promo.ErrCodeExhausted):
			// The order was already priced; an exhausted counter at record
			// time is an audit gap to flag, not a reason to retry.
			c.Log.Warn().
				Str("promotion_id", u.PromotionID.String()).
				Str("order_id", u.OrderID.String()).
				Msg("usage slot exhausted after pricing")
			return nil
		case errors.Is(err, promo.ErrNotFound):
			c.Log.Warn().
				Str("promotion_id", u.PromotionID.String()).
				Msg("promotion gone, dropping usage record")
			return nil
		default:
			return fmt.Errorf("record usage: %w", err)
		}
	}
	c.Log.Debug().
		Str("promotion_id", u.PromotionID.String()).
		Str("order_id", u.OrderID.String()).
		Int64("discount", u.Discount).
		Msg("usage recorded")
	return nil
}
