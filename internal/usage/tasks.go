// Package usage ships promotion usage records through asynq so order
// confirmation never waits on the audit write.
package usage

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-resto/internal/promo"
)

const (
	// TaskRecord is the asynq task type for one promotion usage record.
	TaskRecord = "promo:usage:record"
	// DefaultQueue is the asynq queue usage records land on.
	DefaultQueue = "promotions"
)

// NewRecordTask serialises a usage record into an asynq task.
func NewRecordTask(u promo.Usage) (*asynq.Task, error) {
	body, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecord, body), nil
}

func decodeRecordTask(task *asynq.Task) (promo.Usage, error) {
	var u promo.Usage
	err := json.Unmarshal(task.Payload(), &u)
	return u, err
}
