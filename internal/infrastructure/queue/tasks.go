// Package queue moves ledger side effects onto an asynq queue backed by Redis.
// The API process forwards committed domain events; the worker process decodes
// them and runs the same handlers the inline mode would have run.
package queue

import (
	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/erp/shopledger/internal/infrastructure/config"
	"github.com/erp/shopledger/internal/infrastructure/event"
	"github.com/hibiken/asynq"
)

const (
	// TaskTypeDomainEvent carries one serialized domain event
	TaskTypeDomainEvent = "ledger:event:dispatch"
	// TaskTypeRefreshOverdue persists the overdue flag on past-due sales
	TaskTypeRefreshOverdue = "ledger:overdue:refresh"
)

// NewEventTask wraps a domain event in a task. The event id becomes the task id
// so enqueueing the same event twice yields a single task.
func NewEventTask(serializer *event.EventSerializer, e shared.DomainEvent, cfg config.QueueConfig) (*asynq.Task, error) {
	data, err := serializer.Marshal(e)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDomainEvent, data,
		asynq.TaskID(e.EventID().String()),
		asynq.Queue(cfg.Queue),
		asynq.MaxRetry(cfg.MaxRetry),
	), nil
}

// NewRefreshOverdueTask builds the periodic overdue refresh task
func NewRefreshOverdueTask(cfg config.QueueConfig) *asynq.Task {
	return asynq.NewTask(TaskTypeRefreshOverdue, nil,
		asynq.Queue(cfg.Queue),
		asynq.MaxRetry(1),
	)
}

// RedisConnOpt converts the shared Redis settings into asynq's connection option
func RedisConnOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}
