// Package queue moves best-effort side work, currently product image removal,
// onto asynq so request handlers never wait on object storage.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sales-api/internal/catalog"
)

const (
	// TypeImageDelete removes a stored product image.
	TypeImageDelete = "image:delete"

	DefaultQueue    = "default"
	defaultMaxRetry = 5
	defaultTimeout  = 30 * time.Second
)

// ImageDeletePayload is the body of a TypeImageDelete task.
type ImageDeletePayload struct {
	StorageID string `json:"storageId"`
}

// NewImageDeleteTask builds a removal task for one storage id.
func NewImageDeleteTask(storageID string) (*asynq.Task, error) {
	storageID = strings.TrimSpace(storageID)
	if storageID == "" {
		return nil, errors.New("queue: storage id is required")
	}
	payload, err := json.Marshal(ImageDeletePayload{StorageID: storageID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeImageDelete, payload), nil
}

// TaskClient is the subset of *asynq.Client used to publish tasks.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer hands image removals to the worker. It satisfies catalog.ImageRemover.
type Enqueuer struct {
	Client   TaskClient
	Queue    string
	MaxRetry int
	Timeout  time.Duration
}

var _ catalog.ImageRemover = Enqueuer{}

// RemoveImage enqueues the removal; the task id is the storage id so repeated
// requests for the same image collapse into one task.
func (e Enqueuer) RemoveImage(ctx context.Context, storageID string) error {
	if e.Client == nil {
		return errors.New("queue: task client not configured")
	}
	task, err := NewImageDeleteTask(storageID)
	if err != nil {
		return err
	}
	_, err = e.Client.EnqueueContext(ctx, task, e.options(storageID)...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		err = nil
	}
	TasksEnqueuedTotal.WithLabelValues(TypeImageDelete, result(err)).Inc()
	if err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", TypeImageDelete, err)
	}
	return nil
}

func (e Enqueuer) options(storageID string) []asynq.Option {
	queueName := e.Queue
	if queueName == "" {
		queueName = DefaultQueue
	}
	retry := e.MaxRetry
	if retry <= 0 {
		retry = defaultMaxRetry
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return []asynq.Option{
		asynq.Queue(queueName),
		asynq.MaxRetry(retry),
		asynq.Timeout(timeout),
		asynq.TaskID(TypeImageDelete + ":" + storageID),
	}
}

// ImageDeleteHandler performs queued removals with the configured remover.
type ImageDeleteHandler struct {
	Remover catalog.ImageRemover
	Logger  *zerolog.Logger
}

// ProcessTask implements asynq.Handler. Malformed payloads are not retried.
func (h ImageDeleteHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ImageDeletePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil || strings.TrimSpace(p.StorageID) == "" {
		TasksProcessedTotal.WithLabelValues(t.Type(), "invalid").Inc()
		return fmt.Errorf("queue: decode %s payload: %w", t.Type(), asynq.SkipRetry)
	}
	if h.Remover == nil {
		return errors.New("queue: image remover not configured")
	}
	err := h.Remover.RemoveImage(ctx, p.StorageID)
	TasksProcessedTotal.WithLabelValues(t.Type(), result(err)).Inc()
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn().Err(err).Str("storage_id", p.StorageID).Msg("image removal failed")
		}
		return err
	}
	if h.Logger != nil {
		h.Logger.Debug().Str("storage_id", p.StorageID).Msg("image removed")
	}
	return nil
}

// NewServeMux routes every task type the worker understands.
func NewServeMux(images ImageDeleteHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeImageDelete, images)
	return mux
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
