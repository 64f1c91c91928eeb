package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sales-api/internal/catalog"
	"github.com/noah-isme/sales-api/internal/queue"
)

type clientStub struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (c *clientStub) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	c.tasks = append(c.tasks, task)
	c.opts = append(c.opts, opts)
	if c.err != nil {
		return nil, c.err
	}
	return &asynq.TaskInfo{ID: "1", Queue: queue.DefaultQueue, Type: task.Type()}, nil
}

func TestEnqueuerPublishesImageDelete(t *testing.T) {
	stub := &clientStub{}
	enq := queue.Enqueuer{Client: stub}

	require.NoError(t, enq.RemoveImage(context.Background(), "products/lamp.png"))
	require.Len(t, stub.tasks, 1)
	require.Equal(t, queue.TypeImageDelete, stub.tasks[0].Type())

	var payload queue.ImageDeletePayload
	require.NoError(t, json.Unmarshal(stub.tasks[0].Payload(), &payload))
	require.Equal(t, "products/lamp.png", payload.StorageID)
	require.NotEmpty(t, stub.opts[0])
}

func TestEnqueuerTreatsDuplicateAsSuccess(t *testing.T) {
	stub := &clientStub{err: asynq.ErrTaskIDConflict}
	require.NoError(t, queue.Enqueuer{Client: stub}.RemoveImage(context.Background(), "a"))
}

func TestEnqueuerErrors(t *testing.T) {
	require.Error(t, queue.Enqueuer{}.RemoveImage(context.Background(), "a"))
	require.Error(t, queue.Enqueuer{Client: &clientStub{}}.RemoveImage(context.Background(), "  "))

	stub := &clientStub{err: errors.New("redis down")}
	require.ErrorContains(t, queue.Enqueuer{Client: stub}.RemoveImage(context.Background(), "a"), "redis down")
}

func TestImageDeleteHandler(t *testing.T) {
	var removed []string
	h := queue.ImageDeleteHandler{Remover: catalog.ImageRemoverFunc(func(_ context.Context, id string) error {
		removed = append(removed, id)
		return nil
	})}

	task, err := queue.NewImageDeleteTask("img-1")
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))
	require.Equal(t, []string{"img-1"}, removed)
}

func TestImageDeleteHandlerSkipsRetryOnBadPayload(t *testing.T) {
	h := queue.ImageDeleteHandler{Remover: catalog.NopImageRemover{}}
	err := h.ProcessTask(context.Background(), asynq.NewTask(queue.TypeImageDelete, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestImageDeleteHandlerPropagatesRemoverFailure(t *testing.T) {
	h := queue.ImageDeleteHandler{Remover: catalog.ImageRemoverFunc(func(context.Context, string) error {
		return errors.New("bucket offline")
	})}
	task, err := queue.NewImageDeleteTask("img-2")
	require.NoError(t, err)
	require.ErrorContains(t, h.ProcessTask(context.Background(), task), "bucket offline")
}

type inspectorStub struct {
	info *asynq.QueueInfo
	err  error
}

func (i inspectorStub) GetQueueInfo(string) (*asynq.QueueInfo, error) { return i.info, i.err }

func TestAdminStats(t *testing.T) {
	h := &queue.AdminHandler{Inspector: inspectorStub{info: &asynq.QueueInfo{Queue: "default", Size: 3, Pending: 2, Retry: 1}}}
	r := chi.NewRouter()
	r.Get("/admin/queues/{queue}", h.Stats)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/queues/default", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"data":{"queue":"default","size":3,"pending":2,"active":0,"scheduled":0,"retry":1,"archived":0,"processed":0,"failed":0,"paused":false}}`, rec.Body.String())

	h.Inspector = inspectorStub{err: asynq.ErrQueueNotFound}
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/queues/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
