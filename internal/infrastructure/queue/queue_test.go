package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/erp/shopledger/internal/application/ledger"
	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/erp/shopledger/internal/infrastructure/cache"
	"github.com/erp/shopledger/internal/infrastructure/config"
	"github.com/erp/shopledger/internal/infrastructure/event"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testQueue = config.QueueConfig{Concurrency: 1, Queue: "ledger", MaxRetry: 4}

// fakeEnqueuer keeps tasks in memory and rejects a repeated task id like asynq does
type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks map[string]*asynq.Task
	err   error
}

func newFakeEnqueuer() *fakeEnqueuer {
	return &fakeEnqueuer{tasks: make(map[string]*asynq.Task)}
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	key := string(task.Payload())
	if _, ok := f.tasks[key]; ok {
		return nil, asynq.ErrTaskIDConflict
	}
	f.tasks[key] = task
	return &asynq.TaskInfo{Queue: testQueue.Queue, Type: task.Type()}, nil
}

func (f *fakeEnqueuer) all() []*asynq.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*asynq.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t)
	}
	return out
}

// recordingSink collects price history entries
type recordingSink struct {
	mu      sync.Mutex
	entries []sales.PriceHistoryEntry
}

func (s *recordingSink) Record(_ context.Context, entries []sales.PriceHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return nil
}

func newSaleCreated(t *testing.T) *sales.SaleCreatedEvent {
	t.Helper()
	sale, err := sales.NewSale(sales.NewSaleInput{
		CustomerID: uuid.New(),
		SupplierID: uuid.New(),
		Items: []sales.SaleItem{
			{ProductID: uuid.New(), ProductName: "Lentils", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(9), Total: decimal.NewFromInt(36)},
		},
		PaymentMethod: sales.PaymentCash,
	})
	require.NoError(t, err)
	sale.AssignNumber("SL-20260315-00042")
	return sale.PendingEvents()[0].(*sales.SaleCreatedEvent)
}

func TestEventForwarder_EnqueuesOncePerEvent(t *testing.T) {
	enqueuer := newFakeEnqueuer()
	serializer := event.NewLedgerSerializer()
	forwarder := NewEventForwarder(enqueuer, serializer, testQueue, zaptest.NewLogger(t), sales.EventTypeSaleCreated)
	assert.Equal(t, []string{sales.EventTypeSaleCreated}, forwarder.EventTypes())

	e := newSaleCreated(t)
	require.NoError(t, forwarder.Handle(context.Background(), e))
	require.NoError(t, forwarder.Handle(context.Background(), e))

	tasks := enqueuer.all()
	require.Len(t, tasks, 1)
	assert.Equal(t, TaskTypeDomainEvent, tasks[0].Type())

	decoded, err := serializer.Unmarshal(tasks[0].Payload())
	require.NoError(t, err)
	assert.Equal(t, e.EventID(), decoded.EventID())
}

func TestEventForwarder_EnqueueFailure(t *testing.T) {
	enqueuer := newFakeEnqueuer()
	enqueuer.err = errors.New("redis: connection refused")
	forwarder := NewEventForwarder(enqueuer, event.NewLedgerSerializer(), testQueue, nil, sales.EventTypeSaleCreated)

	err := forwarder.Handle(context.Background(), newSaleCreated(t))
	assert.ErrorContains(t, err, "enqueue SaleCreated")
}

func TestEventForwarder_UnregisteredEvent(t *testing.T) {
	forwarder := NewEventForwarder(newFakeEnqueuer(), event.NewEventSerializer(), testQueue, nil)
	err := forwarder.Handle(context.Background(), newSaleCreated(t))
	assert.ErrorContains(t, err, "unknown event type")
}

func newTestWorker(t *testing.T, dispatcher Dispatcher, refresh RefreshFunc, cron string) *Worker {
	t.Helper()
	mr := miniredis.RunT(t)
	qc := testQueue
	qc.OverdueRefreshCron = cron
	w, err := NewWorker(WorkerConfig{
		RedisOpt:   asynq.RedisClientOpt{Addr: mr.Addr()},
		Queue:      qc,
		Serializer: event.NewLedgerSerializer(),
		Dispatcher: dispatcher,
		Refresh:    refresh,
		Logger:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return w
}

func TestWorker_HandleEvent_RunsPriceHistoryOnce(t *testing.T) {
	logger := zaptest.NewLogger(t)
	sink := &recordingSink{}
	store := cache.NewInMemoryIdempotencyStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	bus := event.NewInMemoryEventBus(logger)
	bus.Subscribe(event.NewIdempotentHandler("price_history", ledger.NewPriceHistoryHandler(sink, logger), store, logger))

	w := newTestWorker(t, bus, nil, "")
	e := newSaleCreated(t)
	task, err := NewEventTask(event.NewLedgerSerializer(), e, testQueue)
	require.NoError(t, err)

	// Redelivery of the same task is absorbed
	require.NoError(t, w.HandleEvent(context.Background(), task))
	require.NoError(t, w.HandleEvent(context.Background(), task))

	require.Len(t, sink.entries, 1)
	assert.Equal(t, e.SaleID, sink.entries[0].SaleID)
	assert.True(t, sink.entries[0].Price.Equal(decimal.NewFromInt(9)))
}

// failingDispatcher fails every dispatch
type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, shared.DomainEvent) error {
	return errors.New("handler failed")
}

func TestWorker_HandleEvent_Errors(t *testing.T) {
	w := newTestWorker(t, failingDispatcher{}, nil, "")

	err := w.HandleEvent(context.Background(), asynq.NewTask(TaskTypeDomainEvent, []byte("garbage")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	task, err := NewEventTask(event.NewLedgerSerializer(), newSaleCreated(t), testQueue)
	require.NoError(t, err)
	err = w.HandleEvent(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorContains(t, err, "handler failed")
}

func TestWorker_HandleRefreshOverdue(t *testing.T) {
	calls := 0
	w := newTestWorker(t, failingDispatcher{}, func(ctx context.Context) error {
		calls++
		return nil
	}, "30 1 * * *")
	require.NotNil(t, w.scheduler)

	require.NoError(t, w.HandleRefreshOverdue(context.Background(), NewRefreshOverdueTask(testQueue)))
	assert.Equal(t, 1, calls)

	bare := newTestWorker(t, failingDispatcher{}, nil, "30 1 * * *")
	assert.Nil(t, bare.scheduler)
	assert.ErrorIs(t, bare.HandleRefreshOverdue(context.Background(), nil), asynq.SkipRetry)
}

func TestNewWorker_RequiresDependencies(t *testing.T) {
	_, err := NewWorker(WorkerConfig{Queue: testQueue})
	assert.Error(t, err)
}

func TestRedisConnOpt(t *testing.T) {
	opt := RedisConnOpt(config.RedisConfig{Host: "cache", Port: 6380, Password: "pw", DB: 2})
	assert.Equal(t, "cache:6380", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 2, opt.DB)
}
