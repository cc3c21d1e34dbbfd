package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/dscommerce-backend/internal/cfg"
	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
	"github.com/DRSN-tech/dscommerce-backend/internal/usecase"
	"github.com/DRSN-tech/dscommerce-backend/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestEncodeOrderPlaced(t *testing.T) {
	order := domain.NewOrder(2, time.Date(2022, 7, 25, 13, 0, 0, 0, time.UTC))
	order.ID = 7
	require.NoError(t, order.AddItem(3, 1, 125000))
	require.NoError(t, order.AddItem(1, 2, 9050))

	data, err := NewProtoEventEncoder().EncodeOrderPlaced(order)
	require.NoError(t, err)

	payload, err := DecodeEvent(data)
	require.NoError(t, err)

	assert.Equal(t, "ORDER_PLACED", payload["event_type"])
	assert.Equal(t, float64(7), payload["order_id"])
	assert.Equal(t, float64(2), payload["client_id"])
	assert.Equal(t, "AWAITING_PAYMENT", payload["status"])
	assert.Equal(t, "2022-07-25T13:00:00Z", payload["moment"])
	assert.Equal(t, float64(143100), payload["total"])

	items, ok := payload["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, float64(3), first["product_id"])
	assert.Equal(t, float64(125000), first["price"])
}

func TestWriteRawMessageSetsKeyAndHeaders(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: logger.NewNopLogger(), cfg: &cfg.KafkaCfg{Topic: "orders"}}

	event := domain.NewOutboxEvent("e-1", domain.EventOrderPlaced, 42, []byte("payload"), time.Now())
	require.NoError(t, p.WriteRawMessage(context.Background(), usecase.NewWriteRawMessageReq(event)))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "42", string(msg.Key))
	assert.Equal(t, []byte("payload"), msg.Value)

	carrier := NewMessageCarrier(&msg)
	assert.Equal(t, "e-1", carrier.Get(headerEventID))
	assert.Equal(t, "ORDER_PLACED", carrier.Get(headerEventType))
}

func TestMessageCarrierOverwritesHeader(t *testing.T) {
	msg := kafka.Message{}
	c := NewMessageCarrier(&msg)

	c.Set("traceparent", "a")
	c.Set("traceparent", "b")

	assert.Equal(t, []string{"traceparent"}, c.Keys())
	assert.Equal(t, "b", c.Get("traceparent"))
	assert.Empty(t, c.Get("missing"))
}

// fakeOutbox повторяет поведение outbox_events: Reschedule возвращает строку
// в PENDING и откладывает её до next_attempt_at.
type fakeOutbox struct {
	mu          sync.Mutex
	now         time.Time
	rows        []*outboxRow
	processed   []int64
	rescheduled map[int64]int
	delays      map[int64][]time.Duration
}

type outboxRow struct {
	event         *domain.OutboxEvent
	nextAttemptAt time.Time
}

func newFakeOutbox(events ...*domain.OutboxEvent) *fakeOutbox {
	f := &fakeOutbox{
		now:         time.Date(2024, 7, 25, 13, 0, 0, 0, time.UTC),
		rescheduled: map[int64]int{},
		delays:      map[int64][]time.Duration{},
	}
	for _, ev := range events {
		f.rows = append(f.rows, &outboxRow{event: ev, nextAttemptAt: f.now})
	}
	return f
}

func (f *fakeOutbox) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeOutbox) row(id int64) outboxRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.event.ID == id {
			ev := *r.event
			return outboxRow{event: &ev, nextAttemptAt: r.nextAttemptAt}
		}
	}
	return outboxRow{}
}

func (f *fakeOutbox) Create(_ context.Context, ev *domain.OutboxEvent) (*domain.OutboxEvent, error) {
	return ev, nil
}

func (f *fakeOutbox) GetAndMarkAsProcessing(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch := make([]*domain.OutboxEvent, 0, limit)
	for _, r := range f.rows {
		if len(batch) == limit {
			break
		}
		if r.event.Status != domain.OutboxPending || r.nextAttemptAt.After(f.now) {
			continue
		}
		r.event.Status = domain.OutboxProcessing
		ev := *r.event
		batch = append(batch, &ev)
	}
	return batch, nil
}

func (f *fakeOutbox) MarkAsProcessed(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.event.ID == id && r.event.Status == domain.OutboxProcessing {
			r.event.Status = domain.OutboxProcessed
		}
	}
	f.processed = append(f.processed, id)
	return nil
}

func (f *fakeOutbox) Reschedule(_ context.Context, id int64, maxAttempts int, delay time.Duration) (domain.OutboxStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rescheduled[id] = maxAttempts
	f.delays[id] = append(f.delays[id], delay)
	for _, r := range f.rows {
		if r.event.ID != id {
			continue
		}
		r.event.Attempts++
		r.nextAttemptAt = f.now.Add(delay)
		r.event.Status = domain.OutboxPending
		if r.event.Attempts >= maxAttempts {
			r.event.Status = domain.OutboxFailed
		}
		return r.event.Status, nil
	}
	return "", errors.New("outbox event not found")
}

func (f *fakeOutbox) RequeueStuck(context.Context, time.Duration) (int64, error) { return 0, nil }

type fakeProducer struct {
	mu    sync.Mutex
	calls int
	sent  []string
	fail  map[string]error
}

func (f *fakeProducer) WriteRawMessage(_ context.Context, req *usecase.WriteRawMessageReq) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.fail[req.EventID]; err != nil {
		return err
	}
	f.sent = append(f.sent, req.EventID)
	return nil
}

func outboxEvent(id int64, eventID string) *domain.OutboxEvent {
	ev := domain.NewOutboxEvent(eventID, domain.EventOrderPlaced, id, []byte("{}"), time.Now())
	ev.ID = id
	return ev
}

func TestProcessBatchPublishesAndReschedules(t *testing.T) {
	repo := newFakeOutbox(outboxEvent(1, "ok"), outboxEvent(2, "retry"), outboxEvent(3, "broken"))
	producer := &fakeProducer{fail: map[string]error{
		"retry":  errors.New("dial tcp: connection refused"),
		"broken": errors.New("message too large"),
	}}
	w := NewOutboxWorker(repo, logger.NewNopLogger(), producer, &cfg.OutboxCfg{BatchSize: 10, PollInterval: time.Hour, MaxRetries: 5}, "")

	hasMore, err := w.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, hasMore)

	assert.Equal(t, []string{"ok"}, producer.sent)
	assert.Equal(t, []int64{1}, repo.processed)
	assert.Equal(t, 5, repo.rescheduled[2])
	assert.Equal(t, 1, repo.rescheduled[3])
}

func TestDrainDefersRetriesToNextAttempt(t *testing.T) {
	repo := newFakeOutbox(outboxEvent(1, "a"), outboxEvent(2, "b"))
	refused := errors.New("dial tcp 10.0.0.5:9092: connect: connection refused")
	producer := &fakeProducer{fail: map[string]error{"a": refused, "b": refused}}
	w := NewOutboxWorker(repo, logger.NewNopLogger(), producer,
		&cfg.OutboxCfg{BatchSize: 2, PollInterval: time.Hour, MaxRetries: 5, RetryBaseDelay: time.Second, RetryMaxDelay: time.Minute}, "")

	w.drain(context.Background())

	assert.Equal(t, 2, producer.calls, "one delivery attempt per event")
	for _, id := range []int64{1, 2} {
		r := repo.row(id)
		assert.Equal(t, domain.OutboxPending, r.event.Status)
		assert.Equal(t, 1, r.event.Attempts)
		assert.GreaterOrEqual(t, r.nextAttemptAt.Sub(repo.now), time.Second)
	}

	w.drain(context.Background())
	assert.Equal(t, 2, producer.calls, "nothing is due before next_attempt_at")

	for range 4 {
		repo.advance(10 * time.Minute)
		w.drain(context.Background())
	}

	assert.Equal(t, 10, producer.calls)
	for _, id := range []int64{1, 2} {
		r := repo.row(id)
		assert.Equal(t, domain.OutboxFailed, r.event.Status)
		assert.Equal(t, 5, r.event.Attempts)

		delays := repo.delays[id]
		require.Len(t, delays, 5)
		assert.Less(t, delays[0], delays[1])
		assert.LessOrEqual(t, delays[4], time.Minute+time.Minute/2)
	}
}

func TestProcessBatchStopsAfterReschedule(t *testing.T) {
	repo := newFakeOutbox(outboxEvent(1, "ok"), outboxEvent(2, "retry"), outboxEvent(3, "later"))
	producer := &fakeProducer{fail: map[string]error{"retry": errors.New("i/o timeout")}}
	w := NewOutboxWorker(repo, logger.NewNopLogger(), producer, &cfg.OutboxCfg{BatchSize: 2, PollInterval: time.Hour, MaxRetries: 5}, "")

	hasMore, err := w.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, hasMore)
	assert.Equal(t, domain.OutboxPending, repo.row(3).event.Status)
	assert.GreaterOrEqual(t, repo.delays[2][0], defaultRetryBaseDelay)
}

func TestWorkerDrainsOnStart(t *testing.T) {
	events := make([]*domain.OutboxEvent, 0, 5)
	for i := int64(1); i <= 5; i++ {
		events = append(events, outboxEvent(i, "ev"))
	}
	repo := newFakeOutbox(events...)
	producer := &fakeProducer{}
	w := NewOutboxWorker(repo, logger.NewNopLogger(), producer, &cfg.OutboxCfg{BatchSize: 2, PollInterval: time.Hour, MaxRetries: 5}, "")

	w.Start(context.Background())
	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.processed) == 5
	}, time.Second, 5*time.Millisecond)
	w.Stop()
	w.Stop()
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(errors.New("read: connection reset by peer")))
	assert.True(t, isRetryableError(context.DeadlineExceeded))
	assert.False(t, isRetryableError(errors.New("message too large")))
	assert.False(t, isRetryableError(nil))
}
