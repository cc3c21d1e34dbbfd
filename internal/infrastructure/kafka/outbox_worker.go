package kafka

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/dscommerce-backend/internal/cfg"
	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
	"github.com/DRSN-tech/dscommerce-backend/internal/usecase"
	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
	"github.com/DRSN-tech/dscommerce-backend/pkg/jitter"
	"github.com/DRSN-tech/dscommerce-backend/pkg/logger"
	"github.com/jackc/pgx/v5"
)

const (
	outboxChannel = "outbox_pending"
	// stuckAfter — через сколько событие в PROCESSING считается брошенным упавшим воркером.
	stuckAfter = 5 * time.Minute

	defaultRetryBaseDelay = time.Second
	defaultRetryMaxDelay  = 5 * time.Minute
)

// OutboxWorker доставляет события из outbox_events в Kafka.
// Будится по NOTIFY и дополнительно опрашивает таблицу с интервалом PollInterval.
type OutboxWorker struct {
	repo      usecase.OutboxRepository
	logger    logger.Logger
	producer  usecase.MessageProducer
	cfg       *cfg.OutboxCfg
	stop      chan struct{}
	stopOnce  sync.Once
	wake      chan struct{}
	wg        sync.WaitGroup
	dbConnStr string
}

func NewOutboxWorker(
	repo usecase.OutboxRepository,
	logger logger.Logger,
	producer usecase.MessageProducer,
	cfg *cfg.OutboxCfg,
	dbConnStr string,
) *OutboxWorker {
	c := *cfg
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = defaultRetryBaseDelay
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		c.RetryMaxDelay = max(defaultRetryMaxDelay, c.RetryBaseDelay)
	}

	return &OutboxWorker{
		repo:      repo,
		logger:    logger,
		producer:  producer,
		cfg:       &c,
		stop:      make(chan struct{}),
		wake:      make(chan struct{}, 1),
		dbConnStr: dbConnStr,
	}
}

func (w *OutboxWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()

	if w.dbConnStr != "" {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.listenOutboxNotifications(ctx)
		}()
	}
}

// Stop останавливает воркер и ждёт завершения текущего пакета.
func (w *OutboxWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	w.wg.Wait()
}

func (w *OutboxWorker) run(ctx context.Context) {
	w.logger.Infof("Draining pending outbox events on startup...")
	w.requeueStuck(ctx)
	w.drain(ctx)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Infof("Outbox worker stopped by context cancellation")
			return
		case <-w.stop:
			w.logger.Infof("Outbox worker stopped")
			return
		case <-ticker.C:
			w.requeueStuck(ctx)
			w.drain(ctx)
		case <-w.wake:
			w.drain(ctx)
		}
	}
}

// notify будит цикл обработки, не блокируясь, если сигнал уже ожидает.
func (w *OutboxWorker) notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// drain обрабатывает пакеты, пока они не закончатся. Ошибки чтения пакета
// повторяются с экспоненциальной задержкой.
func (w *OutboxWorker) drain(ctx context.Context) {
	backoff := jitter.NewBackoff(200*time.Millisecond, 10*time.Second)
	for {
		hasMore, err := w.processBatch(ctx)
		if err != nil {
			if backoff.Attempt() >= w.cfg.MaxRetries {
				w.logger.Errorf(err, "outbox batch failed %d times, waiting for next tick", backoff.Attempt())
				return
			}
			w.logger.Warnf("outbox batch failed: %v", err)

			select {
			case <-time.After(backoff.Next()):
				continue
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			}
		}
		if !hasMore {
			return
		}
		backoff.Reset()
	}
}

func (w *OutboxWorker) requeueStuck(ctx context.Context) {
	n, err := w.repo.RequeueStuck(ctx, stuckAfter)
	if err != nil {
		w.logger.Warnf("requeue stuck outbox events failed: %v", err)
		return
	}
	if n > 0 {
		w.logger.Warnf("requeued %d stuck outbox events", n)
	}
}

func (w *OutboxWorker) listenOutboxNotifications(ctx context.Context) {
	var conn *pgx.Conn

	connect := func() error {
		var err error
		conn, err = pgx.Connect(ctx, w.dbConnStr)
		if err != nil {
			return e.Wrap("failed to connect for LISTEN", err)
		}

		if _, err = conn.Exec(ctx, "LISTEN "+outboxChannel); err != nil {
			conn.Close(ctx)
			conn = nil
			return e.Wrap("failed to LISTEN", err)
		}

		w.logger.Infof("Subscribed to '%s' channel", outboxChannel)
		return nil
	}

	if err := connect(); err != nil {
		w.logger.Warnf("Initial connect failed, falling back to polling: %v", err)
	}
	defer func() {
		if conn != nil {
			conn.Close(context.Background())
		}
	}()

	reconnect := jitter.NewBackoff(2*time.Second, time.Minute)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		default:
		}

		if conn == nil {
			select {
			case <-time.After(reconnect.Next()):
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			}
			if err := connect(); err != nil {
				w.logger.Warnf("Reconnect failed: %v", err)
			} else {
				reconnect.Reset()
			}
			continue
		}

		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		notif, err := conn.WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				continue
			}
			w.logger.Warnf("Connection lost: %v. Reconnecting...", err)
			conn.Close(ctx)
			conn = nil
			continue
		}

		if notif != nil && notif.Channel == outboxChannel {
			w.logger.Debugf("Received outbox notification")
			w.notify()
		}
	}
}

// processBatch публикует один пакет. Пакет, в котором хотя бы одно событие
// отложено, завершает drain: отложенные события ждут своего next_attempt_at.
func (w *OutboxWorker) processBatch(ctx context.Context) (bool, error) {
	events, err := w.repo.GetAndMarkAsProcessing(ctx, w.cfg.BatchSize)
	if err != nil {
		return false, err
	}

	if len(events) == 0 {
		return false, nil
	}

	rescheduled := 0
	for _, event := range events {
		if err := w.processEvent(ctx, event); err != nil {
			w.reschedule(ctx, event, err)
			rescheduled++
			continue
		}
		if err := w.repo.MarkAsProcessed(ctx, event.ID); err != nil {
			w.logger.Warnf("mark processed failed: %v", err)
		}
	}

	return rescheduled == 0 && len(events) == w.cfg.BatchSize, nil
}

func (w *OutboxWorker) reschedule(ctx context.Context, event *domain.OutboxEvent, cause error) {
	maxAttempts := w.cfg.MaxRetries
	if !isRetryableError(cause) {
		// Постоянная ошибка: событие сразу уходит в FAILED.
		maxAttempts = 1
	}

	delay := w.retryDelay(event.Attempts)
	status, err := w.repo.Reschedule(ctx, event.ID, maxAttempts, delay)
	if err != nil {
		w.logger.Errorf(err, "reschedule outbox event %s failed", event.EventID)
		return
	}

	if status == domain.OutboxFailed {
		w.logger.Errorf(cause, "outbox event %s (%s) moved to FAILED", event.EventID, event.EventType)
		return
	}
	w.logger.Warnf("outbox event %s will be retried in %s: %v", event.EventID, delay, cause)
}

// retryDelay — задержка перед попыткой attempts+1.
func (w *OutboxWorker) retryDelay(attempts int) time.Duration {
	return jitter.ExponentialBackoff(w.cfg.RetryBaseDelay, w.cfg.RetryMaxDelay, attempts, jitter.DefaultJitter)
}

func (w *OutboxWorker) processEvent(ctx context.Context, event *domain.OutboxEvent) error {
	if err := w.producer.WriteRawMessage(ctx, usecase.NewWriteRawMessageReq(event)); err != nil {
		if isRetryableError(err) {
			return e.Wrap("temporary Kafka failure, will retry", err)
		}
		return e.Wrap("permanent Kafka failure", err)
	}
	return nil
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"i/o timeout",
		"network is unreachable",
		"broker not available",
		"leader not available",
		"connection reset",
		"broken pipe",
		"no such host",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(errStr, phrase) {
			return true
		}
	}
	return false
}
