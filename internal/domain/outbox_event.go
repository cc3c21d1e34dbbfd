package domain

import "time"

// OutboxStatus — состояние события в таблице outbox_events.
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "PENDING"
	OutboxProcessing OutboxStatus = "PROCESSING"
	OutboxProcessed  OutboxStatus = "PROCESSED"
	OutboxFailed     OutboxStatus = "FAILED"
)

// OutboxEventType — тип доменного события.
type OutboxEventType string

const (
	EventOrderPlaced OutboxEventType = "ORDER_PLACED"
)

// OutboxEvent — событие, записанное в одной транзакции с изменением и доставляемое в Kafka воркером.
type OutboxEvent struct {
	ID          int64
	EventID     string
	EventType   OutboxEventType
	AggregateID int64 // Ключ партиционирования (ID заказа)
	Payload     []byte
	Status      OutboxStatus
	Attempts    int
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

func NewOutboxEvent(eventID string, eventType OutboxEventType, aggregateID int64, payload []byte, createdAt time.Time) *OutboxEvent {
	return &OutboxEvent{
		EventID:     eventID,
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     payload,
		Status:      OutboxPending,
		CreatedAt:   createdAt,
	}
}
