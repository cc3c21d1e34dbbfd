package usecase

import (
	"context"

	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
)

// TxManager выполняет fn в одной транзакции. Ошибка fn откатывает все изменения.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type ImagesInfra interface {
	UploadImages(ctx context.Context, req *UploadImagesReq) (*UploadImagesRes, error)
	CleanupImages(keys []string)
	PublicURL(key string) string
}

// EventEncoder сериализует доменные события для outbox.
type EventEncoder interface {
	EncodeOrderPlaced(order *domain.Order) ([]byte, error)
}

type MessageProducer interface {
	WriteRawMessage(ctx context.Context, req *WriteRawMessageReq) error
}

type PasswordHasher interface {
	Compare(hash, password string) error
}

// OrderMetrics собирает бизнес-метрики заказов.
type OrderMetrics interface {
	OrderPlaced(total int64)
	AccessDenied(reason string)
}
