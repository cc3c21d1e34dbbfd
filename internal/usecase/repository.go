package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
)

// OrderRepository хранит заказы и их позиции.
// GetByID возвращает ошибку, оборачивающую e.ErrResourceNotFound, если заказа нет.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) (*domain.Order, error)
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
}

// PricingSource — источник актуальной цены товара на момент оформления заказа.
type PricingSource interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
}

type ProductRepository interface {
	PricingSource
	GetByIDs(ctx context.Context, ids []int64) ([]domain.Product, error)
	Search(ctx context.Context, name string, page, size int) ([]domain.Product, int64, error)
	Create(ctx context.Context, product *domain.Product) (*domain.Product, error)
	Update(ctx context.Context, product *domain.Product) (*domain.Product, error)
	UpdateImageURL(ctx context.Context, id int64, imageURL string) error
	Delete(ctx context.Context, id int64) error
}

type CategoryRepository interface {
	FindAll(ctx context.Context) ([]domain.Category, error)
	ExistingIDs(ctx context.Context, ids []int64) ([]int64, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, event *domain.OutboxEvent) (*domain.OutboxEvent, error)
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) error
	Reschedule(ctx context.Context, id int64, maxAttempts int, delay time.Duration) (domain.OutboxStatus, error)
	RequeueStuck(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CacheRepository кэширует карточки товаров. SetProducts принимает версии,
// прочитанные GetProducts до обращения к БД, и не записывает товар,
// инвалидированный после этого чтения.
type CacheRepository interface {
	GetProducts(ctx context.Context, ids []int64) (*CachedProducts, error)
	SetProducts(ctx context.Context, products []ProductInfo, versions CacheVersions) error
	InvalidateProducts(ctx context.Context, ids []int64) error
}

// SessionRepository хранит выданные токены доступа.
// GetUserID возвращает e.ErrUnauthenticated для неизвестного или истёкшего токена.
type SessionRepository interface {
	Save(ctx context.Context, token string, userID int64, ttl time.Duration) error
	GetUserID(ctx context.Context, token string) (int64, error)
	Delete(ctx context.Context, token string) error
}

type ImageRepository interface {
	Upload(ctx context.Context, image *domain.Image) (string, error)
	Delete(ctx context.Context, key string) error
}
