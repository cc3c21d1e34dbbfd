package converter

import (
	"fmt"

	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
)

// ProductConverter преобразует сущности Product между domain и моделью PostgreSQL.
type ProductConverter interface {
	ToModel(entity *domain.Product) *ProductModel
	ToEntity(model *ProductModel, categories []domain.Category) *domain.Product
}

// CategoryConverter преобразует сущности Category между domain и моделью PostgreSQL.
type CategoryConverter interface {
	ToEntity(model *CategoryModel) *domain.Category
	ToArrEntity(models []CategoryModel) []domain.Category
}

// UserConverter собирает пользователя вместе с ролями.
type UserConverter interface {
	ToEntity(model *UserModel) (*domain.User, error)
}

// OrderConverter преобразует заказ и его позиции.
type OrderConverter interface {
	ToModel(entity *domain.Order) (*OrderModel, []OrderItemModel)
	ToEntity(model *OrderModel, items []OrderItemModel) (*domain.Order, error)
}

// OutboxEventConverter преобразует события outbox между domain и моделью PostgreSQL.
type OutboxEventConverter interface {
	ToModel(entity *domain.OutboxEvent) *OutboxEventModel
	ToEntity(model *OutboxEventModel) *domain.OutboxEvent
	ToArrEntity(models []*OutboxEventModel) []*domain.OutboxEvent
}

type ProductConverterImpl struct{}

func NewProductConverterImpl() *ProductConverterImpl { return &ProductConverterImpl{} }

func (ProductConverterImpl) ToModel(entity *domain.Product) *ProductModel {
	if entity == nil {
		return nil
	}

	return &ProductModel{
		ID:          entity.ID,
		Name:        entity.Name,
		Description: entity.Description,
		Price:       entity.Price,
		ImgURL:      entity.ImageURL,
	}
}

func (ProductConverterImpl) ToEntity(model *ProductModel, categories []domain.Category) *domain.Product {
	if model == nil {
		return nil
	}

	ids := make([]int64, 0, len(categories))
	for _, c := range categories {
		ids = append(ids, c.ID)
	}

	return &domain.Product{
		ID:          model.ID,
		Name:        model.Name,
		Description: model.Description,
		Price:       model.Price,
		ImageURL:    model.ImgURL,
		CategoryIDs: ids,
		Categories:  categories,
	}
}

type CategoryConverterImpl struct{}

func NewCategoryConverterImpl() *CategoryConverterImpl { return &CategoryConverterImpl{} }

func (CategoryConverterImpl) ToEntity(model *CategoryModel) *domain.Category {
	if model == nil {
		return nil
	}

	return domain.NewCategory(model.ID, model.Name)
}

func (c CategoryConverterImpl) ToArrEntity(models []CategoryModel) []domain.Category {
	res := make([]domain.Category, 0, len(models))
	for i := range models {
		res = append(res, *c.ToEntity(&models[i]))
	}

	return res
}

type UserConverterImpl struct{}

func NewUserConverterImpl() *UserConverterImpl { return &UserConverterImpl{} }

// ToEntity отклоняет неизвестные authority: набор ролей закрыт.
func (UserConverterImpl) ToEntity(model *UserModel) (*domain.User, error) {
	if model == nil {
		return nil, nil
	}

	roles := make([]domain.Role, 0, len(model.Authorities))
	for _, a := range model.Authorities {
		role, err := domain.ParseRole(a)
		if err != nil {
			return nil, fmt.Errorf("user %d: %w", model.ID, err)
		}
		roles = append(roles, role)
	}

	return &domain.User{
		ID:           model.ID,
		Name:         model.Name,
		Email:        model.Email,
		Phone:        model.Phone,
		BirthDate:    model.BirthDate,
		PasswordHash: model.Password,
		Roles:        roles,
	}, nil
}

type OrderConverterImpl struct{}

func NewOrderConverterImpl() *OrderConverterImpl { return &OrderConverterImpl{} }

func (OrderConverterImpl) ToModel(entity *domain.Order) (*OrderModel, []OrderItemModel) {
	items := make([]OrderItemModel, 0, len(entity.Items))
	for _, item := range entity.Items {
		items = append(items, OrderItemModel{
			OrderID:   entity.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	return &OrderModel{
		ID:       entity.ID,
		Moment:   entity.Moment,
		Status:   string(entity.Status),
		ClientID: entity.ClientID,
	}, items
}

func (OrderConverterImpl) ToEntity(model *OrderModel, items []OrderItemModel) (*domain.Order, error) {
	status := domain.OrderStatus(model.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("order %d: unknown status %q", model.ID, model.Status)
	}

	order := &domain.Order{
		ID:       model.ID,
		Moment:   model.Moment.UTC(),
		Status:   status,
		ClientID: model.ClientID,
		Items:    make([]domain.OrderItem, 0, len(items)),
	}
	for _, item := range items {
		order.Items = append(order.Items, domain.OrderItem{
			OrderID:   model.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	return order, nil
}

type OutboxEventConverterImpl struct{}

func NewOutboxEventConverterImpl() *OutboxEventConverterImpl { return &OutboxEventConverterImpl{} }

func (OutboxEventConverterImpl) ToModel(entity *domain.OutboxEvent) *OutboxEventModel {
	return &OutboxEventModel{
		ID:          entity.ID,
		EventID:     entity.EventID,
		EventType:   string(entity.EventType),
		AggregateID: entity.AggregateID,
		Payload:     entity.Payload,
		Status:      string(entity.Status),
		Attempts:    entity.Attempts,
		CreatedAt:   entity.CreatedAt,
		ProcessedAt: entity.ProcessedAt,
	}
}

func (OutboxEventConverterImpl) ToEntity(model *OutboxEventModel) *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:          model.ID,
		EventID:     model.EventID,
		EventType:   domain.OutboxEventType(model.EventType),
		AggregateID: model.AggregateID,
		Payload:     model.Payload,
		Status:      domain.OutboxStatus(model.Status),
		Attempts:    model.Attempts,
		CreatedAt:   model.CreatedAt,
		ProcessedAt: model.ProcessedAt,
	}
}

func (c OutboxEventConverterImpl) ToArrEntity(models []*OutboxEventModel) []*domain.OutboxEvent {
	res := make([]*domain.OutboxEvent, 0, len(models))
	for _, m := range models {
		res = append(res, c.ToEntity(m))
	}

	return res
}
