package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
	"github.com/DRSN-tech/dscommerce-backend/pkg/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var orderTracer = otel.Tracer("usecase/order")

// OrderUseCase оформляет заказы и выдаёт их владельцу или администратору.
type OrderUseCase struct {
	now        func() time.Time
	pricing    PricingSource
	orderRepo  OrderRepository
	outboxRepo OutboxRepository
	userRepo   UserRepository
	catalog    ProductCatalog
	policy     AccessPolicy
	tx         TxManager
	encoder    EventEncoder
	metrics    OrderMetrics
	logger     logger.Logger
}

// ProductCatalog отдаёт сведения о товарах для отображения позиций заказа.
type ProductCatalog interface {
	GetProductsInfo(ctx context.Context, req *GetProductsReq) (*GetProductsRes, error)
}

func NewOrderUC(
	now func() time.Time,
	pricing PricingSource,
	orderRepo OrderRepository,
	outboxRepo OutboxRepository,
	userRepo UserRepository,
	catalog ProductCatalog,
	policy AccessPolicy,
	tx TxManager,
	encoder EventEncoder,
	metrics OrderMetrics,
	logger logger.Logger,
) *OrderUseCase {
	if now == nil {
		now = time.Now
	}

	return &OrderUseCase{
		now:        now,
		pricing:    pricing,
		orderRepo:  orderRepo,
		outboxRepo: outboxRepo,
		userRepo:   userRepo,
		catalog:    catalog,
		policy:     policy,
		tx:         tx,
		encoder:    encoder,
		metrics:    metrics,
		logger:     logger,
	}
}

// PlaceOrder создаёт заказ от имени caller. Цена каждой позиции читается из каталога
// в момент оформления и больше не меняется. Заказ, позиции и событие ORDER_PLACED
// сохраняются в одной транзакции.
func (o *OrderUseCase) PlaceOrder(ctx context.Context, caller *domain.Caller, req *PlaceOrderReq) (_ *OrderView, err error) {
	const op = "OrderUseCase.PlaceOrder"

	ctx, span := orderTracer.Start(ctx, op)
	defer func() { endSpan(span, err) }()

	if caller == nil {
		return nil, e.Wrap(op, e.ErrUnauthenticated)
	}
	span.SetAttributes(attribute.Int64("order.client_id", caller.ID))

	if err := validatePlaceOrder(req); err != nil {
		return nil, e.Wrap(op, err)
	}

	var (
		order    *domain.Order
		products = make(map[int64]*domain.Product, len(req.Items))
	)

	err = o.tx.Do(ctx, func(ctx context.Context) error {
		order = domain.NewOrder(caller.ID, o.now())

		for i, item := range req.Items {
			product, err := o.pricing.GetByID(ctx, item.ProductID)
			if err != nil {
				return err
			}

			products[product.ID] = product
			if err := order.AddItem(product.ID, item.Quantity, product.Price); err != nil {
				if errors.Is(err, domain.ErrOrderTotalOverflow) {
					verr := e.NewValidationError()
					verr.Add(fmt.Sprintf("items[%d].quantity", i), "order total exceeds limit")
					return verr
				}
				return err
			}
		}

		created, err := o.orderRepo.Create(ctx, order)
		if err != nil {
			return err
		}
		order = created

		payload, err := o.encoder.EncodeOrderPlaced(order)
		if err != nil {
			return err
		}

		event := domain.NewOutboxEvent(uuid.NewString(), domain.EventOrderPlaced, order.ID, payload, o.now())
		if _, err := o.outboxRepo.Create(ctx, event); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	span.SetAttributes(
		attribute.Int64("order.id", order.ID),
		attribute.Int("order.items", len(order.Items)),
	)
	o.metrics.OrderPlaced(order.Total())
	o.logger.Infof("order placed: id=%d client_id=%d items=%d total=%d", order.ID, order.ClientID, len(order.Items), order.Total())

	names := make(map[int64]string, len(products))
	for id, p := range products {
		names[id] = p.Name
	}

	return newOrderView(order, ClientView{ID: caller.ID, Name: caller.Name}, names), nil
}

// GetOrder возвращает заказ, если caller — его владелец или администратор.
// Отсутствие заказа проверяется раньше прав доступа.
func (o *OrderUseCase) GetOrder(ctx context.Context, caller *domain.Caller, id int64) (_ *OrderView, err error) {
	const op = "OrderUseCase.GetOrder"

	ctx, span := orderTracer.Start(ctx, op, trace.WithAttributes(attribute.Int64("order.id", id)))
	defer func() { endSpan(span, err) }()

	order, err := o.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if err := o.policy.AuthorizeAccess(caller, order.ClientID); err != nil {
		if errors.Is(err, e.ErrForbidden) {
			o.metrics.AccessDenied("order")
			o.logger.Warnf("order access denied: order_id=%d caller_id=%d", id, caller.ID)
		}
		return nil, e.Wrap(op, err)
	}

	owner, err := o.userRepo.GetByID(ctx, order.ClientID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	names, err := o.productNames(ctx, order)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return newOrderView(order, ClientView{ID: owner.ID, Name: owner.Name}, names), nil
}

// productNames подтягивает названия товаров из каталога (кэш, затем БД).
func (o *OrderUseCase) productNames(ctx context.Context, order *domain.Order) (map[int64]string, error) {
	ids := make([]int64, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}

	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	res, err := o.catalog.GetProductsInfo(ctx, NewGetProductsReq(ids))
	if err != nil {
		return nil, err
	}

	for _, p := range res.Products {
		names[p.ID] = p.Name
	}

	return names, nil
}

// validatePlaceOrder проверяет позиции заказа. Повторяющиеся товары отклоняются:
// позиция заказа однозначно определяется парой (заказ, товар).
func validatePlaceOrder(req *PlaceOrderReq) error {
	verr := e.NewValidationError()
	if req == nil || len(req.Items) == 0 {
		verr.Add("items", "order must contain at least one item")
		return verr
	}

	seen := make(map[int64]struct{}, len(req.Items))
	for i, item := range req.Items {
		if item.ProductID <= 0 {
			verr.Add(fmt.Sprintf("items[%d].productId", i), "product id must be positive")
		}
		switch {
		case item.Quantity <= 0:
			verr.Add(fmt.Sprintf("items[%d].quantity", i), "quantity must be positive")
		case item.Quantity > domain.MaxItemQuantity:
			verr.Add(fmt.Sprintf("items[%d].quantity", i), fmt.Sprintf("quantity must not exceed %d", domain.MaxItemQuantity))
		}
		if _, dup := seen[item.ProductID]; dup && item.ProductID > 0 {
			verr.Add(fmt.Sprintf("items[%d].productId", i), "duplicate product")
		}
		seen[item.ProductID] = struct{}{}
	}

	return verr.OrNil()
}

func newOrderView(order *domain.Order, client ClientView, names map[int64]string) *OrderView {
	items := make([]OrderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemView{
			ProductID: item.ProductID,
			Name:      names[item.ProductID],
			Quantity:  item.Quantity,
			Price:     item.Price,
			SubTotal:  item.SubTotal(),
		})
	}

	return &OrderView{
		ID:     order.ID,
		Moment: order.Moment,
		Status: order.Status,
		Client: client,
		Items:  items,
		Total:  order.Total(),
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
