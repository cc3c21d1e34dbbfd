package domain

import (
	"fmt"
	"math"
	"time"
)

const (
	// MaxItemQuantity — верхняя граница количества в одной позиции.
	MaxItemQuantity int32 = 10_000
	// MaxOrderTotal — верхняя граница суммы заказа в копейках.
	MaxOrderTotal int64 = 1_000_000_000_000_000
)

// ErrOrderTotalOverflow возвращается, когда сумма позиции или заказа выходит за MaxOrderTotal.
var ErrOrderTotalOverflow = fmt.Errorf("order total exceeds limit")

// OrderStatus — статус заказа.
type OrderStatus string

const (
	OrderStatusAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	OrderStatusPaid            OrderStatus = "PAID"
	OrderStatusShipped         OrderStatus = "SHIPPED"
	OrderStatusDelivered       OrderStatus = "DELIVERED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
)

// Valid сообщает, входит ли статус в известный набор.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusAwaitingPayment, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCanceled:
		return true
	default:
		return false
	}
}

// Order описывает заказ клиента.
// ClientID задаётся один раз при создании и больше не меняется.
type Order struct {
	ID       int64
	Moment   time.Time
	Status   OrderStatus
	ClientID int64
	Items    []OrderItem
}

// OrderItem — позиция заказа. Price фиксируется на момент оформления (в копейках).
type OrderItem struct {
	OrderID   int64
	ProductID int64
	Quantity  int32
	Price     int64
}

// NewOrder создаёт заказ в статусе AWAITING_PAYMENT.
func NewOrder(clientID int64, moment time.Time) *Order {
	return &Order{
		Moment:   moment.UTC(),
		Status:   OrderStatusAwaitingPayment,
		ClientID: clientID,
		Items:    make([]OrderItem, 0),
	}
}

// AddItem добавляет позицию с ценой, прочитанной из каталога в момент оформления.
// Позиция не добавляется, если её стоимость или новая сумма заказа превышают MaxOrderTotal.
func (o *Order) AddItem(productID int64, quantity int32, price int64) error {
	item := OrderItem{
		OrderID:   o.ID,
		ProductID: productID,
		Quantity:  quantity,
		Price:     price,
	}

	sub, ok := item.checkedSubTotal()
	if !ok {
		return fmt.Errorf("product %d: %w", productID, ErrOrderTotalOverflow)
	}

	total, err := o.CheckedTotal()
	if err != nil {
		return err
	}
	if total > MaxOrderTotal-sub {
		return fmt.Errorf("product %d: %w", productID, ErrOrderTotalOverflow)
	}

	o.Items = append(o.Items, item)
	return nil
}

// checkedSubTotal считает стоимость позиции без переполнения int64.
func (i OrderItem) checkedSubTotal() (int64, bool) {
	if i.Quantity < 0 || i.Price < 0 {
		return 0, false
	}
	if i.Quantity == 0 || i.Price == 0 {
		return 0, true
	}
	if i.Price > math.MaxInt64/int64(i.Quantity) {
		return 0, false
	}

	sub := int64(i.Quantity) * i.Price
	if sub > MaxOrderTotal {
		return 0, false
	}

	return sub, true
}

// SubTotal возвращает стоимость позиции. Для позиций, добавленных через AddItem,
// результат не превышает MaxOrderTotal.
func (i OrderItem) SubTotal() int64 {
	sub, ok := i.checkedSubTotal()
	if !ok {
		return 0
	}

	return sub
}

// CheckedTotal возвращает сумму заказа в копейках или ErrOrderTotalOverflow.
func (o *Order) CheckedTotal() (int64, error) {
	var total int64
	for _, item := range o.Items {
		sub, ok := item.checkedSubTotal()
		if !ok || total > MaxOrderTotal-sub {
			return 0, ErrOrderTotalOverflow
		}
		total += sub
	}

	return total, nil
}

// Total возвращает сумму заказа в копейках. Заказ, собранный через AddItem,
// никогда не выходит за MaxOrderTotal.
func (o *Order) Total() int64 {
	total, err := o.CheckedTotal()
	if err != nil {
		return 0
	}

	return total
}

// IsOwnedBy сообщает, принадлежит ли заказ пользователю.
func (o *Order) IsOwnedBy(userID int64) bool {
	return o.ClientID == userID
}
