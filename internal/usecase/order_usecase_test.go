package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
	"github.com/DRSN-tech/dscommerce-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 7, 25, 13, 0, 0, 0, time.UTC)

type orderFixture struct {
	store    *memStore
	products *fakeProductRepo
	orders   *fakeOrderRepo
	outbox   *fakeOutboxRepo
	tx       *fakeTx
	metrics  *fakeMetrics
	uc       *OrderUseCase
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()

	store := newMemStore()
	f := &orderFixture{
		store:    store,
		products: &fakeProductRepo{store: store},
		orders:   &fakeOrderRepo{store: store},
		outbox:   &fakeOutboxRepo{store: store},
		tx:       &fakeTx{store: store},
		metrics:  &fakeMetrics{},
	}

	log := logger.NewNopLogger()
	catalog := NewProductUC(f.products, &fakeCategoryRepo{store: store}, f.tx, &fakeImages{}, newFakeCache(), log)
	f.uc = NewOrderUC(
		func() time.Time { return fixedNow },
		f.products,
		f.orders,
		f.outbox,
		&fakeUserRepo{store: store},
		catalog,
		NewAccessPolicy(),
		f.tx,
		fakeEncoder{},
		f.metrics,
		log,
	)

	return f
}

func (f *orderFixture) place(t *testing.T, callerID int64, items ...PlaceOrderItem) *OrderView {
	t.Helper()
	view, err := f.uc.PlaceOrder(context.Background(), f.store.caller(callerID), NewPlaceOrderReq(items))
	require.NoError(t, err)
	return view
}

func TestPlaceOrderTwoItems(t *testing.T) {
	f := newOrderFixture(t)

	view := f.place(t, 2, NewPlaceOrderItem(1, 1), NewPlaceOrderItem(3, 1))

	assert.NotZero(t, view.ID)
	assert.Equal(t, domain.OrderStatusAwaitingPayment, view.Status)
	assert.Equal(t, fixedNow, view.Moment)
	assert.Equal(t, ClientView{ID: 2, Name: "Bob Green"}, view.Client)
	assert.Equal(t, int64(127000), view.Total)

	require.Len(t, view.Items, 2)
	assert.Equal(t, OrderItemView{ProductID: 1, Name: "The Lord of the Rings", Quantity: 1, Price: 1000, SubTotal: 1000}, view.Items[0])
	assert.Equal(t, OrderItemView{ProductID: 3, Name: "Macbook Pro", Quantity: 1, Price: 125000, SubTotal: 125000}, view.Items[1])

	stored, err := f.orders.GetByID(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.ClientID)

	require.Equal(t, 1, f.store.outboxCount())
	event := f.store.outbox[0]
	assert.Equal(t, domain.EventOrderPlaced, event.EventType)
	assert.Equal(t, view.ID, event.AggregateID)
	assert.Equal(t, domain.OutboxPending, event.Status)

	assert.Equal(t, []int64{127000}, f.metrics.placed)
	assert.Equal(t, 1, f.tx.calls)
}

func TestPlaceOrderKeepsSubmissionOrder(t *testing.T) {
	f := newOrderFixture(t)

	view := f.place(t, 1, NewPlaceOrderItem(4, 2), NewPlaceOrderItem(1, 3), NewPlaceOrderItem(3, 1))

	ids := make([]int64, 0, len(view.Items))
	for _, item := range view.Items {
		ids = append(ids, item.ProductID)
	}
	assert.Equal(t, []int64{4, 1, 3}, ids)
	assert.Equal(t, int64(2*120000+3*1000+125000), view.Total)
}

func TestPlaceOrderFreezesPrice(t *testing.T) {
	f := newOrderFixture(t)
	placed := f.place(t, 2, NewPlaceOrderItem(3, 2))

	f.products.setPrice(3, 99900)

	view, err := f.uc.GetOrder(context.Background(), f.store.caller(2), placed.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, int64(125000), view.Items[0].Price)
	assert.Equal(t, int64(250000), view.Total)

	next := f.place(t, 2, NewPlaceOrderItem(3, 1))
	assert.Equal(t, int64(99900), next.Items[0].Price)
}

func TestPlaceOrderOwnerIsCaller(t *testing.T) {
	f := newOrderFixture(t)

	view := f.place(t, 9, NewPlaceOrderItem(1, 1))

	stored, err := f.orders.GetByID(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), stored.ClientID)
	assert.Equal(t, int64(9), view.Client.ID)
}

func TestPlaceOrderUnknownProductRollsBack(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.uc.PlaceOrder(context.Background(), f.store.caller(2),
		NewPlaceOrderReq([]PlaceOrderItem{NewPlaceOrderItem(1, 1), NewPlaceOrderItem(9999, 1)}))

	require.ErrorIs(t, err, e.ErrResourceNotFound)
	assert.Contains(t, err.Error(), "product 9999")
	assert.Zero(t, f.store.orderCount())
	assert.Zero(t, f.store.outboxCount())
	assert.Empty(t, f.metrics.placed)
}

func TestPlaceOrderOutboxFailureRollsBack(t *testing.T) {
	f := newOrderFixture(t)
	f.outbox.createErr = errors.New("outbox insert failed")

	_, err := f.uc.PlaceOrder(context.Background(), f.store.caller(2),
		NewPlaceOrderReq([]PlaceOrderItem{NewPlaceOrderItem(1, 1)}))

	require.Error(t, err)
	assert.Zero(t, f.store.orderCount())
	assert.Zero(t, f.store.outboxCount())
}

func TestPlaceOrderRepositoryFailure(t *testing.T) {
	f := newOrderFixture(t)
	f.orders.createErr = errors.New("connection reset")

	_, err := f.uc.PlaceOrder(context.Background(), f.store.caller(2),
		NewPlaceOrderReq([]PlaceOrderItem{NewPlaceOrderItem(1, 1)}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Zero(t, f.store.outboxCount())
}

func TestPlaceOrderTotalOverflowRollsBack(t *testing.T) {
	f := newOrderFixture(t)
	f.products.setPrice(3, 100_000_000_000)
	f.products.setPrice(4, 100_000_000_000)

	_, err := f.uc.PlaceOrder(context.Background(), f.store.caller(2),
		NewPlaceOrderReq([]PlaceOrderItem{
			NewPlaceOrderItem(3, domain.MaxItemQuantity),
			NewPlaceOrderItem(4, domain.MaxItemQuantity),
		}))

	var verr *e.ValidationError
	require.ErrorAs(t, err, &verr)
	require.ErrorIs(t, err, e.ErrValidation)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "items[1].quantity", verr.Fields[0].FieldName)
	assert.Zero(t, f.store.orderCount())
	assert.Zero(t, f.store.outboxCount())
	assert.Empty(t, f.metrics.placed)
}

func TestPlaceOrderUnauthenticated(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.uc.PlaceOrder(context.Background(), nil,
		NewPlaceOrderReq([]PlaceOrderItem{NewPlaceOrderItem(1, 1)}))

	require.ErrorIs(t, err, e.ErrUnauthenticated)
	assert.Zero(t, f.tx.calls)
}

func TestPlaceOrderValidation(t *testing.T) {
	tests := []struct {
		name   string
		req    *PlaceOrderReq
		fields []string
	}{
		{name: "nil request", req: nil, fields: []string{"items"}},
		{name: "no items", req: NewPlaceOrderReq(nil), fields: []string{"items"}},
		{
			name:   "zero quantity",
			req:    NewPlaceOrderReq([]PlaceOrderItem{NewPlaceOrderItem(1, 0)}),
			fields: []string{"items[0].quantity"},
		},
		{
			name:   "quantity above limit",
			req:    NewPlaceOrderReq([]PlaceOrderItem{NewPlaceOrderItem(1, math.MaxInt32)}),
			fields: []string{"items[0].quantity"},
		},
		{
			name:   "bad product id",
			req:    NewPlaceOrderReq([]PlaceOrderItem{NewPlaceOrderItem(1, 1), NewPlaceOrderItem(-5, 1)}),
			fields: []string{"items[1].productId"},
		},
		{
			name:   "duplicate product",
			req:    NewPlaceOrderReq([]PlaceOrderItem{NewPlaceOrderItem(3, 1), NewPlaceOrderItem(3, 2)}),
			fields: []string{"items[1].productId"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture(t)

			_, err := f.uc.PlaceOrder(context.Background(), f.store.caller(2), tt.req)

			var verr *e.ValidationError
			require.ErrorAs(t, err, &verr)
			require.ErrorIs(t, err, e.ErrValidation)

			fields := make([]string, 0, len(verr.Fields))
			for _, fm := range verr.Fields {
				fields = append(fields, fm.FieldName)
			}
			assert.Equal(t, tt.fields, fields)
			assert.Zero(t, f.tx.calls)
		})
	}
}

func TestGetOrderAccess(t *testing.T) {
	f := newOrderFixture(t)
	placed := f.place(t, 2, NewPlaceOrderItem(1, 1), NewPlaceOrderItem(3, 1))

	tests := []struct {
		name    string
		caller  *domain.Caller
		orderID int64
		wantErr error
	}{
		{name: "owner", caller: f.store.caller(2), orderID: placed.ID},
		{name: "admin", caller: f.store.caller(9), orderID: placed.ID},
		{name: "other client", caller: f.store.caller(3), orderID: placed.ID, wantErr: e.ErrForbidden},
		{name: "anonymous", caller: nil, orderID: placed.ID, wantErr: e.ErrUnauthenticated},
		{name: "missing order as admin", caller: f.store.caller(9), orderID: 9999, wantErr: e.ErrResourceNotFound},
		{name: "missing order as other client", caller: f.store.caller(3), orderID: 9999, wantErr: e.ErrResourceNotFound},
		{name: "missing order as anonymous", caller: nil, orderID: 9999, wantErr: e.ErrResourceNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := f.uc.GetOrder(context.Background(), tt.caller, tt.orderID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, view)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, placed.ID, view.ID)
			assert.Equal(t, ClientView{ID: 2, Name: "Bob Green"}, view.Client)
			assert.Equal(t, int64(127000), view.Total)
			assert.Equal(t, "Macbook Pro", view.Items[1].Name)
		})
	}

	assert.Equal(t, []string{"order"}, f.metrics.denied)
}

func TestGetOrderForbiddenHidesDetails(t *testing.T) {
	f := newOrderFixture(t)
	placed := f.place(t, 2, NewPlaceOrderItem(1, 1))

	_, err := f.uc.GetOrder(context.Background(), f.store.caller(3), placed.ID)

	require.ErrorIs(t, err, e.ErrForbidden)
	assert.NotContains(t, err.Error(), "Bob")
	assert.NotContains(t, err.Error(), "Lord")
}

func TestGetOrderNamesDeletedProduct(t *testing.T) {
	f := newOrderFixture(t)
	placed := f.place(t, 2, NewPlaceOrderItem(4, 1))

	f.store.mu.Lock()
	delete(f.store.products, 4)
	f.store.mu.Unlock()

	view, err := f.uc.GetOrder(context.Background(), f.store.caller(2), placed.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Items[0].Name)
	assert.Equal(t, int64(120000), view.Items[0].Price)
}
