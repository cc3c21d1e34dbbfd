package pgdb

import (
	"context"

	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
	"github.com/DRSN-tech/dscommerce-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
	"github.com/DRSN-tech/dscommerce-backend/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// OrderRepo реализует репозиторий заказов поверх PostgreSQL.
type OrderRepo struct {
	pool *pgxpool.Pool
	conv converter.OrderConverter
}

func NewOrderRepo(pool *pgxpool.Pool, conv converter.OrderConverter) *OrderRepo {
	return &OrderRepo{pool: pool, conv: conv}
}

// Create вставляет заказ, затем все его позиции. Требует активной транзакции.
func (o *OrderRepo) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	model, _ := o.conv.ToModel(order)
	query := `
		INSERT INTO tb_order (moment, status, client_id)
		VALUES ($1, $2, $3)
		RETURNING id;
	`

	if err := tx.QueryRow(ctx, query, model.Moment, model.Status, model.ClientID).Scan(&model.ID); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	created := *order
	created.ID = model.ID
	created.Items = make([]domain.OrderItem, len(order.Items))
	copy(created.Items, order.Items)
	for i := range created.Items {
		created.Items[i].OrderID = created.ID
	}

	_, items := o.conv.ToModel(&created)
	if len(items) > 0 {
		batch := &pgx.Batch{}
		for _, item := range items {
			batch.Queue(`
				INSERT INTO tb_order_item (order_id, product_id, quantity, price)
				VALUES ($1, $2, $3, $4);
			`, item.OrderID, item.ProductID, item.Quantity, item.Price)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
	}

	return &created, nil
}

// GetByID загружает заказ с позициями, упорядоченными по товару.
func (o *OrderRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	conn := tr.ConnFromCtx(ctx, o.pool)

	var model converter.OrderModel
	err := conn.QueryRow(ctx, `
		SELECT id, moment, status, client_id
		FROM tb_order
		WHERE id = $1;
	`, id).Scan(&model.ID, &model.Moment, &model.Status, &model.ClientID)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), mapNoRows(err, "order", id))
	}

	rows, err := conn.Query(ctx, `
		SELECT order_id, product_id, quantity, price
		FROM tb_order_item
		WHERE order_id = $1
		ORDER BY product_id;
	`, id)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[converter.OrderItemModel])
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	order, err := o.conv.ToEntity(&model, items)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return order, nil
}
