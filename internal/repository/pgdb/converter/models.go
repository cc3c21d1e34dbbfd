package converter

import "time"

// ProductModel представляет запись таблицы tb_product в PostgreSQL.
type ProductModel struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Price       int64  `db:"price"`
	ImgURL      string `db:"img_url"`
}

// CategoryModel представляет запись таблицы tb_category в PostgreSQL.
type CategoryModel struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// UserModel представляет запись таблицы tb_user вместе с authority из tb_role.
type UserModel struct {
	ID          int64      `db:"id"`
	Name        string     `db:"name"`
	Email       string     `db:"email"`
	Phone       string     `db:"phone"`
	BirthDate   *time.Time `db:"birth_date"`
	Password    string     `db:"password"`
	Authorities []string   `db:"authorities"`
}

// OrderModel представляет запись таблицы tb_order в PostgreSQL.
type OrderModel struct {
	ID       int64     `db:"id"`
	Moment   time.Time `db:"moment"`
	Status   string    `db:"status"`
	ClientID int64     `db:"client_id"`
}

// OrderItemModel представляет запись таблицы tb_order_item в PostgreSQL.
type OrderItemModel struct {
	OrderID   int64 `db:"order_id"`
	ProductID int64 `db:"product_id"`
	Quantity  int32 `db:"quantity"`
	Price     int64 `db:"price"`
}

// OutboxEventModel представляет запись таблицы outbox_events в PostgreSQL.
type OutboxEventModel struct {
	ID          int64      `db:"id"`
	EventID     string     `db:"event_id"`
	EventType   string     `db:"event_type"`
	AggregateID int64      `db:"aggregate_id"`
	Payload     []byte     `db:"payload"`
	Status      string     `db:"status"`
	Attempts    int        `db:"attempts"`
	CreatedAt   time.Time  `db:"created_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}
