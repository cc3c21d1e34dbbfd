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

// ProductRepo реализует репозиторий продуктов поверх PostgreSQL.
type ProductRepo struct {
	pool *pgxpool.Pool
	conv converter.ProductConverter
}

func NewProductRepo(pool *pgxpool.Pool, conv converter.ProductConverter) *ProductRepo {
	return &ProductRepo{
		pool: pool,
		conv: conv,
	}
}

// GetByID возвращает продукт вместе с категориями. Внутри транзакции видит её изменения.
func (p *ProductRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	products, err := p.GetByIDs(ctx, []int64{id})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if len(products) == 0 {
		return nil, e.Wrap(whereami.WhereAmI(), e.NotFound("product", id))
	}

	return &products[0], nil
}

// GetByIDs возвращает найденные продукты, отсутствующие идентификаторы пропускаются.
func (p *ProductRepo) GetByIDs(ctx context.Context, ids []int64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	conn := tr.ConnFromCtx(ctx, p.pool)
	rows, err := conn.Query(ctx, `
		SELECT id, name, description, price, img_url
		FROM tb_product
		WHERE id = ANY($1)
		ORDER BY id;
	`, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	models, err := pgx.CollectRows(rows, pgx.RowToStructByName[converter.ProductModel])
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return p.withCategories(ctx, conn, models)
}

// Search возвращает страницу продуктов, чьё имя содержит name без учёта регистра, и общее число совпадений.
func (p *ProductRepo) Search(ctx context.Context, name string, page, size int) ([]domain.Product, int64, error) {
	conn := tr.ConnFromCtx(ctx, p.pool)

	var total int64
	if err := conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM tb_product
		WHERE LOWER(name) LIKE '%' || LOWER($1) || '%';
	`, name).Scan(&total); err != nil {
		return nil, 0, e.Wrap(whereami.WhereAmI(), err)
	}

	if total == 0 {
		return []domain.Product{}, 0, nil
	}

	rows, err := conn.Query(ctx, `
		SELECT id, name, description, price, img_url
		FROM tb_product
		WHERE LOWER(name) LIKE '%' || LOWER($1) || '%'
		ORDER BY id
		LIMIT $2 OFFSET $3;
	`, name, size, page*size)
	if err != nil {
		return nil, 0, e.Wrap(whereami.WhereAmI(), err)
	}

	models, err := pgx.CollectRows(rows, pgx.RowToStructByName[converter.ProductModel])
	if err != nil {
		return nil, 0, e.Wrap(whereami.WhereAmI(), err)
	}

	products, err := p.withCategories(ctx, conn, models)
	if err != nil {
		return nil, 0, e.Wrap(whereami.WhereAmI(), err)
	}

	return products, total, nil
}

// Create вставляет продукт и его связи с категориями. Требует активной транзакции.
func (p *ProductRepo) Create(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	model := p.conv.ToModel(product)
	if err := tx.QueryRow(ctx, `
		INSERT INTO tb_product (name, description, price, img_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id;
	`, model.Name, model.Description, model.Price, model.ImgURL).Scan(&model.ID); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := p.replaceCategories(ctx, tx, model.ID, product.CategoryIDs); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return p.GetByID(ctx, model.ID)
}

// Update перезаписывает поля продукта и полностью заменяет набор категорий.
func (p *ProductRepo) Update(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	model := p.conv.ToModel(product)
	tag, err := tx.Exec(ctx, `
		UPDATE tb_product
		SET name = $2, description = $3, price = $4, img_url = $5
		WHERE id = $1;
	`, model.ID, model.Name, model.Description, model.Price, model.ImgURL)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if tag.RowsAffected() == 0 {
		return nil, e.Wrap(whereami.WhereAmI(), e.NotFound("product", product.ID))
	}

	if err := p.replaceCategories(ctx, tx, model.ID, product.CategoryIDs); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return p.GetByID(ctx, model.ID)
}

func (p *ProductRepo) UpdateImageURL(ctx context.Context, id int64, imageURL string) error {
	conn := tr.ConnFromCtx(ctx, p.pool)

	tag, err := conn.Exec(ctx, `UPDATE tb_product SET img_url = $2 WHERE id = $1;`, id, imageURL)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	if tag.RowsAffected() == 0 {
		return e.Wrap(whereami.WhereAmI(), e.NotFound("product", id))
	}

	return nil
}

// Delete удаляет продукт. Продукт, входящий в заказы, удалить нельзя: возвращается e.ErrDatabase.
func (p *ProductRepo) Delete(ctx context.Context, id int64) error {
	conn := tr.ConnFromCtx(ctx, p.pool)

	tag, err := conn.Exec(ctx, `DELETE FROM tb_product WHERE id = $1;`, id)
	if err != nil {
		if integrityViolation(err) {
			return e.Wrap(whereami.WhereAmI(), e.ErrDatabase)
		}
		return e.Wrap(whereami.WhereAmI(), err)
	}
	if tag.RowsAffected() == 0 {
		return e.Wrap(whereami.WhereAmI(), e.NotFound("product", id))
	}

	return nil
}

func (p *ProductRepo) replaceCategories(ctx context.Context, conn pgxConn, productID int64, categoryIDs []int64) error {
	if _, err := conn.Exec(ctx, `DELETE FROM tb_product_category WHERE product_id = $1;`, productID); err != nil {
		return err
	}

	if len(categoryIDs) == 0 {
		return nil
	}

	_, err := conn.Exec(ctx, `
		INSERT INTO tb_product_category (product_id, category_id)
		SELECT $1, UNNEST($2::BIGINT[])
		ON CONFLICT DO NOTHING;
	`, productID, categoryIDs)
	if integrityViolation(err) {
		return e.ErrDatabase
	}

	return err
}

// withCategories догружает категории одним запросом для всех продуктов.
func (p *ProductRepo) withCategories(ctx context.Context, conn pgxConn, models []converter.ProductModel) ([]domain.Product, error) {
	ids := make([]int64, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}

	rows, err := conn.Query(ctx, `
		SELECT pc.product_id, c.id, c.name
		FROM tb_product_category pc
		JOIN tb_category c ON c.id = pc.category_id
		WHERE pc.product_id = ANY($1)
		ORDER BY c.id;
	`, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	byProduct := make(map[int64][]domain.Category, len(models))
	for rows.Next() {
		var (
			productID int64
			category  converter.CategoryModel
		)
		if err := rows.Scan(&productID, &category.ID, &category.Name); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		byProduct[productID] = append(byProduct[productID], domain.Category{ID: category.ID, Name: category.Name})
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	products := make([]domain.Product, 0, len(models))
	for i := range models {
		products = append(products, *p.conv.ToEntity(&models[i], byProduct[models[i].ID]))
	}

	return products, nil
}
