package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
	"github.com/DRSN-tech/dscommerce-backend/pkg/logger"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ProductUseCase реализует бизнес-логику каталога товаров.
type ProductUseCase struct {
	productRepo  ProductRepository
	categoryRepo CategoryRepository
	tx           TxManager
	imagesInfra  ImagesInfra
	cacheRepo    CacheRepository
	logger       logger.Logger
}

func NewProductUC(
	productRepo ProductRepository,
	categoryRepo CategoryRepository,
	tx TxManager,
	imagesInfra ImagesInfra,
	cacheRepo CacheRepository,
	logger logger.Logger,
) *ProductUseCase {
	return &ProductUseCase{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		tx:           tx,
		imagesInfra:  imagesInfra,
		cacheRepo:    cacheRepo,
		logger:       logger,
	}
}

// FindByID возвращает товар по идентификатору, сначала обращаясь к кэшу.
func (p *ProductUseCase) FindByID(ctx context.Context, id int64) (*ProductInfo, error) {
	const op = "ProductUseCase.FindByID"

	res, err := p.GetProductsInfo(ctx, NewGetProductsReq([]int64{id}))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if len(res.Products) == 0 {
		return nil, e.Wrap(op, e.NotFound("product", id))
	}

	return &res.Products[0], nil
}

// FindAll ищет товары по вхождению name в название без учёта регистра.
func (p *ProductUseCase) FindAll(ctx context.Context, name string, page, size int) (*ProductPage, error) {
	const op = "ProductUseCase.FindAll"

	verr := e.NewValidationError()
	if page < 0 {
		verr.Add("page", "page must not be negative")
	}
	if size <= 0 || size > MaxPageSize {
		verr.Add("size", fmt.Sprintf("size must be between 1 and %d", MaxPageSize))
	}
	if err := verr.OrNil(); err != nil {
		return nil, e.Wrap(op, err)
	}

	products, total, err := p.productRepo.Search(ctx, strings.TrimSpace(name), page, size)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	content := make([]ProductInfo, 0, len(products))
	for i := range products {
		content = append(content, NewProductInfo(&products[i]))
	}

	return &ProductPage{
		Content:       content,
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    int((total + int64(size) - 1) / int64(size)),
	}, nil
}

// Insert создаёт товар. Все категории должны существовать.
func (p *ProductUseCase) Insert(ctx context.Context, req *SaveProductReq) (*ProductInfo, error) {
	const op = "ProductUseCase.Insert"

	var created *domain.Product
	err := p.tx.Do(ctx, func(ctx context.Context) error {
		if err := p.validateProduct(ctx, req); err != nil {
			return err
		}

		var err error
		created, err = p.productRepo.Create(ctx, toProduct(req))
		return err
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	p.logger.Infof("product created: id=%d", created.ID)
	info := NewProductInfo(created)
	return &info, nil
}

// Update заменяет данные товара и сбрасывает его кэш.
func (p *ProductUseCase) Update(ctx context.Context, id int64, req *SaveProductReq) (*ProductInfo, error) {
	const op = "ProductUseCase.Update"

	var updated *domain.Product
	err := p.tx.Do(ctx, func(ctx context.Context) error {
		if err := p.validateProduct(ctx, req); err != nil {
			return err
		}

		product := toProduct(req)
		product.ID = id

		var err error
		updated, err = p.productRepo.Update(ctx, product)
		return err
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	p.invalidate(ctx, op, id)

	info := NewProductInfo(updated)
	return &info, nil
}

// Delete удаляет товар. Товар, на который ссылаются заказы, удалить нельзя (e.ErrDatabase).
func (p *ProductUseCase) Delete(ctx context.Context, id int64) error {
	const op = "ProductUseCase.Delete"

	if err := p.productRepo.Delete(ctx, id); err != nil {
		return e.Wrap(op, err)
	}

	p.invalidate(ctx, op, id)
	p.logger.Infof("product deleted: id=%d", id)

	return nil
}

// UploadImage сохраняет изображение товара в MinIO и обновляет imgUrl.
// Если imgUrl записать не удалось, загруженный объект удаляется в фоне.
// После успешного UpdateImageURL объект уже используется товаром и не удаляется.
func (p *ProductUseCase) UploadImage(ctx context.Context, id int64, image *ProductImage) (*ProductInfo, error) {
	const op = "ProductUseCase.UploadImage"

	if image == nil || len(image.Data) == 0 {
		return nil, e.Wrap(op, e.ErrNoImages)
	}

	if _, err := p.productRepo.GetByID(ctx, id); err != nil {
		return nil, e.Wrap(op, err)
	}

	imagesRes, err := p.imagesInfra.UploadImages(ctx, NewUploadImagesReq(fmt.Sprintf("products/%d", id), []ProductImage{*image}))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if len(imagesRes.ImagesKeys) == 0 {
		return nil, e.Wrap(op, e.ErrNoImages)
	}

	if err := p.productRepo.UpdateImageURL(ctx, id, p.imagesInfra.PublicURL(imagesRes.ImagesKeys[0])); err != nil {
		p.logger.Warnf("Cleaning up orphaned images after failure. product_id: %d, error: %v", id, err)
		p.imagesInfra.CleanupImages(imagesRes.ImagesKeys)
		return nil, e.Wrap(op, err)
	}

	p.invalidate(ctx, op, id)

	product, err := p.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	info := NewProductInfo(product)
	return &info, nil
}

// GetProductsInfo возвращает информацию о товарах по их идентификаторам.
// Найденные в БД товары кэшируются в фоне.
func (p *ProductUseCase) GetProductsInfo(ctx context.Context, req *GetProductsReq) (*GetProductsRes, error) {
	const op = "ProductUseCase.GetProductsInfo"

	if len(req.IDs) == 0 {
		return NewGetProductsRes(make([]ProductInfo, 0), make([]int64, 0)), nil
	}

	// Поиск товаров в кэше
	cached, err := p.cacheRepo.GetProducts(ctx, req.IDs)
	if err != nil {
		p.logger.Warnf("product cache unavailable: %v", e.Wrap(op, err))
		cached = &CachedProducts{}
	}

	var nonCacheable []int64
	for _, productID := range req.IDs {
		if _, ok := cached.Products[productID]; !ok {
			nonCacheable = append(nonCacheable, productID)
		}
	}

	// Получение товаров из БД
	dbProductsMap := make(map[int64]ProductInfo, len(nonCacheable))
	if len(nonCacheable) > 0 {
		products, err := p.productRepo.GetByIDs(ctx, nonCacheable)
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		fromDB := make([]ProductInfo, 0, len(products))
		for i := range products {
			info := NewProductInfo(&products[i])
			fromDB = append(fromDB, info)
			dbProductsMap[info.ID] = info
		}

		if len(fromDB) > 0 && len(cached.Versions) > 0 {
			// Фоновое заполнение кэша. Товары, изменённые после чтения версий, не записываются.
			go func() {
				bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
				defer cancel()

				if err := p.cacheRepo.SetProducts(bgCtx, fromDB, cached.Versions); err != nil {
					p.logger.Warnf("Failed to cache products in background: %v", e.Wrap(op, err))
				}
			}()
		}
	}

	// Формирование результата в порядке запроса
	result := make([]ProductInfo, 0, len(req.IDs))
	notFoundProducts := make([]int64, 0)
	for _, id := range req.IDs {
		if pr, ok := cached.Products[id]; ok {
			result = append(result, pr)
		} else if pr, ok := dbProductsMap[id]; ok {
			result = append(result, pr)
		} else {
			notFoundProducts = append(notFoundProducts, id)
		}
	}

	return NewGetProductsRes(result, notFoundProducts), nil
}

// invalidate удаляет товар из кэша и запрещает запись карточек, прочитанных до изменения.
// Ошибка кэша не прерывает операцию.
func (p *ProductUseCase) invalidate(ctx context.Context, op string, id int64) {
	if err := p.cacheRepo.InvalidateProducts(ctx, []int64{id}); err != nil {
		p.logger.Warnf("Failed to invalidate product cache: %v", e.Wrap(op, err))
	}
}

// validateProduct проверяет поля товара и существование категорий.
func (p *ProductUseCase) validateProduct(ctx context.Context, req *SaveProductReq) error {
	verr := e.NewValidationError()

	name := strings.TrimSpace(req.Name)
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		verr.Add("name", "Product name required")
	case n < 2 || n > 80:
		verr.Add("name", "Product name must be between 2 and 80 characters")
	}

	if utf8.RuneCountInString(strings.TrimSpace(req.Description)) < 10 {
		verr.Add("description", "Product description must be at least 10 characters")
	}

	if req.Price <= 0 {
		verr.Add("price", "Product price must be greater than 0")
	}

	if len(req.CategoryIDs) == 0 {
		verr.Add("categories", "At least one category must be selected")
	} else {
		existing, err := p.categoryRepo.ExistingIDs(ctx, req.CategoryIDs)
		if err != nil {
			return err
		}

		found := make(map[int64]struct{}, len(existing))
		for _, id := range existing {
			found[id] = struct{}{}
		}
		for _, id := range req.CategoryIDs {
			if _, ok := found[id]; !ok {
				verr.Add("categories", fmt.Sprintf("Category %d does not exist", id))
			}
		}
	}

	return verr.OrNil()
}

func toProduct(req *SaveProductReq) *domain.Product {
	ids := make([]int64, 0, len(req.CategoryIDs))
	seen := make(map[int64]struct{}, len(req.CategoryIDs))
	for _, id := range req.CategoryIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	return domain.NewProduct(strings.TrimSpace(req.Name), strings.TrimSpace(req.Description), req.Price, req.ImageURL, ids)
}
