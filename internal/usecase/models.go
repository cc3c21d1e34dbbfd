package usecase

import (
	"time"

	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
)

// ORDER USECASE

// PlaceOrderReq — запрос на оформление заказа. Порядок позиций сохраняется.
type PlaceOrderReq struct {
	Items []PlaceOrderItem
}

type PlaceOrderItem struct {
	ProductID int64
	Quantity  int32
}

// OrderView — заказ вместе с владельцем и названиями товаров.
type OrderView struct {
	ID     int64
	Moment time.Time
	Status domain.OrderStatus
	Client ClientView
	Items  []OrderItemView
	Total  int64
}

type ClientView struct {
	ID   int64
	Name string
}

type OrderItemView struct {
	ProductID int64
	Name      string
	Quantity  int32
	Price     int64
	SubTotal  int64
}

// PRODUCT USECASE

// SaveProductReq — данные для создания или обновления товара.
type SaveProductReq struct {
	Name        string
	Description string
	Price       int64
	ImageURL    string
	CategoryIDs []int64
}

// ProductImage представляет изображение, загруженное через multipart/form-data.
type ProductImage struct {
	Data     []byte // байты изображения
	MimeType string // Content-Type, определённый по содержимому
	Size     int64  // фактический размер в байтах
	Name     string // оригинальное имя файла (для логов)
}

// ProductInfo — DTO с информацией о товаре для внешнего использования и кэша.
type ProductInfo struct {
	ID          int64
	Name        string
	Description string
	Price       int64
	ImageURL    string
	Categories  []domain.Category
}

// CacheVersions — версии товаров в кэше на момент чтения.
type CacheVersions map[int64]int64

// CachedProducts — попадания в кэш и версии всех запрошенных товаров.
type CachedProducts struct {
	Products map[int64]ProductInfo
	Versions CacheVersions
}

// ProductPage — страница результатов поиска товаров.
type ProductPage struct {
	Content       []ProductInfo
	Page          int
	Size          int
	TotalElements int64
	TotalPages    int
}

// GetProductsReq запрос информации о товарах по их идентификаторам.
type GetProductsReq struct {
	IDs []int64
}

// GetProductsRes — ответ с данными запрошенных товаров.
type GetProductsRes struct {
	Products         []ProductInfo
	NotFoundProducts []int64
}

// USER USECASE

type AuthenticateReq struct {
	Email    string
	Password string
}

// TokenRes — выданный токен доступа.
type TokenRes struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
}

type UserView struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	BirthDate *time.Time
	Roles     []string
}

// INFRASTUCTURE

// UploadImagesRes — результат загрузки изображений (ключи в MinIO).
type UploadImagesRes struct {
	ImagesKeys []string
}

// UploadImagesReq — запрос на загрузку изображений товара.
type UploadImagesReq struct {
	Prefix string
	Images []ProductImage
}

// WriteRawMessageReq — уже сериализованное событие из outbox.
type WriteRawMessageReq struct {
	Key       int64
	EventID   string
	EventType domain.OutboxEventType
	Payload   []byte
}

// MAPPERS

func NewPlaceOrderReq(items []PlaceOrderItem) *PlaceOrderReq {
	return &PlaceOrderReq{Items: items}
}

func NewPlaceOrderItem(productID int64, quantity int32) PlaceOrderItem {
	return PlaceOrderItem{ProductID: productID, Quantity: quantity}
}

func NewSaveProductReq(name, description string, price int64, imageURL string, categoryIDs []int64) *SaveProductReq {
	return &SaveProductReq{
		Name:        name,
		Description: description,
		Price:       price,
		ImageURL:    imageURL,
		CategoryIDs: categoryIDs,
	}
}

func NewProductImage(data []byte, mimeType string, size int64, name string) *ProductImage {
	return &ProductImage{
		Data:     data,
		MimeType: mimeType,
		Size:     size,
		Name:     name,
	}
}

func NewProductInfo(p *domain.Product) ProductInfo {
	categories := make([]domain.Category, len(p.Categories))
	copy(categories, p.Categories)

	return ProductInfo{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		Categories:  categories,
	}
}

func NewGetProductsReq(ids []int64) *GetProductsReq {
	return &GetProductsReq{ids}
}

func NewGetProductsRes(pr []ProductInfo, notFoundProducts []int64) *GetProductsRes {
	return &GetProductsRes{
		Products:         pr,
		NotFoundProducts: notFoundProducts,
	}
}

func NewAuthenticateReq(email, password string) *AuthenticateReq {
	return &AuthenticateReq{Email: email, Password: password}
}

func NewUserView(u *domain.User) *UserView {
	roles := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, r.Authority())
	}

	return &UserView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		BirthDate: u.BirthDate,
		Roles:     roles,
	}
}

func NewUploadImagesReq(prefix string, images []ProductImage) *UploadImagesReq {
	return &UploadImagesReq{
		Prefix: prefix,
		Images: images,
	}
}

func NewUploadImagesRes(imagesKeys []string) *UploadImagesRes {
	return &UploadImagesRes{
		ImagesKeys: imagesKeys,
	}
}

func NewWriteRawMessageReq(event *domain.OutboxEvent) *WriteRawMessageReq {
	return &WriteRawMessageReq{
		Key:       event.AggregateID,
		EventID:   event.EventID,
		EventType: event.EventType,
		Payload:   event.Payload,
	}
}
