package http

import (
	"encoding/json"
	"time"

	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
	"github.com/DRSN-tech/dscommerce-backend/internal/usecase"
	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
)

const dateLayout = "2006-01-02"

// AUTH

type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func NewTokenResponse(res *usecase.TokenRes) *TokenResponse {
	return &TokenResponse{
		AccessToken: res.AccessToken,
		TokenType:   res.TokenType,
		ExpiresIn:   int64(res.ExpiresIn.Seconds()),
	}
}

// USER

type UserResponse struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	BirthDate *string  `json:"birthDate"`
	Roles     []string `json:"roles"`
}

func NewUserResponse(v *usecase.UserView) *UserResponse {
	res := &UserResponse{
		ID:    v.ID,
		Name:  v.Name,
		Email: v.Email,
		Phone: v.Phone,
		Roles: v.Roles,
	}
	if v.BirthDate != nil {
		d := v.BirthDate.Format(dateLayout)
		res.BirthDate = &d
	}
	return res
}

// CATEGORY

type CategoryDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

func NewCategoryDTOs(categories []domain.Category) []CategoryDTO {
	res := make([]CategoryDTO, 0, len(categories))
	for _, c := range categories {
		res = append(res, CategoryDTO{ID: c.ID, Name: c.Name})
	}
	return res
}

// PRODUCT

type ProductRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Price       json.Number   `json:"price"`
	ImageURL    string        `json:"imageUrl"`
	Categories  []CategoryDTO `json:"categories"`
}

// ToUseCase переводит цену в центы. Ошибка формата цены возвращается как ошибка валидации поля price.
func (p *ProductRequest) ToUseCase() (*usecase.SaveProductReq, error) {
	price, err := parsePriceToCents(p.Price.String())
	if err != nil {
		v := e.NewValidationError()
		v.Add("price", err.Error())
		return nil, v
	}

	ids := make([]int64, 0, len(p.Categories))
	for _, c := range p.Categories {
		ids = append(ids, c.ID)
	}

	return usecase.NewSaveProductReq(p.Name, p.Description, price, p.ImageURL, ids), nil
}

type ProductResponse struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Price       json.Number   `json:"price"`
	ImageURL    string        `json:"imageUrl"`
	Categories  []CategoryDTO `json:"categories"`
}

func NewProductResponse(info *usecase.ProductInfo) *ProductResponse {
	return &ProductResponse{
		ID:          info.ID,
		Name:        info.Name,
		Description: info.Description,
		Price:       formatCents(info.Price),
		ImageURL:    info.ImageURL,
		Categories:  NewCategoryDTOs(info.Categories),
	}
}

// ProductMinResponse — краткая карточка товара в списке.
type ProductMinResponse struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name"`
	Price    json.Number `json:"price"`
	ImageURL string      `json:"imageUrl"`
}

type Pageable struct {
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
}

type ProductPageResponse struct {
	Content       []ProductMinResponse `json:"content"`
	Pageable      Pageable             `json:"pageable"`
	TotalElements int64                `json:"totalElements"`
	TotalPages    int                  `json:"totalPages"`
	Size          int                  `json:"size"`
	Number        int                  `json:"number"`
	First         bool                 `json:"first"`
	Last          bool                 `json:"last"`
	Empty         bool                 `json:"empty"`
}

func NewProductPageResponse(page *usecase.ProductPage) *ProductPageResponse {
	content := make([]ProductMinResponse, 0, len(page.Content))
	for _, p := range page.Content {
		content = append(content, ProductMinResponse{
			ID:       p.ID,
			Name:     p.Name,
			Price:    formatCents(p.Price),
			ImageURL: p.ImageURL,
		})
	}

	return &ProductPageResponse{
		Content:       content,
		Pageable:      Pageable{PageNumber: page.Page, PageSize: page.Size},
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages,
		Size:          page.Size,
		Number:        page.Page,
		First:         page.Page == 0,
		Last:          page.Page >= page.TotalPages-1,
		Empty:         len(content) == 0,
	}
}

// ORDER

type OrderItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int32 `json:"quantity"`
}

type OrderRequest struct {
	Items []OrderItemRequest `json:"items"`
}

func (o *OrderRequest) ToUseCase() *usecase.PlaceOrderReq {
	items := make([]usecase.PlaceOrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, usecase.NewPlaceOrderItem(it.ProductID, it.Quantity))
	}
	return usecase.NewPlaceOrderReq(items)
}

type ClientResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type OrderItemResponse struct {
	ProductID int64       `json:"productId"`
	Name      string      `json:"name"`
	Quantity  int32       `json:"quantity"`
	Price     json.Number `json:"price"`
	SubTotal  json.Number `json:"subTotal"`
}

type OrderResponse struct {
	ID     int64               `json:"id"`
	Moment string              `json:"moment"`
	Status string              `json:"status"`
	Client ClientResponse      `json:"client"`
	Items  []OrderItemResponse `json:"items"`
	Total  json.Number         `json:"total"`
}

func NewOrderResponse(v *usecase.OrderView) *OrderResponse {
	items := make([]OrderItemResponse, 0, len(v.Items))
	for _, it := range v.Items {
		items = append(items, OrderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     formatCents(it.Price),
			SubTotal:  formatCents(it.SubTotal),
		})
	}

	return &OrderResponse{
		ID:     v.ID,
		Moment: v.Moment.UTC().Format(time.RFC3339),
		Status: string(v.Status),
		Client: ClientResponse{ID: v.Client.ID, Name: v.Client.Name},
		Items:  items,
		Total:  formatCents(v.Total),
	}
}
