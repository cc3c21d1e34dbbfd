package usecase

import (
	"context"

	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
)

type OrderUC interface {
	PlaceOrder(ctx context.Context, caller *domain.Caller, req *PlaceOrderReq) (*OrderView, error)
	GetOrder(ctx context.Context, caller *domain.Caller, id int64) (*OrderView, error)
}

type ProductUC interface {
	FindByID(ctx context.Context, id int64) (*ProductInfo, error)
	FindAll(ctx context.Context, name string, page, size int) (*ProductPage, error)
	Insert(ctx context.Context, req *SaveProductReq) (*ProductInfo, error)
	Update(ctx context.Context, id int64, req *SaveProductReq) (*ProductInfo, error)
	Delete(ctx context.Context, id int64) error
	UploadImage(ctx context.Context, id int64, image *ProductImage) (*ProductInfo, error)
	GetProductsInfo(ctx context.Context, req *GetProductsReq) (*GetProductsRes, error)
}

type CategoryUC interface {
	FindAll(ctx context.Context) ([]domain.Category, error)
}

type UserUC interface {
	Authenticate(ctx context.Context, req *AuthenticateReq) (*TokenRes, error)
	ResolveCaller(ctx context.Context, token string) (*domain.Caller, error)
	Logout(ctx context.Context, token string) error
	GetMe(ctx context.Context, caller *domain.Caller) (*UserView, error)
}
