package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
	"github.com/DRSN-tech/dscommerce-backend/internal/usecase"
	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
	"github.com/DRSN-tech/dscommerce-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	maria = &domain.Caller{ID: 1, Name: "Maria Brown", Email: "maria@gmail.com", Roles: []domain.Role{domain.RoleClient}}
	alex  = &domain.Caller{ID: 2, Name: "Alex Green", Email: "alex@gmail.com", Roles: []domain.Role{domain.RoleClient, domain.RoleAdmin}}
)

type fakeUserUC struct {
	loggedOut []string
}

func (f *fakeUserUC) Authenticate(_ context.Context, req *usecase.AuthenticateReq) (*usecase.TokenRes, error) {
	if req.Email == "maria@gmail.com" && req.Password == "123456" {
		return &usecase.TokenRes{AccessToken: "maria-token", TokenType: "Bearer", ExpiresIn: time.Hour}, nil
	}
	return nil, e.ErrBadCredentials
}

func (f *fakeUserUC) ResolveCaller(_ context.Context, token string) (*domain.Caller, error) {
	switch token {
	case "maria-token":
		return maria, nil
	case "alex-token":
		return alex, nil
	default:
		return nil, e.Wrap("session", e.ErrUnauthenticated)
	}
}

func (f *fakeUserUC) Logout(_ context.Context, token string) error {
	f.loggedOut = append(f.loggedOut, token)
	return nil
}

func (f *fakeUserUC) GetMe(_ context.Context, caller *domain.Caller) (*usecase.UserView, error) {
	birth := time.Date(2001, 7, 25, 0, 0, 0, 0, time.UTC)
	return &usecase.UserView{ID: caller.ID, Name: caller.Name, Email: caller.Email, BirthDate: &birth, Roles: []string{"ROLE_CLIENT"}}, nil
}

type fakeOrderUC struct {
	placed *usecase.PlaceOrderReq
}

func seedOrderView() *usecase.OrderView {
	return &usecase.OrderView{
		ID:     1,
		Moment: time.Date(2022, 7, 25, 13, 0, 0, 0, time.UTC),
		Status: domain.OrderStatusPaid,
		Client: usecase.ClientView{ID: 1, Name: "Maria Brown"},
		Items: []usecase.OrderItemView{
			{ProductID: 1, Name: "The Lord of the Rings", Quantity: 2, Price: 9050, SubTotal: 18100},
			{ProductID: 3, Name: "Macbook Pro", Quantity: 1, Price: 125000, SubTotal: 125000},
		},
		Total: 143100,
	}
}

func (f *fakeOrderUC) PlaceOrder(_ context.Context, caller *domain.Caller, req *usecase.PlaceOrderReq) (*usecase.OrderView, error) {
	if len(req.Items) == 0 {
		v := e.NewValidationError()
		v.Add("items", "order must contain at least one item")
		return nil, v
	}
	f.placed = req
	return &usecase.OrderView{
		ID:     4,
		Moment: time.Now(),
		Status: domain.OrderStatusAwaitingPayment,
		Client: usecase.ClientView{ID: caller.ID, Name: caller.Name},
		Total:  0,
	}, nil
}

func (f *fakeOrderUC) GetOrder(_ context.Context, caller *domain.Caller, id int64) (*usecase.OrderView, error) {
	if id != 1 {
		return nil, e.NotFound("order", id)
	}
	if !caller.IsAdmin() && caller.ID != 1 {
		return nil, e.ErrForbidden
	}
	return seedOrderView(), nil
}

type fakeProductUC struct {
	inserted *usecase.SaveProductReq
	image    *usecase.ProductImage
}

func (f *fakeProductUC) FindByID(_ context.Context, id int64) (*usecase.ProductInfo, error) {
	if id != 1 {
		return nil, e.NotFound("product", id)
	}
	return &usecase.ProductInfo{ID: 1, Name: "The Lord of the Rings", Price: 9050, Categories: []domain.Category{{ID: 2, Name: "Eletrônicos"}}}, nil
}

func (f *fakeProductUC) FindAll(_ context.Context, name string, page, size int) (*usecase.ProductPage, error) {
	return &usecase.ProductPage{
		Content:       []usecase.ProductInfo{{ID: 3, Name: "Macbook Pro", Price: 125000, ImageURL: "https://img/3-big.jpg"}},
		Page:          page,
		Size:          size,
		TotalElements: 1,
		TotalPages:    1,
	}, nil
}

func (f *fakeProductUC) Insert(_ context.Context, req *usecase.SaveProductReq) (*usecase.ProductInfo, error) {
	if req.Price <= 0 {
		v := e.NewValidationError()
		v.Add("price", "price must be positive")
		return nil, v
	}
	f.inserted = req
	return &usecase.ProductInfo{ID: 26, Name: req.Name, Description: req.Description, Price: req.Price, ImageURL: req.ImageURL}, nil
}

func (f *fakeProductUC) Update(_ context.Context, id int64, req *usecase.SaveProductReq) (*usecase.ProductInfo, error) {
	return &usecase.ProductInfo{ID: id, Name: req.Name, Price: req.Price}, nil
}

func (f *fakeProductUC) Delete(_ context.Context, id int64) error {
	if id == 3 {
		return e.Wrap("repo", e.ErrDatabase)
	}
	return nil
}

func (f *fakeProductUC) UploadImage(_ context.Context, id int64, image *usecase.ProductImage) (*usecase.ProductInfo, error) {
	f.image = image
	return &usecase.ProductInfo{ID: id, ImageURL: "http://cdn/products/1/x.png"}, nil
}

func (f *fakeProductUC) GetProductsInfo(context.Context, *usecase.GetProductsReq) (*usecase.GetProductsRes, error) {
	return &usecase.GetProductsRes{}, nil
}

type fakeCategoryUC struct{}

func (fakeCategoryUC) FindAll(context.Context) ([]domain.Category, error) {
	return []domain.Category{{ID: 1, Name: "Livros"}, {ID: 3, Name: "Computadores"}}, nil
}

type recordingObserver struct {
	routes []string
}

func (r *recordingObserver) ObserveRequest(route, method string, status int, _ time.Duration) {
	r.routes = append(r.routes, method+" "+route)
}

type testEnv struct {
	handler  http.Handler
	orders   *fakeOrderUC
	products *fakeProductUC
	users    *fakeUserUC
	observer *recordingObserver
}

func newTestEnv() *testEnv {
	env := &testEnv{
		orders:   &fakeOrderUC{},
		products: &fakeProductUC{},
		users:    &fakeUserUC{},
		observer: &recordingObserver{},
	}

	mux := chi.NewRouter()
	NewRouter(mux, logger.NewNopLogger()).Init(Deps{
		OrderUC:      env.orders,
		ProductUC:    env.products,
		CategoryUC:   fakeCategoryUC{},
		UserUC:       env.users,
		Metrics:      env.observer,
		MaxImageSize: 1 << 20,
	})
	env.handler = mux
	return env
}

func (env *testEnv) do(method, path, token string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGetOrderAccess(t *testing.T) {
	env := newTestEnv()

	tests := []struct {
		name   string
		id     string
		token  string
		status int
	}{
		{"owner", "1", "maria-token", http.StatusOK},
		{"admin", "1", "alex-token", http.StatusOK},
		{"not found for admin", "1000", "alex-token", http.StatusNotFound},
		{"not found for client", "1000", "maria-token", http.StatusNotFound},
		{"no token", "1", "", http.StatusUnauthorized},
		{"invalid token", "1", "bogus", http.StatusUnauthorized},
		{"bad id", "abc", "alex-token", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodGet, "/api/v1/orders/"+tt.id, tt.token, nil, "")
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestGetOrderBody(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodGet, "/api/v1/orders/1", "maria-token", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["id"])
	assert.Equal(t, "2022-07-25T13:00:00Z", body["moment"])
	assert.Equal(t, "PAID", body["status"])
	assert.Equal(t, "Maria Brown", body["client"].(map[string]any)["name"])
	assert.Equal(t, 1431.0, body["total"])

	items := body["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, float64(1), first["productId"])
	assert.Equal(t, "The Lord of the Rings", first["name"])
	assert.Equal(t, 90.5, first["price"])
	assert.Equal(t, 181.0, first["subTotal"])
	assert.Contains(t, rec.Body.String(), `"total":1431.00`)
}

func TestErrorBody(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodGet, "/api/v1/orders/1000", "alex-token", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(404), body["status"])
	assert.Equal(t, "resource not found: order 1000", body["error"])
	assert.Equal(t, "/api/v1/orders/1000", body["path"])
	assert.NotEmpty(t, body["timestamp"])
	assert.NotContains(t, body, "errors")
}

func TestPlaceOrder(t *testing.T) {
	env := newTestEnv()
	payload := []byte(`{"items":[{"productId":1,"quantity":2},{"productId":3,"quantity":1}]}`)

	t.Run("client", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/v1/orders", "maria-token", payload, "application/json")
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "/api/v1/orders/4", rec.Header().Get("Location"))

		require.NotNil(t, env.orders.placed)
		assert.Equal(t, []usecase.PlaceOrderItem{{ProductID: 1, Quantity: 2}, {ProductID: 3, Quantity: 1}}, env.orders.placed.Items)
	})

	t.Run("anonymous", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/v1/orders", "", payload, "application/json")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("empty order", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/v1/orders", "maria-token", []byte(`{"items":[]}`), "application/json")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		body := decodeBody(t, rec)
		fields := body["errors"].([]any)
		require.Len(t, fields, 1)
		assert.Equal(t, "items", fields[0].(map[string]any)["fieldName"])
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/v1/orders", "maria-token", []byte(`{"items":`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestProductRoutes(t *testing.T) {
	env := newTestEnv()

	t.Run("public list uses default page", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/products?name=ma", "", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, float64(20), body["pageable"].(map[string]any)["pageSize"])
		first := body["content"].([]any)[0].(map[string]any)
		assert.Equal(t, 1250.0, first["price"])
		assert.Equal(t, "https://img/3-big.jpg", first["imageUrl"])
	})

	t.Run("find by id", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/products/1", "", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotNil(t, decodeBody(t, rec)["categories"])

		rec = env.do(http.MethodGet, "/api/v1/products/99", "", nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	product := []byte(`{"name":"Produto 1","description":"lorem ipsium lorem ipsium","price":399.0,"imageUrl":"https://img/1-big.jpg","categories":[{"id":2}]}`)

	t.Run("insert requires admin", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/api/v1/products", "", product, "application/json").Code)
		assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/api/v1/products", "maria-token", product, "application/json").Code)

		rec := env.do(http.MethodPost, "/api/v1/products", "alex-token", product, "application/json")
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, int64(39900), env.products.inserted.Price)
		assert.Equal(t, []int64{2}, env.products.inserted.CategoryIDs)
		assert.Equal(t, 399.0, decodeBody(t, rec)["price"])
	})

	t.Run("invalid price is a field error", func(t *testing.T) {
		bad := []byte(`{"name":"Produto 1","description":"lorem ipsium lorem ipsium","price":1.999,"categories":[{"id":2}]}`)
		rec := env.do(http.MethodPost, "/api/v1/products", "alex-token", bad, "application/json")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), `"fieldName":"price"`)

		negative := []byte(`{"name":"Produto 1","description":"lorem ipsium lorem ipsium","price":-50.0,"categories":[{"id":2}]}`)
		rec = env.do(http.MethodPost, "/api/v1/products", "alex-token", negative, "application/json")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/api/v1/products/1", "alex-token", nil, "").Code)
		assert.Equal(t, http.StatusBadRequest, env.do(http.MethodDelete, "/api/v1/products/3", "alex-token", nil, "").Code)
	})

	t.Run("upload image", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("image", "front.png")
		require.NoError(t, err)
		_, err = fw.Write([]byte("\x89PNG\r\n\x1a\n0000000000"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		rec := env.do(http.MethodPut, "/api/v1/products/1/image", "alex-token", buf.Bytes(), mw.FormDataContentType())
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", env.products.image.MimeType)

		rec = env.do(http.MethodPut, "/api/v1/products/1/image", "alex-token", []byte(`{}`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthRoutes(t *testing.T) {
	env := newTestEnv()

	t.Run("json credentials", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/v1/auth/token", "", []byte(`{"email":"maria@gmail.com","password":"123456"}`), "application/json")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, "maria-token", body["access_token"])
		assert.Equal(t, float64(3600), body["expires_in"])
	})

	t.Run("password grant form", func(t *testing.T) {
		form := []byte("grant_type=password&username=maria@gmail.com&password=123456")
		rec := env.do(http.MethodPost, "/api/v1/auth/token", "", form, "application/x-www-form-urlencoded")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("bad credentials", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/v1/auth/token", "", []byte(`{"email":"maria@gmail.com","password":"x"}`), "application/json")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Header().Get("WWW-Authenticate"), "Bearer"))
	})

	t.Run("me and logout", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/users/me", "maria-token", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2001-07-25", decodeBody(t, rec)["birthDate"])

		rec = env.do(http.MethodDelete, "/api/v1/auth/token", "maria-token", nil, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, []string{"maria-token"}, env.users.loggedOut)
	})
}

func TestCategoriesAndMetrics(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodGet, "/api/v1/categories", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":1,"name":"Livros"},{"id":3,"name":"Computadores"}]`, rec.Body.String())

	env.do(http.MethodGet, "/api/v1/orders/1", "maria-token", nil, "")
	assert.Contains(t, env.observer.routes, "GET /api/v1/orders/{id}")
}

func TestHealthz(t *testing.T) {
	env := newTestEnv()
	rec := env.do(http.MethodGet, "/healthz", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
