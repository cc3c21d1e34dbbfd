package http

import (
	"context"
	"net/http"
	"time"

	_ "github.com/DRSN-tech/dscommerce-backend/docs" // Регистрация спецификации swagger
	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
	"github.com/DRSN-tech/dscommerce-backend/internal/usecase"
	"github.com/DRSN-tech/dscommerce-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Pinger проверяет доступность зависимости для /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps — всё, что нужно роутеру для регистрации маршрутов.
type Deps struct {
	OrderUC      usecase.OrderUC
	ProductUC    usecase.ProductUC
	CategoryUC   usecase.CategoryUC
	UserUC       usecase.UserUC
	Metrics      RequestObserver
	MetricsH     http.Handler
	DB           Pinger
	MaxImageSize int64
}

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

// Handler возвращает роутер, обёрнутый в otelhttp.
func (r *Router) Handler(serviceName string) http.Handler {
	return otelhttp.NewHandler(r.router, serviceName,
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
}

func (r *Router) Init(deps Deps) {
	r.router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	if deps.MetricsH != nil {
		r.router.Handle("/metrics", deps.MetricsH)
	}
	r.router.Get("/healthz", healthz(deps.DB))

	auth := NewAuth(deps.UserUC, r.logger)

	r.router.Route("/api/v1", func(v1 chi.Router) {
		if deps.Metrics != nil {
			v1.Use(Observe(deps.Metrics))
		}
		v1.Use(auth.Authenticate)

		registerAuthRoutes(v1, auth, NewAuthHandler(deps.UserUC, r.logger))
		registerCategoryRoutes(v1, NewCategoryHandler(deps.CategoryUC, r.logger))
		registerProductRoutes(v1, auth, NewProductHandler(deps.ProductUC, r.logger, deps.MaxImageSize))
		registerOrderRoutes(v1, auth, NewOrderHandler(deps.OrderUC, r.logger))
	})
}

func registerAuthRoutes(router chi.Router, auth *Auth, h *AuthHandler) {
	router.Post("/auth/token", h.issueToken)
	router.With(auth.RequireAuth).Delete("/auth/token", h.revokeToken)
	router.With(auth.RequireAuth).Get("/users/me", h.getMe)
}

func registerCategoryRoutes(router chi.Router, h *CategoryHandler) {
	router.Get("/categories", h.findAll)
}

func registerProductRoutes(router chi.Router, auth *Auth, h *ProductHandler) {
	router.Route("/products", func(pr chi.Router) {
		pr.Get("/", h.findAll)
		pr.Get("/{id}", h.findByID)

		pr.Group(func(admin chi.Router) {
			admin.Use(auth.RequireRole(domain.RoleAdmin))
			admin.Post("/", h.insert)
			admin.Put("/{id}", h.update)
			admin.Delete("/{id}", h.delete)
			admin.Put("/{id}/image", h.uploadImage)
		})
	})
}

func registerOrderRoutes(router chi.Router, auth *Auth, h *OrderHandler) {
	router.Route("/orders", func(or chi.Router) {
		or.With(auth.RequireRole(domain.RoleClient)).Post("/", h.placeOrder)
		or.With(auth.RequireAuth).Get("/{id}", h.getOrder)
	})
}

func healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				WriteSuccess(w, http.StatusServiceUnavailable, map[string]string{"status": "DOWN"})
				return
			}
		}
		WriteSuccess(w, http.StatusOK, map[string]string{"status": "UP"})
	}
}
