package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
	"github.com/DRSN-tech/dscommerce-backend/internal/usecase"
	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
	"github.com/DRSN-tech/dscommerce-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey int

const (
	callerKey ctxKey = iota
	tokenKey
)

// RequestObserver принимает сведения о завершённом запросе (реализуется метриками).
type RequestObserver interface {
	ObserveRequest(route, method string, status int, elapsed time.Duration)
}

// CallerFromContext возвращает аутентифицированного пользователя или nil.
func CallerFromContext(ctx context.Context) *domain.Caller {
	caller, _ := ctx.Value(callerKey).(*domain.Caller)
	return caller
}

func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Auth разрешает bearer-токен в Caller. Запрос без токена проходит анонимно,
// запрос с недействительным токеном отклоняется с 401.
type Auth struct {
	userUC usecase.UserUC
	logger logger.Logger
}

func NewAuth(userUC usecase.UserUC, logger logger.Logger) *Auth {
	return &Auth{userUC: userUC, logger: logger}
}

func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		caller, err := a.userUC.ResolveCaller(r.Context(), token)
		if err != nil {
			WriteError(w, r, a.logger, err)
			return
		}

		ctx := context.WithValue(r.Context(), callerKey, caller)
		ctx = context.WithValue(ctx, tokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth пропускает только аутентифицированные запросы.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CallerFromContext(r.Context()) == nil {
			WriteError(w, r, a.logger, e.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole пропускает аутентифицированных пользователей с указанной ролью.
func (a *Auth) RequireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := CallerFromContext(r.Context())
			if caller == nil {
				WriteError(w, r, a.logger, e.ErrUnauthenticated)
				return
			}
			if !caller.HasRole(role) {
				WriteError(w, r, a.logger, e.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Observe пишет метрики запроса и добавляет шаблон маршрута в текущий спан.
func Observe(observer RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			trace.SpanFromContext(r.Context()).SetAttributes(semconv.HTTPRoute(route))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			observer.ObserveRequest(route, r.Method, status, time.Since(start))
		})
	}
}
