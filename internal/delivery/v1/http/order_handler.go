package http

import (
	"net/http"

	"github.com/DRSN-tech/dscommerce-backend/internal/usecase"
	"github.com/DRSN-tech/dscommerce-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type OrderHandler struct {
	orderUsecase usecase.OrderUC
	logger       logger.Logger
}

func NewOrderHandler(orderUsecase usecase.OrderUC, logger logger.Logger) *OrderHandler {
	return &OrderHandler{orderUsecase: orderUsecase, logger: logger}
}

// placeOrder
//
//	@Summary		Оформление заказа
//	@Description	Создаёт заказ текущего клиента. Цены позиций фиксируются на момент оформления.
//	@Tags			orders
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			order	body		OrderRequest	true	"Позиции заказа"
//	@Success		201		{object}	OrderResponse
//	@Failure		401		{object}	CustomError
//	@Failure		403		{object}	CustomError
//	@Failure		404		{object}	CustomError	"Товар не найден"
//	@Failure		422		{object}	CustomError
//	@Router			/orders [post]
func (o *OrderHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, o.logger, err)
		return
	}

	view, err := o.orderUsecase.PlaceOrder(r.Context(), CallerFromContext(r.Context()), req.ToUseCase())
	if err != nil {
		WriteError(w, r, o.logger, err)
		return
	}

	w.Header().Set("Location", r.URL.Path+"/"+formatID(view.ID))
	WriteSuccess(w, http.StatusCreated, NewOrderResponse(view))
}

// getOrder
//
//	@Summary		Получение заказа
//	@Description	Доступно владельцу заказа и администратору.
//	@Tags			orders
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"ID заказа"
//	@Success		200	{object}	OrderResponse
//	@Failure		401	{object}	CustomError
//	@Failure		403	{object}	CustomError
//	@Failure		404	{object}	CustomError
//	@Router			/orders/{id} [get]
func (o *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, o.logger, err)
		return
	}

	view, err := o.orderUsecase.GetOrder(r.Context(), CallerFromContext(r.Context()), id)
	if err != nil {
		WriteError(w, r, o.logger, err)
		return
	}

	WriteSuccess(w, http.StatusOK, NewOrderResponse(view))
}
