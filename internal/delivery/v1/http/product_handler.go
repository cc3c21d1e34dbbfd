package http

import (
	"net/http"

	"github.com/DRSN-tech/dscommerce-backend/internal/usecase"
	"github.com/DRSN-tech/dscommerce-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type ProductHandler struct {
	productUsecase usecase.ProductUC
	logger         logger.Logger
	maxImageSize   int64
}

func NewProductHandler(productUsecase usecase.ProductUC, logger logger.Logger, maxImageSize int64) *ProductHandler {
	return &ProductHandler{productUsecase: productUsecase, logger: logger, maxImageSize: maxImageSize}
}

// findAll
//
//	@Summary		Поиск товаров
//	@Description	Постраничный поиск по вхождению в название без учёта регистра
//	@Tags			products
//	@Produce		json
//	@Param			name	query		string	false	"Часть названия"
//	@Param			page	query		int		false	"Номер страницы, с 0"
//	@Param			size	query		int		false	"Размер страницы (1..100)"
//	@Success		200		{object}	ProductPageResponse
//	@Failure		400		{object}	CustomError
//	@Router			/products [get]
func (p *ProductHandler) findAll(w http.ResponseWriter, r *http.Request) {
	page, err := parseIntQuery(r, "page", 0)
	if err != nil {
		WriteError(w, r, p.logger, err)
		return
	}
	size, err := parseIntQuery(r, "size", usecase.DefaultPageSize)
	if err != nil {
		WriteError(w, r, p.logger, err)
		return
	}

	res, err := p.productUsecase.FindAll(r.Context(), r.URL.Query().Get("name"), page, size)
	if err != nil {
		WriteError(w, r, p.logger, err)
		return
	}

	WriteSuccess(w, http.StatusOK, NewProductPageResponse(res))
}

// findByID
//
//	@Summary	Получение товара
//	@Tags		products
//	@Produce	json
//	@Param		id	path		int	true	"ID товара"
//	@Success	200	{object}	ProductResponse
//	@Failure	404	{object}	CustomError
//	@Router		/products/{id} [get]
func (p *ProductHandler) findByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, p.logger, err)
		return
	}

	info, err := p.productUsecase.FindByID(r.Context(), id)
	if err != nil {
		WriteError(w, r, p.logger, err)
		return
	}

	WriteSuccess(w, http.StatusOK, NewProductResponse(info))
}

// insert
//
//	@Summary	Создание товара
//	@Tags		products
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		product	body		ProductRequest	true	"Товар"
//	@Success	201		{object}	ProductResponse
//	@Failure	401		{object}	CustomError
//	@Failure	403		{object}	CustomError
//	@Failure	422		{object}	CustomError
//	@Router		/products [post]
func (p *ProductHandler) insert(w http.ResponseWriter, r *http.Request) {
	req, err := p.readProduct(w, r)
	if err != nil {
		WriteError(w, r, p.logger, err)
		return
	}

	info, err := p.productUsecase.Insert(r.Context(), req)
	if err != nil {
		WriteError(w, r, p.logger, err)
		return
	}

	w.Header().Set("Location", r.URL.Path+"/"+formatID(info.ID))
	WriteSuccess(w, http.StatusCreated, NewProductResponse(info))
}

// update
//
//	@Summary	Обновление товара
//	@Tags		products
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		int				true	"ID товара"
//	@Param		product	body		ProductRequest	true	"Товар"
//	@Success	200		{object}	ProductResponse
//	@Failure	404		{object}	CustomError
//	@Failure	422		{object}	CustomError
//	@Router		/products/{id} [put]
func (p *ProductHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, p.logger, err)
		return
	}

	req, err := p.readProduct(w, r)
	if err != nil {
		WriteError(w, r, p.logger, err)
		return
	}

	info, err := p.productUsecase.Update(r.Context(), id, req)
	if err != nil {
		WriteError(w, r, p.logger, err)
		return
	}

	WriteSuccess(w, http.StatusOK, NewProductResponse(info))
}

// delete
//
//	@Summary	Удаление товара
//	@Tags		products
//	@Security	BearerAuth
//	@Param		id	path	int	true	"ID товара"
//	@Success	204
//	@Failure	400	{object}	CustomError	"Товар входит в заказы"
//	@Failure	404	{object}	CustomError
//	@Router		/products/{id} [delete]
func (p *ProductHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, p.logger, err)
		return
	}

	if err := p.productUsecase.Delete(r.Context(), id); err != nil {
		WriteError(w, r, p.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// uploadImage
//
//	@Summary		Загрузка изображения товара
//	@Description	Сохраняет изображение в объектное хранилище и обновляет imageUrl товара
//	@Tags			products
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		int		true	"ID товара"
//	@Param			image	formData	file	true	"Изображение (jpeg, png, webp)"
//	@Success		200		{object}	ProductResponse
//	@Failure		400		{object}	CustomError
//	@Failure		413		{object}	CustomError
//	@Failure		415		{object}	CustomError
//	@Router			/products/{id}/image [put]
func (p *ProductHandler) uploadImage(w http.ResponseWriter, r *http.Request) {
	const maxMemory = 8 << 20

	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, p.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, p.maxImageSize+(1<<20))
	if err := ensureMultipartForm(r, maxMemory); err != nil {
		WriteError(w, r, p.logger, err)
		return
	}

	image, err := parseImage(r.MultipartForm.File["image"], p.maxImageSize)
	if err != nil {
		WriteError(w, r, p.logger, err)
		return
	}

	info, err := p.productUsecase.UploadImage(r.Context(), id, image)
	if err != nil {
		WriteError(w, r, p.logger, err)
		return
	}

	WriteSuccess(w, http.StatusOK, NewProductResponse(info))
}

func (p *ProductHandler) readProduct(w http.ResponseWriter, r *http.Request) (*usecase.SaveProductReq, error) {
	var body ProductRequest
	if err := decodeJSON(w, r, &body); err != nil {
		return nil, err
	}
	return body.ToUseCase()
}
