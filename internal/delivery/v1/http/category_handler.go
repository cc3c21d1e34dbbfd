package http

import (
	"net/http"

	"github.com/DRSN-tech/dscommerce-backend/internal/usecase"
	"github.com/DRSN-tech/dscommerce-backend/pkg/logger"
)

type CategoryHandler struct {
	categoryUsecase usecase.CategoryUC
	logger          logger.Logger
}

func NewCategoryHandler(categoryUsecase usecase.CategoryUC, logger logger.Logger) *CategoryHandler {
	return &CategoryHandler{categoryUsecase: categoryUsecase, logger: logger}
}

// findAll
//
//	@Summary	Список категорий
//	@Tags		categories
//	@Produce	json
//	@Success	200	{array}	CategoryDTO
//	@Router		/categories [get]
func (c *CategoryHandler) findAll(w http.ResponseWriter, r *http.Request) {
	categories, err := c.categoryUsecase.FindAll(r.Context())
	if err != nil {
		WriteError(w, r, c.logger, err)
		return
	}

	WriteSuccess(w, http.StatusOK, NewCategoryDTOs(categories))
}
