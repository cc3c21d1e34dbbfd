package usecase

import (
	"context"

	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
)

// CategoryUseCase отдаёт справочник категорий.
type CategoryUseCase struct {
	categoryRepo CategoryRepository
}

func NewCategoryUC(categoryRepo CategoryRepository) *CategoryUseCase {
	return &CategoryUseCase{categoryRepo: categoryRepo}
}

func (c *CategoryUseCase) FindAll(ctx context.Context) ([]domain.Category, error) {
	const op = "CategoryUseCase.FindAll"

	categories, err := c.categoryRepo.FindAll(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return categories, nil
}
