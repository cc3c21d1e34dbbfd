package domain

// Category описывает категорию товара
type Category struct {
	ID   int64
	Name string
}

func NewCategory(id int64, name string) *Category {
	return &Category{
		ID:   id,
		Name: name,
	}
}
