package domain

// Product описывает товар каталога
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       int64 // Цена хранится в копейках
	ImageURL    string
	CategoryIDs []int64
	Categories  []Category
}

func NewProduct(name, description string, price int64, imageURL string, categoryIDs []int64) *Product {
	return &Product{
		Name:        name,
		Description: description,
		Price:       price,
		ImageURL:    imageURL,
		CategoryIDs: categoryIDs,
	}
}
