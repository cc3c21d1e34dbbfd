package converter

// ProductInfoRedisModel — представление продукта в кэше Redis.
type ProductInfoRedisModel struct {
	ID          int64                `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Price       int64                `json:"price"`
	ImageURL    string               `json:"img_url"`
	Categories  []CategoryRedisModel `json:"categories"`
}

type CategoryRedisModel struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
