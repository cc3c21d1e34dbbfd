package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/dscommerce-backend/internal/domain"
	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
)

// memStore — общее in-memory состояние фейковых репозиториев.
type memStore struct {
	mu          sync.Mutex
	products    map[int64]domain.Product
	categories  map[int64]domain.Category
	users       map[int64]domain.User
	orders      map[int64]domain.Order
	outbox      []domain.OutboxEvent
	nextOrderID int64
	nextProduct int64
	referenced  map[int64]bool // товары, на которые ссылаются заказы
}

func newMemStore() *memStore {
	s := &memStore{
		products:    make(map[int64]domain.Product),
		categories:  make(map[int64]domain.Category),
		users:       make(map[int64]domain.User),
		orders:      make(map[int64]domain.Order),
		nextOrderID: 1,
		nextProduct: 100,
		referenced:  make(map[int64]bool),
	}

	s.categories[1] = domain.Category{ID: 1, Name: "Livros"}
	s.categories[2] = domain.Category{ID: 2, Name: "Eletrônicos"}
	s.categories[3] = domain.Category{ID: 3, Name: "Computadores"}

	s.products[1] = domain.Product{ID: 1, Name: "The Lord of the Rings", Description: "Lorem ipsum dolor sit amet", Price: 1000, CategoryIDs: []int64{1}}
	s.products[3] = domain.Product{ID: 3, Name: "Macbook Pro", Description: "Lorem ipsum dolor sit amet", Price: 125000, CategoryIDs: []int64{3}}
	s.products[4] = domain.Product{ID: 4, Name: "PC Gamer", Description: "Lorem ipsum dolor sit amet", Price: 120000, CategoryIDs: []int64{3}}

	s.users[1] = domain.User{ID: 1, Name: "Maria Brown", Email: "maria@gmail.com", PasswordHash: "hash:123456", Roles: []domain.Role{domain.RoleClient}}
	s.users[2] = domain.User{ID: 2, Name: "Bob Green", Email: "bob@gmail.com", PasswordHash: "hash:123456", Roles: []domain.Role{domain.RoleClient}}
	s.users[3] = domain.User{ID: 3, Name: "Ana White", Email: "ana@gmail.com", PasswordHash: "hash:123456", Roles: []domain.Role{domain.RoleClient}}
	s.users[9] = domain.User{ID: 9, Name: "Alex Grey", Email: "alex@gmail.com", PasswordHash: "hash:123456", Roles: []domain.Role{domain.RoleClient, domain.RoleAdmin}}

	return s
}

func (s *memStore) caller(id int64) *domain.Caller {
	u := s.users[id]
	return domain.NewCaller(&u)
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) outboxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outbox)
}

// fakeTx откатывает состояние хранилища, если fn вернула ошибку.
type fakeTx struct {
	store *memStore
	calls int
}

func (f *fakeTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++

	f.store.mu.Lock()
	orders := make(map[int64]domain.Order, len(f.store.orders))
	for k, v := range f.store.orders {
		orders[k] = v
	}
	products := make(map[int64]domain.Product, len(f.store.products))
	for k, v := range f.store.products {
		products[k] = v
	}
	outbox := append([]domain.OutboxEvent(nil), f.store.outbox...)
	nextOrderID, nextProduct := f.store.nextOrderID, f.store.nextProduct
	f.store.mu.Unlock()

	if err := fn(ctx); err != nil {
		f.store.mu.Lock()
		f.store.orders = orders
		f.store.products = products
		f.store.outbox = outbox
		f.store.nextOrderID, f.store.nextProduct = nextOrderID, nextProduct
		f.store.mu.Unlock()
		return err
	}

	return nil
}

type fakeOrderRepo struct {
	store     *memStore
	createErr error
}

func (r *fakeOrderRepo) Create(_ context.Context, order *domain.Order) (*domain.Order, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	created := *order
	created.ID = r.store.nextOrderID
	r.store.nextOrderID++
	created.Items = make([]domain.OrderItem, len(order.Items))
	for i, item := range order.Items {
		item.OrderID = created.ID
		created.Items[i] = item
		r.store.referenced[item.ProductID] = true
	}
	r.store.orders[created.ID] = created

	out := created
	return &out, nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id int64) (*domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	o, ok := r.store.orders[id]
	if !ok {
		return nil, e.NotFound("order", id)
	}

	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return &o, nil
}

type fakeProductRepo struct {
	store          *memStore
	updateImageErr error
	getByIDsCalls  int
	// getByIDErrAt — номер вызова GetByID (с единицы), который завершится ошибкой getByIDErr.
	getByIDErrAt int
	getByIDErr   error
	getByIDCalls int
}

func (r *fakeProductRepo) GetByID(_ context.Context, id int64) (*domain.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.getByIDCalls++
	if r.getByIDErrAt == r.getByIDCalls {
		return nil, r.getByIDErr
	}

	p, ok := r.store.products[id]
	if !ok {
		return nil, e.NotFound("product", id)
	}
	return &p, nil
}

func (r *fakeProductRepo) GetByIDs(_ context.Context, ids []int64) ([]domain.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.getByIDsCalls++

	res := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.store.products[id]; ok {
			res = append(res, p)
		}
	}
	return res, nil
}

func (r *fakeProductRepo) Search(_ context.Context, name string, page, size int) ([]domain.Product, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var matched []domain.Product
	for _, p := range r.store.products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(name)) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := int64(len(matched))
	from := page * size
	if from >= len(matched) {
		return []domain.Product{}, total, nil
	}
	to := min(from+size, len(matched))
	return matched[from:to], total, nil
}

func (r *fakeProductRepo) Create(_ context.Context, product *domain.Product) (*domain.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	created := *product
	created.ID = r.store.nextProduct
	r.store.nextProduct++
	r.store.products[created.ID] = created
	return &created, nil
}

func (r *fakeProductRepo) Update(_ context.Context, product *domain.Product) (*domain.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.products[product.ID]; !ok {
		return nil, e.NotFound("product", product.ID)
	}
	r.store.products[product.ID] = *product
	updated := *product
	return &updated, nil
}

func (r *fakeProductRepo) UpdateImageURL(_ context.Context, id int64, imageURL string) error {
	if r.updateImageErr != nil {
		return r.updateImageErr
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p, ok := r.store.products[id]
	if !ok {
		return e.NotFound("product", id)
	}
	p.ImageURL = imageURL
	r.store.products[id] = p
	return nil
}

func (r *fakeProductRepo) Delete(_ context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.products[id]; !ok {
		return e.NotFound("product", id)
	}
	if r.store.referenced[id] {
		return e.ErrDatabase
	}
	delete(r.store.products, id)
	return nil
}

// setPrice меняет цену в каталоге в обход use case.
func (r *fakeProductRepo) setPrice(id, price int64) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p := r.store.products[id]
	p.Price = price
	r.store.products[id] = p
}

type fakeCategoryRepo struct {
	store *memStore
}

func (r *fakeCategoryRepo) FindAll(context.Context) ([]domain.Category, error) {
	res := make([]domain.Category, 0, len(r.store.categories))
	for _, c := range r.store.categories {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

func (r *fakeCategoryRepo) ExistingIDs(_ context.Context, ids []int64) ([]int64, error) {
	res := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := r.store.categories[id]; ok {
			res = append(res, id)
		}
	}
	return res, nil
}

type fakeUserRepo struct {
	store *memStore
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := r.store.users[id]
	if !ok {
		return nil, e.NotFound("user", id)
	}
	return &u, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.store.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, e.ErrResourceNotFound
}

type fakeOutboxRepo struct {
	store     *memStore
	createErr error
}

func (r *fakeOutboxRepo) Create(_ context.Context, event *domain.OutboxEvent) (*domain.OutboxEvent, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	created := *event
	created.ID = int64(len(r.store.outbox) + 1)
	r.store.outbox = append(r.store.outbox, created)
	return &created, nil
}

func (r *fakeOutboxRepo) GetAndMarkAsProcessing(context.Context, int) ([]*domain.OutboxEvent, error) {
	return nil, nil
}

func (r *fakeOutboxRepo) MarkAsProcessed(context.Context, int64) error { return nil }

func (r *fakeOutboxRepo) Reschedule(context.Context, int64, int, time.Duration) (domain.OutboxStatus, error) {
	return domain.OutboxPending, nil
}

func (r *fakeOutboxRepo) RequeueStuck(context.Context, time.Duration) (int64, error) { return 0, nil }

// fakeCache хранит версии товаров так же, как CacheRepo: запись из SetProducts
// применяется, только если версия не менялась с момента GetProducts.
type fakeCache struct {
	mu          sync.Mutex
	items       map[int64]ProductInfo
	versions    CacheVersions
	getErr      error
	invalidated []int64
	setCalls    int
	// setGate, если задан, задерживает SetProducts до закрытия канала.
	setGate chan struct{}
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[int64]ProductInfo), versions: make(CacheVersions)}
}

func (c *fakeCache) GetProducts(_ context.Context, ids []int64) (*CachedProducts, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	res := &CachedProducts{Products: make(map[int64]ProductInfo), Versions: make(CacheVersions)}
	for _, id := range ids {
		res.Versions[id] = c.versions[id]
		if p, ok := c.items[id]; ok {
			res.Products[id] = p
		}
	}
	return res, nil
}

func (c *fakeCache) SetProducts(_ context.Context, products []ProductInfo, versions CacheVersions) error {
	if c.setGate != nil {
		<-c.setGate
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.setCalls++
	for _, p := range products {
		if v, ok := versions[p.ID]; ok && v == c.versions[p.ID] {
			c.items[p.ID] = p
		}
	}
	return nil
}

func (c *fakeCache) InvalidateProducts(_ context.Context, ids []int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		c.versions[id]++
		delete(c.items, id)
	}
	c.invalidated = append(c.invalidated, ids...)
	return nil
}

func (c *fakeCache) cached(id int64) (ProductInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[id]
	return p, ok
}

func (c *fakeCache) sets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setCalls
}

type fakeImages struct {
	uploaded []string
	cleaned  []string
	err      error
}

func (f *fakeImages) UploadImages(_ context.Context, req *UploadImagesReq) (*UploadImagesRes, error) {
	if f.err != nil {
		return nil, f.err
	}

	keys := make([]string, 0, len(req.Images))
	for _, img := range req.Images {
		keys = append(keys, req.Prefix+"/"+img.Name)
	}
	f.uploaded = append(f.uploaded, keys...)
	return NewUploadImagesRes(keys), nil
}

func (f *fakeImages) CleanupImages(keys []string) {
	f.cleaned = append(f.cleaned, keys...)
}

func (f *fakeImages) PublicURL(key string) string {
	return "http://cdn.local/" + key
}

type fakeEncoder struct{}

func (fakeEncoder) EncodeOrderPlaced(order *domain.Order) ([]byte, error) {
	if order.ID == 0 {
		return nil, errors.New("order id is not assigned")
	}
	return []byte("order-placed"), nil
}

type fakeMetrics struct {
	placed []int64
	denied []string
}

func (m *fakeMetrics) OrderPlaced(total int64)    { m.placed = append(m.placed, total) }
func (m *fakeMetrics) AccessDenied(reason string) { m.denied = append(m.denied, reason) }

type fakeHasher struct{}

func (fakeHasher) Compare(hash, password string) error {
	if hash != "hash:"+password {
		return errors.New("mismatch")
	}
	return nil
}

type fakeSessions struct {
	mu     sync.Mutex
	tokens map[string]int64
	ttl    time.Duration
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{tokens: make(map[string]int64)}
}

func (s *fakeSessions) Save(_ context.Context, token string, userID int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = userID
	s.ttl = ttl
	return nil
}

func (s *fakeSessions) GetUserID(_ context.Context, token string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[token]
	if !ok {
		return 0, e.ErrUnauthenticated
	}
	return id, nil
}

func (s *fakeSessions) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}
