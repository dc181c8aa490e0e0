package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"threadmart/internal/config"
	"threadmart/internal/domain"
	"threadmart/internal/middleware"
	"threadmart/internal/repository"
	"threadmart/internal/service"
	"threadmart/internal/storage"

	"github.com/google/uuid"
)

// Mock repositories and collaborators shared by the handler tests. The
// handlers run against the real services so the tests cover the whole
// path from HTTP request to repository call.

type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	user, err := m.FindByID(ctx, id)
	if err != nil {
		return err
	}
	user.IsVerified = true
	return nil
}

func (m *mockUserRepository) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	user, err := m.FindByID(ctx, id)
	if err != nil {
		return err
	}
	user.RefreshToken = token
	return nil
}

func (m *mockUserRepository) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	user, err := m.FindByID(ctx, id)
	if err != nil {
		return err
	}
	user.RefreshToken = ""
	return nil
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	user, err := m.FindByID(ctx, id)
	if err != nil {
		return err
	}
	user.PasswordHash = passwordHash
	return nil
}

type mockMailer struct {
	verificationTokens map[string]string
	resetTokens        map[string]string
}

func newMockMailer() *mockMailer {
	return &mockMailer{
		verificationTokens: make(map[string]string),
		resetTokens:        make(map[string]string),
	}
}

func (m *mockMailer) SendVerification(ctx context.Context, email, username, token string) error {
	m.verificationTokens[email] = token
	return nil
}

func (m *mockMailer) SendPasswordReset(ctx context.Context, email, username, token string) error {
	m.resetTokens[email] = token
	return nil
}

type mockProductRepository struct {
	products map[uuid.UUID]*domain.Product
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{products: make(map[uuid.UUID]*domain.Product)}
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return product, nil
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	var all []*domain.Product
	for _, p := range m.products {
		if filter.Category != nil && p.Category != *filter.Category {
			continue
		}
		all = append(all, p)
	}

	total := len(all)
	start := (filter.Page - 1) * filter.PageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

type mockMediaStore struct {
	assets  map[string]bool
	counter int
}

func newMockMediaStore() *mockMediaStore {
	return &mockMediaStore{assets: make(map[string]bool)}
}

func (m *mockMediaStore) Upload(ctx context.Context, filename string, content io.Reader) (storage.Asset, error) {
	m.counter++
	id := fmt.Sprintf("asset-%d", m.counter)
	m.assets[id] = true
	return storage.Asset{URL: "https://media.test/" + id, StorageID: id}, nil
}

func (m *mockMediaStore) Delete(ctx context.Context, storageID string) error {
	delete(m.assets, storageID)
	return nil
}

type stockEntry struct {
	name  string
	price float64
	stock int
}

type mockOrderRepository struct {
	products map[uuid.UUID]*stockEntry
	orders   map[uuid.UUID]*domain.Order
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{
		products: make(map[uuid.UUID]*stockEntry),
		orders:   make(map[uuid.UUID]*domain.Order),
	}
}

func (m *mockOrderRepository) addProduct(price float64, stock int) uuid.UUID {
	id := uuid.New()
	m.products[id] = &stockEntry{name: "product", price: price, stock: stock}
	return id
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	for _, item := range order.Items {
		entry, ok := m.products[item.ProductID]
		if !ok {
			return repository.ErrProductNotFound
		}
		if entry.stock < item.Quantity {
			return repository.ErrInsufficientStock
		}
	}

	subtotal := 0.0
	for i := range order.Items {
		entry := m.products[order.Items[i].ProductID]
		entry.stock -= order.Items[i].Quantity
		order.Items[i].ID = uuid.New()
		order.Items[i].Name = entry.name
		order.Items[i].Price = entry.price
		subtotal += entry.price * float64(order.Items[i].Quantity)
	}

	order.Subtotal = subtotal
	order.TotalAmount = order.Subtotal + order.ShippingCost + order.Tax
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

func (m *mockOrderRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	var result []*domain.Order
	for _, order := range m.orders {
		if order.UserID == userID {
			result = append(result, order)
		}
	}
	return result, nil
}

func (m *mockOrderRepository) FindAll(ctx context.Context) ([]*domain.Order, error) {
	var result []*domain.Order
	for _, order := range m.orders {
		result = append(result, order)
	}
	return result, nil
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	order, ok := m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	order.Status = status
	return nil
}

func (m *mockOrderRepository) CancelWithRestock(ctx context.Context, id uuid.UUID) error {
	order, ok := m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if order.Status == domain.OrderStatusCancelled {
		return repository.ErrOrderAlreadyClosed
	}
	order.Status = domain.OrderStatusCancelled
	for _, item := range order.Items {
		m.products[item.ProductID].stock += item.Quantity
	}
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:        "test-secret",
		RefreshSecret: "test-refresh-secret",
		AccessExpiry:  15,
		RefreshExpiry: 30,
	}
}

// identityAs injects an authenticated identity the way AuthMiddleware
// would, without minting tokens.
func identityAs(userID uuid.UUID, isAdmin bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
			ctx = context.WithValue(ctx, middleware.IsAdminKey, isAdmin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func passthrough(next http.Handler) http.Handler {
	return next
}

func registerVerifiedUser(userService service.UserService, mailer *mockMailer, email, password string) error {
	ctx := context.Background()
	if _, err := userService.Register(ctx, strings.Split(email, "@")[0], email, password); err != nil {
		return err
	}
	return userService.VerifyEmail(ctx, mailer.verificationTokens[email])
}
