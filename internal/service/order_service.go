package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"threadmart/internal/domain"
	"threadmart/internal/repository"

	"github.com/google/uuid"
)

// ShippingCost is the flat shipping fee applied to every order.
const ShippingCost = 10.00

var (
	ErrNoOrderItems        = errors.New("no order items provided")
	ErrMissingShippingInfo = errors.New("shipping address and payment method are required")
	ErrInvalidQuantity     = errors.New("item quantity must be positive")
	ErrInvalidOrderStatus  = errors.New("invalid order status")
	ErrOrderAccessDenied   = errors.New("not allowed to view this order")
)

// OrderItemInput is one requested line item. Price is never taken from the
// caller; the live catalog price is snapshotted at creation.
type OrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// OrderService defines the interface for order business logic
type OrderService interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, items []OrderItemInput, shipping domain.ShippingAddress, paymentMethod string) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID, requesterID uuid.UUID, isAdmin bool) (*domain.Order, error)
	GetUserOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	GetAllOrders(ctx context.Context) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status string) (*domain.Order, error)
}

type orderService struct {
	orderRepo repository.OrderRepository
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(orderRepo repository.OrderRepository) OrderService {
	return &orderService{orderRepo: orderRepo}
}

// CreateOrder validates the request and places the order. Stock checks,
// price snapshots, the decrement and the totals all happen atomically in
// the repository; a failed item aborts the whole order.
func (s *orderService) CreateOrder(ctx context.Context, userID uuid.UUID, items []OrderItemInput, shipping domain.ShippingAddress, paymentMethod string) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, ErrNoOrderItems
	}
	if shipping.FullName == "" || shipping.Address == "" || shipping.City == "" ||
		shipping.PostalCode == "" || shipping.Country == "" || paymentMethod == "" {
		return nil, ErrMissingShippingInfo
	}

	orderItems := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		orderItems = append(orderItems, domain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          userID,
		Items:           orderItems,
		ShippingAddress: shipping,
		PaymentMethod:   paymentMethod,
		ShippingCost:    ShippingCost,
		Tax:             0,
		Status:          domain.OrderStatusPending,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

// GetOrder retrieves one order for its owner or an admin.
func (s *orderService) GetOrder(ctx context.Context, orderID, requesterID uuid.UUID, isAdmin bool) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.UserID != requesterID && !isAdmin {
		return nil, ErrOrderAccessDenied
	}

	return order, nil
}

// GetUserOrders retrieves all orders for a user, newest first.
func (s *orderService) GetUserOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	return s.orderRepo.FindByUser(ctx, userID)
}

// GetAllOrders retrieves every order, newest first.
func (s *orderService) GetAllOrders(ctx context.Context) ([]*domain.Order, error) {
	return s.orderRepo.FindAll(ctx)
}

// UpdateOrderStatus applies a status transition. Moving into cancelled
// restores the deducted stock (once); every other transition is a direct
// overwrite.
func (s *orderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status string) (*domain.Order, error) {
	newStatus := domain.OrderStatus(status)
	if !newStatus.Valid() {
		return nil, ErrInvalidOrderStatus
	}

	if newStatus == domain.OrderStatusCancelled {
		err := s.orderRepo.CancelWithRestock(ctx, orderID)
		if err != nil && err != repository.ErrOrderAlreadyClosed {
			return nil, err
		}
		// An already cancelled order stays cancelled without restocking again.
	} else {
		if err := s.orderRepo.UpdateStatus(ctx, orderID, newStatus); err != nil {
			return nil, err
		}
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload order: %w", err)
	}

	return order, nil
}
