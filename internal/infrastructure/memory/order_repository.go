package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/Zhima-Mochi/sweetshop/internal/domain/order"
)

type OrderRepository struct {
	mu        sync.RWMutex
	orders    map[string]*domain.Order
	byGateway map[string]string
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:    make(map[string]*domain.Order),
		byGateway: make(map[string]string),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrConflict
	}
	if key := order.GatewayOrderID; key != "" {
		if _, exists := r.byGateway[key]; exists {
			return domain.ErrConflict
		}
		r.byGateway[key] = order.ID
	}

	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error) {
	_ = ctx
	if gatewayOrderID == "" {
		return nil, domain.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byGateway[gatewayOrderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	order, found := r.orders[id]
	if !found {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) Update(ctx context.Context, order *domain.Order, expected domain.Status) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.orders[order.ID]
	if !exists {
		return domain.ErrNotFound
	}
	if current.Status != expected {
		return domain.ErrConflict
	}
	r.orders[order.ID] = order.Clone()
	return nil
}
