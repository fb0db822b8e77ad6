package storefront

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"github.com/KshitijGomber/arrow3-sub001/internal/cache"
	"github.com/KshitijGomber/arrow3-sub001/internal/domain"
	"github.com/KshitijGomber/arrow3-sub001/internal/transport"
	apperrors "github.com/KshitijGomber/arrow3-sub001/pkg/errors"
	"github.com/KshitijGomber/arrow3-sub001/pkg/pagination"
	"github.com/KshitijGomber/arrow3-sub001/pkg/validator"
)

// OrderService reads and mutates the signed-in customer's orders.
type OrderService struct {
	api    *transport.Client
	cache  *cache.Store
	logger *slog.Logger
}

// CreateOrderInput is the checkout payload.
type CreateOrderInput struct {
	Items           []OrderItemInput `json:"items" validate:"required,min=1,dive"`
	ShippingAddress AddressInput     `json:"shippingAddress"`

	// IdempotencyKey lets the server drop duplicate submissions from a
	// retried checkout. Filled automatically when empty.
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// OrderItemInput is one checkout line.
type OrderItemInput struct {
	DroneID  string `json:"droneId" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1,max=10"`
}

// AddressInput is the shipping address form.
type AddressInput struct {
	FullName    string `json:"fullName" validate:"required,max=120"`
	AddressLine string `json:"addressLine" validate:"required,max=200"`
	City        string `json:"city" validate:"required,max=80"`
	State       string `json:"state" validate:"max=80"`
	PostalCode  string `json:"postalCode" validate:"required,max=20"`
	Country     string `json:"country" validate:"required,len=2"`
	Phone       string `json:"phone,omitempty" validate:"omitempty,max=20"`
}

// List returns a page of the customer's orders, newest first.
func (s *OrderService) List(ctx context.Context, page pagination.Params) (pagination.Result[domain.Order], error) {
	key := cache.NewKey(resourceOrders, pageParams(nil, page)...)
	return cache.QueryAs(ctx, s.cache, key, func(ctx context.Context) (pagination.Result[domain.Order], error) {
		var result pagination.Result[domain.Order]
		err := s.api.Get(ctx, "/orders?"+page.Query().Encode(), &result)
		return result, err
	}, cache.Options{})
}

// Get returns one order by id.
func (s *OrderService) Get(ctx context.Context, id string) (*domain.Order, error) {
	key := cache.NewKey(resourceOrder, "id", id)
	return cache.QueryAs(ctx, s.cache, key, func(ctx context.Context) (*domain.Order, error) {
		var order domain.Order
		if err := s.api.Get(ctx, "/orders/"+url.PathEscape(id), &order); err != nil {
			return nil, err
		}
		return &order, nil
	}, cache.Options{
		Enabled: func() bool { return id != "" },
	})
}

// Create places an order. Every order list page goes stale afterwards; the
// created order is seeded into the cache directly.
func (s *OrderService) Create(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	if input.IdempotencyKey == "" {
		input.IdempotencyKey = uuid.NewString()
	}

	return cache.MutateAs(ctx, s.cache, func(ctx context.Context) (*domain.Order, error) {
		var order domain.Order
		if err := s.api.Post(ctx, "/orders", input, &order); err != nil {
			return nil, err
		}
		return &order, nil
	}, cache.MutationOpts{
		Invalidates: []cache.Predicate{cache.ByResource(resourceOrders)},
		OnSuccess: func(resp any) {
			if order, ok := resp.(*domain.Order); ok && order.ID != "" {
				s.cache.Set(cache.NewKey(resourceOrder, "id", order.ID), order)
			}
		},
	})
}

// Cancel cancels an order that has not shipped. The cached order flips to
// canceled immediately and rolls back if the server refuses.
func (s *OrderService) Cancel(ctx context.Context, id, reason string) (*domain.Order, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsCancelable() {
		return nil, apperrors.InvalidInput("order can no longer be canceled: status is " + current.Status)
	}

	key := cache.NewKey(resourceOrder, "id", id)
	body := map[string]string{"reason": reason}

	return cache.MutateAs(ctx, s.cache, func(ctx context.Context) (*domain.Order, error) {
		var order domain.Order
		if err := s.api.Post(ctx, "/orders/"+url.PathEscape(id)+"/cancel", body, &order); err != nil {
			return nil, err
		}
		return &order, nil
	}, cache.MutationOpts{
		Invalidates: []cache.Predicate{
			cache.ByResource(resourceOrders),
			cache.Exactly(key),
		},
		Optimistic: &cache.Optimistic{
			Key: key,
			Apply: func(current any) any {
				order, ok := current.(*domain.Order)
				if !ok || order == nil {
					return current
				}
				updated := *order
				updated.Status = domain.OrderStatusCanceled
				updated.CanceledReason = reason
				return &updated
			},
		},
	})
}
