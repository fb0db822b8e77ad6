package storefront

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/KshitijGomber/arrow3-sub001/internal/cache"
	"github.com/KshitijGomber/arrow3-sub001/internal/domain"
	"github.com/KshitijGomber/arrow3-sub001/internal/transport"
	apperrors "github.com/KshitijGomber/arrow3-sub001/pkg/errors"
	"github.com/KshitijGomber/arrow3-sub001/pkg/pagination"
	"github.com/KshitijGomber/arrow3-sub001/pkg/validator"
)

// DroneService reads the drone catalog through the cache and performs the
// admin catalog mutations.
type DroneService struct {
	api    *transport.Client
	cache  *cache.Store
	logger *slog.Logger
}

// ListOptions filter the catalog list.
type ListOptions struct {
	Category string
	InStock  bool
	Search   string
	Page     pagination.Params
}

// DroneInput is the admin create/update payload.
type DroneInput struct {
	Name          string            `json:"name" validate:"required,max=120"`
	Model         string            `json:"model" validate:"required,max=120"`
	Category      string            `json:"category" validate:"required,oneof=camera handheld power specialized"`
	Description   string            `json:"description,omitempty"`
	PriceCents    int64             `json:"priceCents" validate:"required,min=1"`
	Currency      string            `json:"currency" validate:"required,len=3"`
	StockQuantity int               `json:"stockQuantity" validate:"min=0"`
	Featured      bool              `json:"featured"`
	Specs         domain.DroneSpecs `json:"specs"`
}

// List returns a catalog page matching opts.
func (s *DroneService) List(ctx context.Context, opts ListOptions) (pagination.Result[domain.Drone], error) {
	if opts.Category != "" && !domain.IsValidCategory(opts.Category) {
		return pagination.Result[domain.Drone]{}, apperrors.InvalidInput("unknown drone category: " + opts.Category)
	}

	q := opts.Page.Query()
	pairs := pageParams(nil, opts.Page)
	if opts.Category != "" {
		q.Set("category", opts.Category)
		pairs = append(pairs, "category", opts.Category)
	}
	if opts.InStock {
		q.Set("inStock", "true")
		pairs = append(pairs, "inStock", "true")
	}
	if opts.Search != "" {
		q.Set("q", opts.Search)
		pairs = append(pairs, "q", opts.Search)
	}

	key := cache.NewKey(resourceDrones, pairs...)
	return cache.QueryAs(ctx, s.cache, key, func(ctx context.Context) (pagination.Result[domain.Drone], error) {
		var page pagination.Result[domain.Drone]
		err := s.api.Get(ctx, "/drones?"+q.Encode(), &page)
		return page, err
	}, cache.Options{})
}

// Get returns one drone by id.
func (s *DroneService) Get(ctx context.Context, id string) (*domain.Drone, error) {
	key := cache.NewKey(resourceDrone, "id", id)
	return cache.QueryAs(ctx, s.cache, key, func(ctx context.Context) (*domain.Drone, error) {
		var drone domain.Drone
		if err := s.api.Get(ctx, "/drones/"+url.PathEscape(id), &drone); err != nil {
			return nil, err
		}
		return &drone, nil
	}, cache.Options{
		Enabled: func() bool { return id != "" },
	})
}

// GetBySlug returns one drone by its URL slug.
func (s *DroneService) GetBySlug(ctx context.Context, slug string) (*domain.Drone, error) {
	key := cache.NewKey(resourceDrone, "slug", slug)
	return cache.QueryAs(ctx, s.cache, key, func(ctx context.Context) (*domain.Drone, error) {
		var drone domain.Drone
		if err := s.api.Get(ctx, "/drones/slug/"+url.PathEscape(slug), &drone); err != nil {
			return nil, err
		}
		return &drone, nil
	}, cache.Options{
		Enabled: func() bool { return slug != "" },
	})
}

// Featured returns the drones highlighted on the landing page.
func (s *DroneService) Featured(ctx context.Context) ([]domain.Drone, error) {
	key := cache.NewKey(resourceFeatured)
	return cache.QueryAs(ctx, s.cache, key, func(ctx context.Context) ([]domain.Drone, error) {
		var drones []domain.Drone
		err := s.api.Get(ctx, "/drones/featured", &drones)
		return drones, err
	}, cache.Options{})
}

// droneInvalidations marks every catalog read stale after a mutation.
func droneInvalidations(id string) []cache.Predicate {
	preds := []cache.Predicate{cache.ByResource(resourceDrones, resourceFeatured)}
	if id != "" {
		preds = append(preds, cache.WithParam(resourceDrone, "id", id))
	} else {
		preds = append(preds, cache.ByResource(resourceDrone))
	}
	return preds
}

// Create adds a drone to the catalog. Admin only; the server enforces the
// role, the client just reports the rejection.
func (s *DroneService) Create(ctx context.Context, input DroneInput) (*domain.Drone, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	return cache.MutateAs(ctx, s.cache, func(ctx context.Context) (*domain.Drone, error) {
		var drone domain.Drone
		if err := s.api.Post(ctx, "/drones", input, &drone); err != nil {
			return nil, err
		}
		return &drone, nil
	}, cache.MutationOpts{
		Invalidates: droneInvalidations(""),
	})
}

// Update replaces a drone's catalog entry.
func (s *DroneService) Update(ctx context.Context, id string, input DroneInput) (*domain.Drone, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	return cache.MutateAs(ctx, s.cache, func(ctx context.Context) (*domain.Drone, error) {
		var drone domain.Drone
		if err := s.api.Put(ctx, "/drones/"+url.PathEscape(id), input, &drone); err != nil {
			return nil, err
		}
		return &drone, nil
	}, cache.MutationOpts{
		Invalidates: droneInvalidations(id),
	})
}

// Delete removes a drone from the catalog.
func (s *DroneService) Delete(ctx context.Context, id string) error {
	_, err := s.cache.Mutate(ctx, func(ctx context.Context) (any, error) {
		return nil, s.api.Delete(ctx, "/drones/"+url.PathEscape(id), nil)
	}, cache.MutationOpts{
		Invalidates: droneInvalidations(id),
	})
	return err
}
