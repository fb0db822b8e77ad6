// Package storefront exposes the typed resource services of the Arrow3 API.
// Reads go through the request cache; writes declare the cache entries they
// make stale.
package storefront

import (
	"log/slog"
	"strconv"

	"github.com/KshitijGomber/arrow3-sub001/internal/cache"
	"github.com/KshitijGomber/arrow3-sub001/internal/transport"
	"github.com/KshitijGomber/arrow3-sub001/pkg/pagination"
)

// Cache resource names. Invalidation matches on these, so every service
// keys its entries under its own names only.
const (
	resourceDrones   = "drones"
	resourceDrone    = "drone"
	resourceOrders   = "orders"
	resourceOrder    = "order"
	resourceMedia    = "media"
	resourcePayment  = "payment"
	resourceFeatured = "drones-featured"
)

// Services bundles the resource services sharing one transport and cache.
type Services struct {
	Drones   *DroneService
	Orders   *OrderService
	Media    *MediaService
	Payments *PaymentService
}

// New wires the resource services.
func New(api *transport.Client, store *cache.Store, log *slog.Logger) *Services {
	return &Services{
		Drones:   &DroneService{api: api, cache: store, logger: log},
		Orders:   &OrderService{api: api, cache: store, logger: log},
		Media:    &MediaService{api: api, cache: store, logger: log},
		Payments: &PaymentService{api: api, cache: store, logger: log},
	}
}

// pageParams appends pagination values to a cache key parameter list so one
// page never shadows another.
func pageParams(pairs []string, p pagination.Params) []string {
	p = p.Normalize()
	return append(pairs,
		"page", strconv.Itoa(p.Page),
		"perPage", strconv.Itoa(p.PerPage),
	)
}
