// Package pagination holds the page/perPage request parameters and the
// paginated list envelope the Arrow3 API uses for catalog and order lists.
package pagination

import (
	"net/url"
	"strconv"
)

// Params holds pagination parameters for a list request.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"perPage"`
}

// DefaultParams returns sensible pagination defaults.
func DefaultParams() Params {
	return Params{
		Page:    1,
		PerPage: 20,
	}
}

// Normalize clamps out-of-range values back to the defaults. The server
// enforces the same bounds; normalizing here keeps cache keys canonical.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 || p.PerPage > 100 {
		p.PerPage = DefaultParams().PerPage
	}
	return p
}

// Query encodes the parameters into URL query values.
func (p Params) Query() url.Values {
	p = p.Normalize()
	q := url.Values{}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("perPage", strconv.Itoa(p.PerPage))
	return q
}

// Result is a single page of a listed resource, as the API returns it.
type Result[T any] struct {
	Items      []T  `json:"items"`
	TotalCount int  `json:"totalCount"`
	Page       int  `json:"page"`
	PerPage    int  `json:"perPage"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// NewResult builds a page from items and a total count. Used by tests and
// fake servers; real pages come off the wire.
func NewResult[T any](items []T, totalCount int, params Params) Result[T] {
	params = params.Normalize()

	totalPages := totalCount / params.PerPage
	if totalCount%params.PerPage > 0 {
		totalPages++
	}

	return Result[T]{
		Items:      items,
		TotalCount: totalCount,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: totalPages,
		HasNext:    params.Page < totalPages,
		HasPrev:    params.Page > 1,
	}
}
