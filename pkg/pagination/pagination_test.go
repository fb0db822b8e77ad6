package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PerPage)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Params
		want Params
	}{
		{"valid values kept", Params{Page: 3, PerPage: 50}, Params{Page: 3, PerPage: 50}},
		{"zero page", Params{Page: 0, PerPage: 20}, Params{Page: 1, PerPage: 20}},
		{"negative page", Params{Page: -1, PerPage: 20}, Params{Page: 1, PerPage: 20}},
		{"zero per page", Params{Page: 1, PerPage: 0}, Params{Page: 1, PerPage: 20}},
		{"per page over limit", Params{Page: 1, PerPage: 500}, Params{Page: 1, PerPage: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestQuery(t *testing.T) {
	q := Params{Page: 3, PerPage: 50}.Query()
	assert.Equal(t, "3", q.Get("page"))
	assert.Equal(t, "50", q.Get("perPage"))
}

func TestNewResult(t *testing.T) {
	items := []string{"a", "b", "c"}
	r := NewResult(items, 45, Params{Page: 2, PerPage: 20})

	assert.Equal(t, items, r.Items)
	assert.Equal(t, 45, r.TotalCount)
	assert.Equal(t, 3, r.TotalPages)
	assert.True(t, r.HasNext)
	assert.True(t, r.HasPrev)
}

func TestNewResult_LastPage(t *testing.T) {
	r := NewResult([]string{"a"}, 41, Params{Page: 3, PerPage: 20})
	assert.Equal(t, 3, r.TotalPages)
	assert.False(t, r.HasNext)
	assert.True(t, r.HasPrev)
}

func TestNewResult_Empty(t *testing.T) {
	r := NewResult([]string{}, 0, DefaultParams())
	assert.Equal(t, 0, r.TotalPages)
	assert.False(t, r.HasNext)
	assert.False(t, r.HasPrev)
}
