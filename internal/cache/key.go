package cache

import (
	"sort"
	"strings"
)

// Key identifies a cached response: a resource tag plus the parameters that
// discriminate one request from another. Structured keys replace prefix
// matching on strings, so invalidation cannot accidentally sweep up an
// unrelated resource whose name happens to share a prefix.
type Key struct {
	Resource string
	Params   map[string]string
}

// NewKey builds a key for resource with optional discriminating parameters,
// given as alternating name/value pairs.
func NewKey(resource string, pairs ...string) Key {
	k := Key{Resource: resource}
	if len(pairs) > 0 {
		k.Params = make(map[string]string, len(pairs)/2)
		for i := 0; i+1 < len(pairs); i += 2 {
			k.Params[pairs[i]] = pairs[i+1]
		}
	}
	return k
}

// String returns a deterministic form of the key, used for map indexing and
// request coalescing. Parameters are sorted by name.
func (k Key) String() string {
	if len(k.Params) == 0 {
		return k.Resource
	}

	names := make([]string, 0, len(k.Params))
	for name := range k.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(k.Resource)
	for i, name := range names {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(k.Params[name])
	}
	return b.String()
}

// Predicate selects keys for invalidation.
type Predicate func(Key) bool

// Exactly matches a single key.
func Exactly(key Key) Predicate {
	want := key.String()
	return func(k Key) bool { return k.String() == want }
}

// ByResource matches every key belonging to any of the given resources,
// regardless of parameters.
func ByResource(resources ...string) Predicate {
	set := make(map[string]bool, len(resources))
	for _, r := range resources {
		set[r] = true
	}
	return func(k Key) bool { return set[k.Resource] }
}

// WithParam matches keys of the given resource whose parameter name equals
// value.
func WithParam(resource, name, value string) Predicate {
	return func(k Key) bool {
		return k.Resource == resource && k.Params[name] == value
	}
}
