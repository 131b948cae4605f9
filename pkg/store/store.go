// Package store declares the document-store capability the adapters are
// built over: per-document CRUD, serializable read-modify-write
// transactions, compound-predicate queries and change notifications. The
// model core never talks to a store directly, only through an adapter.
package store

import (
	"context"
	"errors"
)

// Txn is the opaque transaction handle a Store hands to the function passed
// to RunTransaction. Callers thread it through without inspecting it.
type Txn interface{}

var (
	ErrInvalidOp = errors.New("invalid query operator")
	ErrClosed    = errors.New("store is closed")
)

// Filter is one equality/inequality predicate. Field may be a dot path into
// nested maps, e.g. "tokenMap.AB".
type Filter struct {
	Field string
	Op    string
	Value any
}

// Order sorts results by one field.
type Order struct {
	Field string
	Desc  bool
}

// Query is a compound predicate: all filters must match.
type Query struct {
	Filters []Filter
	Orders  []Order
	Limit   int
}

// Snapshot is one matched document.
type Snapshot struct {
	ID   string
	Data map[string]any
}

// ChangeType classifies a change notification.
type ChangeType int

const (
	Added ChangeType = iota
	Modified
	Removed
)

func (c ChangeType) String() string {
	switch c {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is one notification on a watched collection. Data is nil for
// Removed changes.
type Change struct {
	Type ChangeType
	ID   string
	Data map[string]any
}

// Store is the black-box document database capability.
//
// Get returns (nil, nil) for a missing document; absence is expected
// traffic, not an error. Every method accepting a Txn also accepts nil,
// meaning the operation runs standalone. RunTransaction must provide
// serializability: two transactions touching the same documents behave as if
// run one after the other.
type Store interface {
	Get(ctx context.Context, tx Txn, path, id string) (map[string]any, error)
	Set(ctx context.Context, tx Txn, path, id string, data map[string]any) error
	Delete(ctx context.Context, tx Txn, path, id string) error
	Query(ctx context.Context, tx Txn, path string, q Query) ([]Snapshot, error)
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Txn) error) error
	// Watch streams changes on a collection, filtered by q, until cancel is
	// called. The returned channel is closed on cancel.
	Watch(ctx context.Context, path string, q Query) (<-chan Change, func(), error)
}
