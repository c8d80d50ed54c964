package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("docstore: document not found")

	// ErrExists is returned when creating a document whose ID is taken.
	ErrExists = errors.New("docstore: document already exists")

	// ErrConflict is returned when a transaction loses a concurrent write
	// race. The caller must re-run the whole transaction body.
	ErrConflict = errors.New("docstore: transaction conflict")

	// ErrMalformedRecord is returned when a stored document cannot be
	// decoded into the requested type.
	ErrMalformedRecord = errors.New("docstore: malformed record")
)

// Filter is an equality predicate on a top-level document field.
type Filter struct {
	Field string
	Value interface{}
}

// Query selects documents in a collection. Only equality filters are
// supported; OrderBy names a top-level field.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Event describes a committed change to a document.
type Event struct {
	Type       EventType
	Collection string
	ID         string
	Doc        []byte
}

type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Subscription is a handle to an active Watch. Cancel stops delivery and
// is safe to call more than once.
type Subscription interface {
	Cancel()
}

// Tx is the scoped handle passed to a transaction body. Reads and writes
// are committed atomically when the body returns nil; any error aborts
// with no effect.
type Tx interface {
	Get(collection, id string, dest interface{}) error
	Create(collection, id string, doc interface{}) error
	Update(collection, id string, doc interface{}) error
	Delete(collection, id string) error

	// ServerTime is the store-assigned timestamp for this transaction.
	ServerTime() time.Time
}

// Store is a document database offering per-document reads, filtered
// queries, atomic multi-document transactions and change subscriptions.
type Store interface {
	Get(ctx context.Context, collection, id string, dest interface{}) error
	Query(ctx context.Context, collection string, q Query, dest interface{}) error
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
	Watch(ctx context.Context, collection string, fn func(Event)) (Subscription, error)
	Close() error
}
