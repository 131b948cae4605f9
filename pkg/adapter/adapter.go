// Package adapter defines the persistence seam between the model core and
// the document store, plus the shared store-backed base both runtime
// adapters build on. Exactly one adapter is composed into a model session;
// it is the only component that touches the store.
package adapter

import (
	"context"
	"errors"
	"sync"

	"github.com/docmodel/docmodel.go/pkg/logger"
)

// Type discriminates the two execution contexts an adapter can serve.
type Type string

const (
	// TypeClient is the interactive runtime: operations run on behalf of a
	// signed-in identity and writes are stamped with it.
	TypeClient Type = "client"
	// TypeAdmin is the privileged backend runtime.
	TypeAdmin Type = "admin"
)

// Txn is the opaque transaction handle threaded through operations so a
// caller can compose several of them into one atomic unit.
type Txn interface{}

// CommitFunc is the deferred second phase of the autonumber protocol: it
// writes the incremented counter and must run inside the same transaction
// that obtained it.
type CommitFunc func() error

var (
	ErrNotFound       = errors.New("document not found")
	ErrTxnRequired    = errors.New("operation requires a transaction")
	ErrPrivilegedOnly = errors.New("operation requires the privileged adapter")

	ErrCounterMissing   = errors.New("autonumber counter document is missing")
	ErrCounterDisabled  = errors.New("autonumber counter is disabled")
	ErrCounterExhausted = errors.New("autonumber counter is exhausted")
)

// Snapshot is one fetched document.
type Snapshot struct {
	ID   string
	Data map[string]any
}

// Notification is one change event on a live subscription.
type Notification struct {
	Type NotificationType
	ID   string
	Data map[string]any
}

type NotificationType int

const (
	NotificationAdded NotificationType = iota
	NotificationModified
	NotificationRemoved
)

// Subscription is an active change listener. Unsubscribe is synchronous,
// idempotent, and closes the notification channel.
type Subscription struct {
	notifications chan Notification
	cancelOnce    sync.Once
	cancel        func()
}

func newSubscription(cancel func()) *Subscription {
	return &Subscription{
		notifications: make(chan Notification, 64),
		cancel:        cancel,
	}
}

func (s *Subscription) Notifications() <-chan Notification { return s.notifications }

func (s *Subscription) Unsubscribe() {
	s.cancelOnce.Do(s.cancel)
}

// Adapter is the operation contract the model layer delegates all I/O to.
//
// Every method takes the already-resolved collection path; prefix handling
// is the model layer's job. A nil Txn runs the operation standalone.
type Adapter interface {
	Type() Type
	Logger() logger.Logger
	// Identity is the writer identity stamped into ownerId; empty for the
	// privileged adapter unless impersonating.
	Identity() string

	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Txn) error) error

	Create(ctx context.Context, tx Txn, path, id string, data map[string]any) error
	Get(ctx context.Context, tx Txn, path, id string) (map[string]any, error)
	Query(ctx context.Context, tx Txn, path string, constraints []Constraint) ([]Snapshot, error)
	Update(ctx context.Context, tx Txn, path, id string, data map[string]any) error
	Delete(ctx context.Context, tx Txn, path, id string) error

	// Move relocates a document between sibling namespaces, preserving its
	// id; it backs both logical delete and restore. Returns the moved data
	// or ErrNotFound.
	Move(ctx context.Context, tx Txn, fromPath, toPath, id string) (map[string]any, error)

	// NextNumber runs phase one of the autonumber protocol: read the
	// counter for the collection at path, verify it, and return the
	// zero-padded code, the field it belongs in, and the deferred commit.
	// It must be called inside a transaction.
	NextNumber(ctx context.Context, tx Txn, path string) (code, field string, commit CommitFunc, err error)

	// EnsureCounter provisions the counter document for a collection.
	// Interactive adapters refuse it with ErrPrivilegedOnly.
	EnsureCounter(ctx context.Context, tx Txn, path string, counter Counter) error

	Subscribe(ctx context.Context, path, id string) (*Subscription, error)
	SubscribeQuery(ctx context.Context, path string, constraints []Constraint) (*Subscription, error)
}
