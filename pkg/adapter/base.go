package adapter

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/docmodel/docmodel.go/pkg/logger"
	"github.com/docmodel/docmodel.go/pkg/store"
)

// Base is the store-backed core both runtime adapters embed. It carries
// everything that does not depend on the execution context: transaction
// plumbing, the CRUD verbs, the autonumber protocol and subscriptions.
type Base struct {
	store store.Store
	log   logger.Logger
}

// NewBase wraps a store capability. A nil log gets a default zerolog logger.
func NewBase(st store.Store, log logger.Logger) *Base {
	if log == nil {
		log = logger.New(nil, zerolog.InfoLevel)
	}
	return &Base{store: st, log: log}
}

func (b *Base) Logger() logger.Logger { return b.log }

func (b *Base) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Txn) error) error {
	return b.store.RunTransaction(ctx, func(ctx context.Context, tx store.Txn) error {
		return fn(ctx, tx)
	})
}

func (b *Base) Create(ctx context.Context, tx Txn, path, id string, data map[string]any) error {
	return b.store.Set(ctx, tx, path, id, data)
}

func (b *Base) Get(ctx context.Context, tx Txn, path, id string) (map[string]any, error) {
	return b.store.Get(ctx, tx, path, id)
}

func (b *Base) Update(ctx context.Context, tx Txn, path, id string, data map[string]any) error {
	return b.store.Set(ctx, tx, path, id, data)
}

func (b *Base) Delete(ctx context.Context, tx Txn, path, id string) error {
	return b.store.Delete(ctx, tx, path, id)
}

func (b *Base) Query(ctx context.Context, tx Txn, path string, constraints []Constraint) ([]Snapshot, error) {
	q, err := toStoreQuery(constraints)
	if err != nil {
		return nil, err
	}
	snaps, err := b.store.Query(ctx, tx, path, q)
	if err != nil {
		return nil, err
	}
	out := make([]Snapshot, len(snaps))
	for i, snap := range snaps {
		out[i] = Snapshot{ID: snap.ID, Data: snap.Data}
	}
	return out, nil
}

func (b *Base) Move(ctx context.Context, tx Txn, fromPath, toPath, id string) (map[string]any, error) {
	var moved map[string]any
	op := func(ctx context.Context, tx Txn) error {
		data, err := b.store.Get(ctx, tx, fromPath, id)
		if err != nil {
			return err
		}
		if data == nil {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, fromPath, id)
		}
		if err := b.store.Set(ctx, tx, toPath, id, data); err != nil {
			return err
		}
		if err := b.store.Delete(ctx, tx, fromPath, id); err != nil {
			return err
		}
		moved = data
		return nil
	}

	var err error
	if tx != nil {
		err = op(ctx, tx)
	} else {
		err = b.RunTransaction(ctx, op)
	}
	if err != nil {
		return nil, err
	}
	return moved, nil
}

func (b *Base) NextNumber(ctx context.Context, tx Txn, path string) (string, string, CommitFunc, error) {
	if tx == nil {
		return "", "", nil, fmt.Errorf("%w: autonumber", ErrTxnRequired)
	}
	data, err := b.store.Get(ctx, tx, CounterCollection, path)
	if err != nil {
		return "", "", nil, err
	}
	if data == nil {
		return "", "", nil, fmt.Errorf("%w: collection %q", ErrCounterMissing, path)
	}
	counter := counterFromData(data)
	if !counter.Status {
		return "", "", nil, fmt.Errorf("%w: collection %q", ErrCounterDisabled, path)
	}
	if counter.Current >= counter.Max() {
		return "", "", nil, fmt.Errorf("%w: collection %q at %d", ErrCounterExhausted, path, counter.Current)
	}

	next := counter
	next.Current = counter.Current + 1
	commit := func() error {
		return b.store.Set(ctx, tx, CounterCollection, path, next.toData())
	}
	return next.Format(next.Current), counter.Field, commit, nil
}

func (b *Base) EnsureCounter(ctx context.Context, tx Txn, path string, counter Counter) error {
	return b.store.Set(ctx, tx, CounterCollection, path, counter.toData())
}

func (b *Base) Subscribe(ctx context.Context, path, id string) (*Subscription, error) {
	ch, cancel, err := b.store.Watch(ctx, path, store.Query{
		Filters: []store.Filter{{Field: "id", Op: "==", Value: id}},
	})
	if err != nil {
		return nil, err
	}
	return forward(ch, cancel), nil
}

func (b *Base) SubscribeQuery(ctx context.Context, path string, constraints []Constraint) (*Subscription, error) {
	q, err := toStoreQuery(constraints)
	if err != nil {
		return nil, err
	}
	ch, cancel, err := b.store.Watch(ctx, path, q)
	if err != nil {
		return nil, err
	}
	return forward(ch, cancel), nil
}

func forward(ch <-chan store.Change, cancel func()) *Subscription {
	sub := newSubscription(cancel)
	go func() {
		defer close(sub.notifications)
		for change := range ch {
			sub.notifications <- Notification{
				Type: notificationType(change.Type),
				ID:   change.ID,
				Data: change.Data,
			}
		}
	}()
	return sub
}

func notificationType(t store.ChangeType) NotificationType {
	switch t {
	case store.Modified:
		return NotificationModified
	case store.Removed:
		return NotificationRemoved
	default:
		return NotificationAdded
	}
}

var validOps = map[string]bool{
	"==": true, "!=": true,
	"<": true, "<=": true, ">": true, ">=": true,
	"in": true, "array-contains": true,
}

func toStoreQuery(constraints []Constraint) (store.Query, error) {
	var q store.Query
	for _, c := range constraints {
		switch c.kind {
		case kindWhere:
			if !validOps[c.Op] {
				return store.Query{}, fmt.Errorf("%w: operator %q", ErrInvalidConstraint, c.Op)
			}
			q.Filters = append(q.Filters, store.Filter{Field: c.Field, Op: c.Op, Value: c.Value})
		case kindOrderBy:
			q.Orders = append(q.Orders, store.Order{Field: c.Field, Desc: c.Desc})
		case kindLimit:
			q.Limit = c.Count
		}
	}
	return q, nil
}
