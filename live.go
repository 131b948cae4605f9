package docmodel

import (
	"context"
	"sync"

	"github.com/docmodel/docmodel.go/pkg/adapter"
	"github.com/docmodel/docmodel.go/pkg/document"
	"github.com/docmodel/docmodel.go/pkg/schema"
)

// Subscribe keeps doc current with the stored document through the store's
// change-notification channel. A listener already active on the instance is
// torn down first. Only the subscription machinery mutates the instance from
// then on; readers see its latest applied state.
func (s *Session) Subscribe(ctx context.Context, doc *document.Document, id string, opts ...OpOption) error {
	def := doc.Definition()
	o := newOpSettings(opts)
	if err := s.ready(); err != nil {
		return s.fail("subscribe", def.CollectionPath, err)
	}
	if id == "" {
		return s.fail("subscribe", def.CollectionPath, ErrMissingID)
	}
	path, err := s.resolvePath(def.CollectionPath, o)
	if err != nil {
		return s.fail("subscribe", def.CollectionPath, err)
	}

	sub, err := s.adapter.Subscribe(ctx, path, id)
	if err != nil {
		return s.fail("subscribe", def.CollectionPath, err)
	}
	doc.SetListener(sub.Unsubscribe)

	// materialize the current state before streaming changes
	data, err := s.adapter.Get(ctx, nil, path, id)
	if err != nil {
		doc.CloseListener()
		return s.fail("subscribe", def.CollectionPath, err)
	}
	if data != nil {
		if err := doc.Apply(data); err != nil {
			doc.CloseListener()
			return s.fail("subscribe", def.CollectionPath, err)
		}
		if doc.ID() == "" {
			doc.SetID(id)
		}
	}

	go func() {
		for n := range sub.Notifications() {
			var err error
			if n.Type == adapter.NotificationRemoved {
				err = doc.Apply(nil)
			} else {
				err = doc.Apply(n.Data)
				if err == nil && doc.ID() == "" {
					doc.SetID(n.ID)
				}
			}
			if err != nil {
				s.log.Error("live update failed",
					"collection", def.CollectionPath,
					"id", id,
					"error", err.Error(),
				)
			}
		}
	}()
	return nil
}

// Unsubscribe tears down the instance's active listener. Calling it with no
// listener active is a no-op.
func (s *Session) Unsubscribe(doc *document.Document) {
	doc.CloseListener()
}

// LiveResult is a query result set kept current by a change listener.
type LiveResult struct {
	mu   sync.RWMutex
	docs []*document.Document
	sub  *adapter.Subscription
}

// Docs returns the current materialized result set.
func (r *LiveResult) Docs() []*document.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*document.Document, len(r.docs))
	copy(out, r.docs)
	return out
}

// Len reports the current result count.
func (r *LiveResult) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Unsubscribe stops the listener feeding this result set. Idempotent.
func (r *LiveResult) Unsubscribe() {
	r.sub.Unsubscribe()
}

// SubscribeDocs materializes the documents matching the constraints and
// keeps the set current until Unsubscribe is called on the result.
func (s *Session) SubscribeDocs(ctx context.Context, def *schema.Definition, constraints []adapter.Constraint, opts ...OpOption) (*LiveResult, error) {
	o := newOpSettings(opts)
	if err := s.ready(); err != nil {
		return nil, s.fail("subscribeDocs", def.CollectionPath, err)
	}
	path, err := s.resolvePath(def.CollectionPath, o)
	if err != nil {
		return nil, s.fail("subscribeDocs", def.CollectionPath, err)
	}

	sub, err := s.adapter.SubscribeQuery(ctx, path, constraints)
	if err != nil {
		return nil, s.fail("subscribeDocs", def.CollectionPath, err)
	}

	initial, err := s.FetchDocs(ctx, def, constraints, opts...)
	if err != nil {
		sub.Unsubscribe()
		return nil, err
	}

	result := &LiveResult{docs: initial, sub: sub}
	go func() {
		for n := range sub.Notifications() {
			if err := result.apply(def, n); err != nil {
				s.log.Error("live result update failed",
					"collection", def.CollectionPath,
					"id", n.ID,
					"error", err.Error(),
				)
			}
		}
	}()
	return result, nil
}

func (r *LiveResult) apply(def *schema.Definition, n adapter.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := -1
	for i, doc := range r.docs {
		if doc.ID() == n.ID {
			index = i
			break
		}
	}

	switch n.Type {
	case adapter.NotificationRemoved:
		if index >= 0 {
			r.docs = append(r.docs[:index], r.docs[index+1:]...)
		}
		return nil
	default:
		if index >= 0 {
			return r.docs[index].Apply(n.Data)
		}
		doc, err := document.New(def, n.Data)
		if err != nil {
			return err
		}
		if doc.ID() == "" {
			doc.SetID(n.ID)
		}
		r.docs = append(r.docs, doc)
		return nil
	}
}
