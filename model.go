package docmodel

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gofrs/uuid"

	"github.com/docmodel/docmodel.go/pkg/adapter"
	"github.com/docmodel/docmodel.go/pkg/document"
	"github.com/docmodel/docmodel.go/pkg/schema"
)

// maxSearchPredicates caps how many token predicates one search fans out
// into, mirroring the store's compound-query limits.
const maxSearchPredicates = 10

// Create persists the document, assigning an id when it has none and
// consuming an autonumber code when its definition asks for one. The counter
// increment and the document write share one transaction, so concurrent
// creators each get a distinct code.
func (s *Session) Create(ctx context.Context, doc *document.Document, opts ...OpOption) (string, error) {
	def := doc.Definition()
	o := newOpSettings(opts)
	if err := s.ready(); err != nil {
		return "", s.fail("create", def.CollectionPath, err)
	}
	path, err := s.resolvePath(def.CollectionPath, o)
	if err != nil {
		return "", s.fail("create", def.CollectionPath, err)
	}
	if err := doc.Validate(); err != nil {
		return "", s.fail("create", def.CollectionPath, err)
	}
	if hook := def.Hooks.BeforeCreate; hook != nil {
		if err := hook(ctx); err != nil {
			return "", s.fail("create", def.CollectionPath, err)
		}
	}

	useCounter := def.Autonumber && o.autonumber
	write := func(ctx context.Context, tx adapter.Txn) error {
		if doc.ID() == "" {
			id := o.id
			if id == "" {
				generated, err := uuid.NewV4()
				if err != nil {
					return err
				}
				id = generated.String()
			}
			doc.SetID(id)
		}
		now := time.Now()
		if doc.CreatedAt() == nil {
			doc.SetCreatedAt(now)
		}
		doc.SetUpdatedAt(now)
		if identity := s.adapter.Identity(); identity != "" {
			doc.SetOwnerID(identity)
		}

		var commit adapter.CommitFunc
		if useCounter {
			code, field, c, err := s.adapter.NextNumber(ctx, tx, path)
			if err != nil {
				return err
			}
			doc.Set(field, code)
			commit = c
		}
		if err := s.adapter.Create(ctx, tx, path, doc.ID(), s.payload(doc)); err != nil {
			return err
		}
		if commit != nil {
			return commit()
		}
		return nil
	}

	switch {
	case o.tx != nil:
		err = write(ctx, o.tx)
	case useCounter:
		err = s.adapter.RunTransaction(ctx, write)
	default:
		err = write(ctx, nil)
	}
	if err != nil {
		return "", s.fail("create", def.CollectionPath, err)
	}

	if o.callback != nil {
		if err := o.callback(ctx, doc); err != nil {
			return "", s.fail("create", def.CollectionPath, err)
		}
	}
	return doc.ID(), nil
}

// Fetch populates doc in place. A miss resets doc to its defaults and
// returns false without error.
func (s *Session) Fetch(ctx context.Context, doc *document.Document, id string, opts ...OpOption) (bool, error) {
	def := doc.Definition()
	o := newOpSettings(opts)
	if err := s.ready(); err != nil {
		return false, s.fail("fetch", def.CollectionPath, err)
	}
	if id == "" {
		return false, s.fail("fetch", def.CollectionPath, ErrMissingID)
	}
	path, err := s.resolvePath(def.CollectionPath, o)
	if err != nil {
		return false, s.fail("fetch", def.CollectionPath, err)
	}

	data, err := s.adapter.Get(ctx, o.tx, path, id)
	if err != nil {
		return false, s.fail("fetch", def.CollectionPath, err)
	}
	if data == nil {
		if err := doc.Apply(nil); err != nil {
			return false, s.fail("fetch", def.CollectionPath, err)
		}
		return false, nil
	}
	if err := doc.Apply(data); err != nil {
		return false, s.fail("fetch", def.CollectionPath, err)
	}
	if doc.ID() == "" {
		doc.SetID(id)
	}
	return true, nil
}

// FetchOne returns a fresh instance, or nil when the id does not exist. The
// caller's instances are never mutated.
func (s *Session) FetchOne(ctx context.Context, def *schema.Definition, id string, opts ...OpOption) (*document.Document, error) {
	doc, err := document.New(def, nil)
	if err != nil {
		return nil, s.fail("fetchOne", def.CollectionPath, err)
	}
	found, err := s.Fetch(ctx, doc, id, opts...)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return doc, nil
}

// FetchDocs runs a structured query and materializes every match.
func (s *Session) FetchDocs(ctx context.Context, def *schema.Definition, constraints []adapter.Constraint, opts ...OpOption) ([]*document.Document, error) {
	o := newOpSettings(opts)
	if err := s.ready(); err != nil {
		return nil, s.fail("fetchDocs", def.CollectionPath, err)
	}
	path, err := s.resolvePath(def.CollectionPath, o)
	if err != nil {
		return nil, s.fail("fetchDocs", def.CollectionPath, err)
	}

	snaps, err := s.adapter.Query(ctx, o.tx, path, constraints)
	if err != nil {
		return nil, s.fail("fetchDocs", def.CollectionPath, err)
	}
	docs := make([]*document.Document, 0, len(snaps))
	for _, snap := range snaps {
		doc, err := document.New(def, snap.Data)
		if err != nil {
			return nil, s.fail("fetchDocs", def.CollectionPath, err)
		}
		if doc.ID() == "" {
			doc.SetID(snap.ID)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// SearchDocs decomposes a free-text query into the same 1- and 2-rune token
// set the token map is built from and fetches documents matching all of
// them, plus any extra constraints.
func (s *Session) SearchDocs(ctx context.Context, def *schema.Definition, text string, extra []adapter.Constraint, opts ...OpOption) ([]*document.Document, error) {
	constraints := append(searchConstraints(text), extra...)
	return s.FetchDocs(ctx, def, constraints, opts...)
}

func searchConstraints(text string) []adapter.Constraint {
	tokens := document.Tokenize(text)
	if tokens == nil {
		return nil
	}
	keys := make([]string, 0, len(tokens))
	for token := range tokens {
		keys = append(keys, token)
	}
	// longer grams are more selective, so spend the predicate budget on
	// them first
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	if len(keys) > maxSearchPredicates {
		keys = keys[:maxSearchPredicates]
	}
	constraints := make([]adapter.Constraint, 0, len(keys))
	for _, token := range keys {
		constraints = append(constraints, adapter.Where(document.KeyTokenMap+"."+token, "==", true))
	}
	return constraints
}

// Update writes the document's current state, re-validating first.
func (s *Session) Update(ctx context.Context, doc *document.Document, opts ...OpOption) error {
	def := doc.Definition()
	o := newOpSettings(opts)
	if err := s.ready(); err != nil {
		return s.fail("update", def.CollectionPath, err)
	}
	if doc.ID() == "" {
		return s.fail("update", def.CollectionPath, ErrMissingID)
	}
	path, err := s.resolvePath(def.CollectionPath, o)
	if err != nil {
		return s.fail("update", def.CollectionPath, err)
	}
	if err := doc.Validate(); err != nil {
		return s.fail("update", def.CollectionPath, err)
	}
	if hook := def.Hooks.BeforeUpdate; hook != nil {
		if err := hook(ctx); err != nil {
			return s.fail("update", def.CollectionPath, err)
		}
	}

	doc.SetUpdatedAt(time.Now())
	if identity := s.adapter.Identity(); identity != "" {
		doc.SetOwnerID(identity)
	}
	if err := s.adapter.Update(ctx, o.tx, path, doc.ID(), s.payload(doc)); err != nil {
		return s.fail("update", def.CollectionPath, err)
	}
	if o.callback != nil {
		if err := o.callback(ctx, doc); err != nil {
			return s.fail("update", def.CollectionPath, err)
		}
	}
	return nil
}

// Delete removes the document: physically, or into the archive namespace
// when the definition uses logical delete. It refuses to run while
// dependent child documents exist.
func (s *Session) Delete(ctx context.Context, doc *document.Document, opts ...OpOption) error {
	def := doc.Definition()
	o := newOpSettings(opts)
	if err := s.ready(); err != nil {
		return s.fail("delete", def.CollectionPath, err)
	}
	if doc.ID() == "" {
		return s.fail("delete", def.CollectionPath, ErrMissingID)
	}
	path, err := s.resolvePath(def.CollectionPath, o)
	if err != nil {
		return s.fail("delete", def.CollectionPath, err)
	}

	child, err := s.HasChild(ctx, doc, opts...)
	if err != nil {
		return err
	}
	if child != nil {
		return s.fail("delete", def.CollectionPath,
			fmt.Errorf("%w: %s via %s", ErrHasDependents, child.CollectionPath, child.LocalField))
	}

	if hook := def.Hooks.BeforeDelete; hook != nil {
		if err := hook(ctx); err != nil {
			return s.fail("delete", def.CollectionPath, err)
		}
	}
	if o.callback != nil {
		if err := o.callback(ctx, doc); err != nil {
			return s.fail("delete", def.CollectionPath, err)
		}
	}

	if def.LogicalDelete {
		archivePath, err := s.resolvePath(def.ArchivePath(), o)
		if err != nil {
			return s.fail("delete", def.CollectionPath, err)
		}
		if _, err := s.adapter.Move(ctx, o.tx, path, archivePath, doc.ID()); err != nil {
			return s.fail("delete", def.CollectionPath, err)
		}
		return nil
	}
	if err := s.adapter.Delete(ctx, o.tx, path, doc.ID()); err != nil {
		return s.fail("delete", def.CollectionPath, err)
	}
	return nil
}

// Restore moves an archived document back into the primary collection and
// returns it. Restoring an id that was never archived is an error, unlike a
// fetch miss.
func (s *Session) Restore(ctx context.Context, def *schema.Definition, id string, opts ...OpOption) (*document.Document, error) {
	o := newOpSettings(opts)
	if err := s.ready(); err != nil {
		return nil, s.fail("restore", def.CollectionPath, err)
	}
	if id == "" {
		return nil, s.fail("restore", def.CollectionPath, ErrMissingID)
	}
	path, err := s.resolvePath(def.CollectionPath, o)
	if err != nil {
		return nil, s.fail("restore", def.CollectionPath, err)
	}
	archivePath, err := s.resolvePath(def.ArchivePath(), o)
	if err != nil {
		return nil, s.fail("restore", def.CollectionPath, err)
	}

	data, err := s.adapter.Move(ctx, o.tx, archivePath, path, id)
	if err != nil {
		return nil, s.fail("restore", def.CollectionPath, err)
	}
	doc, err := document.New(def, data)
	if err != nil {
		return nil, s.fail("restore", def.CollectionPath, err)
	}
	if doc.ID() == "" {
		doc.SetID(id)
	}
	return doc, nil
}

// HasChild returns the first child-collection descriptor that still has
// dependent documents, or nil when the document is free to delete.
func (s *Session) HasChild(ctx context.Context, doc *document.Document, opts ...OpOption) (*schema.ChildCollection, error) {
	def := doc.Definition()
	o := newOpSettings(opts)
	if err := s.ready(); err != nil {
		return nil, s.fail("hasChild", def.CollectionPath, err)
	}

	prefix := s.prefix
	if o.prefix != nil {
		prefix = *o.prefix
	}
	for i := range def.ChildCollections {
		cc := def.ChildCollections[i]
		childPath, err := ResolvePath(cc.CollectionPath, prefix)
		if err != nil {
			return nil, s.fail("hasChild", def.CollectionPath, err)
		}
		field, _ := cc.Condition[0].(string)
		op, _ := cc.Condition[1].(string)
		value := cc.Condition[2]
		if value == schema.PlaceholderDocID {
			value = doc.ID()
		}
		snaps, err := s.adapter.Query(ctx, o.tx, childPath, []adapter.Constraint{
			adapter.Where(field, op, value),
			adapter.Limit(1),
		})
		if err != nil {
			return nil, s.fail("hasChild", def.CollectionPath, err)
		}
		if len(snaps) > 0 {
			return &cc, nil
		}
	}
	return nil, nil
}

// SetAutonumber runs phase one of the autonumber protocol for callers
// composing their own transaction: it assigns the next code to the document
// and returns the deferred counter commit, which must be invoked inside the
// same transaction.
func (s *Session) SetAutonumber(ctx context.Context, doc *document.Document, opts ...OpOption) (adapter.CommitFunc, error) {
	def := doc.Definition()
	o := newOpSettings(opts)
	if err := s.ready(); err != nil {
		return nil, s.fail("setAutonumber", def.CollectionPath, err)
	}
	path, err := s.resolvePath(def.CollectionPath, o)
	if err != nil {
		return nil, s.fail("setAutonumber", def.CollectionPath, err)
	}

	code, field, commit, err := s.adapter.NextNumber(ctx, o.tx, path)
	if err != nil {
		return nil, s.fail("setAutonumber", def.CollectionPath, err)
	}
	doc.Set(field, code)
	return commit, nil
}

// EnsureCounter provisions the autonumber counter for a definition's
// collection. Only the privileged adapter permits it.
func (s *Session) EnsureCounter(ctx context.Context, def *schema.Definition, counter adapter.Counter, opts ...OpOption) error {
	o := newOpSettings(opts)
	if err := s.ready(); err != nil {
		return s.fail("ensureCounter", def.CollectionPath, err)
	}
	path, err := s.resolvePath(def.CollectionPath, o)
	if err != nil {
		return s.fail("ensureCounter", def.CollectionPath, err)
	}
	if err := s.adapter.EnsureCounter(ctx, o.tx, path, counter); err != nil {
		return s.fail("ensureCounter", def.CollectionPath, err)
	}
	return nil
}

func (s *Session) payload(doc *document.Document) map[string]any {
	data := doc.Data()
	if tokens := doc.TokenMap(); tokens != nil {
		flat := make(map[string]any, len(tokens))
		for token := range tokens {
			flat[token] = true
		}
		data[document.KeyTokenMap] = flat
	}
	return data
}
