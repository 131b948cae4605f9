// Package document implements the schema-driven entity base: materialization
// from raw input, plain-object projection, validation, pre-edit snapshots and
// search token derivation.
package document

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/docmodel/docmodel.go/pkg/schema"
)

// Reserved keys carried alongside schema fields in every projection.
const (
	KeyID        = "id"
	KeyOwnerID   = "ownerId"
	KeyCreatedAt = "createdAt"
	KeyUpdatedAt = "updatedAt"

	// KeyTokenMap is where the derived search tokens are persisted. The key
	// is excluded from Data so the map is never treated as ordinary data.
	KeyTokenMap = "tokenMap"
)

var ErrNilDefinition = errors.New("nil collection definition")

// Timestamped is any store value that can convert itself to a native time,
// e.g. a vendor timestamp type.
type Timestamped interface {
	AsTime() time.Time
}

// Document is a schema-shaped property bag with persistence identity.
//
// Its mutable state is the field map plus the identity fields; the pre-edit
// snapshot and the live-subscription teardown hook ride along without ever
// appearing in the projection. A live subscription writes the instance from
// its own goroutine, so all field access goes through one RWMutex.
type Document struct {
	def *schema.Definition

	mu     sync.RWMutex
	fields map[string]any

	id        string
	ownerID   string
	createdAt *time.Time
	updatedAt *time.Time

	snapshot map[string]any

	listenerMu sync.Mutex
	listener   func()
}

// New materializes a document of the given definition from raw input. A nil
// raw input yields pure defaults. Unknown schema kinds and nested
// materialization failures are returned, never ignored.
func New(def *schema.Definition, raw map[string]any) (*Document, error) {
	if def == nil {
		return nil, ErrNilDefinition
	}
	if def.Schema == nil {
		return nil, fmt.Errorf("%w: collection %q", schema.ErrNoSchema, def.CollectionPath)
	}
	if err := def.Schema.Check(); err != nil {
		return nil, err
	}
	d := &Document{def: def}
	if err := d.Apply(raw); err != nil {
		return nil, err
	}
	return d, nil
}

// Definition returns the collection definition this document was built from.
func (d *Document) Definition() *schema.Definition { return d.def }

// Apply resets every schema field to its default, then overlays raw input
// field-by-field with kind-specific coercion, and finally captures the
// pre-edit snapshot. Keys absent from the schema are ignored.
func (d *Document) Apply(raw map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.fields = make(map[string]any, len(d.def.Schema))
	for name, field := range d.def.Schema {
		d.fields[name] = field.DefaultValue()
	}
	d.id = ""
	d.ownerID = ""
	d.createdAt = nil
	d.updatedAt = nil

	if hook := d.def.Hooks.BeforeInitialize; hook != nil {
		hook(raw)
	}

	if raw != nil {
		d.overlayIdentity(raw)
		for name, field := range d.def.Schema {
			value, ok := raw[name]
			if !ok {
				continue
			}
			coerced, err := d.coerce(name, field, value)
			if err != nil {
				return err
			}
			d.fields[name] = coerced
		}
	}

	if hook := d.def.Hooks.AfterInitialize; hook != nil {
		hook(raw)
	}

	d.snapshot = d.dataLocked()
	return nil
}

func (d *Document) overlayIdentity(raw map[string]any) {
	if v, ok := raw[KeyID].(string); ok {
		d.id = v
	}
	if v, ok := raw[KeyOwnerID].(string); ok {
		d.ownerID = v
	}
	if v, ok := raw[KeyCreatedAt]; ok {
		d.createdAt = normalizeTime(v)
	}
	if v, ok := raw[KeyUpdatedAt]; ok {
		d.updatedAt = normalizeTime(v)
	}
}

func (d *Document) coerce(name string, field schema.Field, value any) (any, error) {
	switch field.Kind {
	case schema.Text, schema.Number, schema.Bool:
		return value, nil
	case schema.Object:
		return d.coerceObject(field, value)
	case schema.List:
		items, ok := value.([]any)
		if !ok {
			return []any{}, nil
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			coerced, err := d.coerceObject(field, item)
			if err != nil {
				return nil, err
			}
			out = append(out, coerced)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: field %q declared as %s", schema.ErrUnknownFieldKind, name, field.Kind)
	}
}

func (d *Document) coerceObject(field schema.Field, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if field.NestedType != nil {
		switch v := value.(type) {
		case *Document:
			return New(field.NestedType, v.Data())
		case map[string]any:
			return New(field.NestedType, v)
		default:
			return nil, fmt.Errorf("cannot rehydrate %T as nested %q", value, field.NestedType.CollectionPath)
		}
	}
	if ts := normalizeTime(value); ts != nil {
		return *ts, nil
	}
	return deepCopy(value)
}

// normalizeTime accepts a native time, a pointer to one, or any Timestamped
// value, and returns a fresh *time.Time, or nil for anything else.
func normalizeTime(value any) *time.Time {
	switch v := value.(type) {
	case time.Time:
		t := v
		return &t
	case *time.Time:
		if v == nil {
			return nil
		}
		t := *v
		return &t
	case Timestamped:
		t := v.AsTime()
		return &t
	default:
		return nil
	}
}

// deepCopy isolates plain nested values through a serialize/deserialize
// round trip.
func deepCopy(value any) (any, error) {
	buf, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("deep copy: %w", err)
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return nil, fmt.Errorf("deep copy: %w", err)
	}
	return out, nil
}

// Revert discards uncommitted edits by re-applying the pre-edit snapshot.
func (d *Document) Revert() error {
	return d.Apply(d.Snapshot())
}

// Snapshot returns the projection captured at the last successful Apply.
func (d *Document) Snapshot() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshot
}

// Get returns the current value of a schema field.
func (d *Document) Get(name string) any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.fields[name]
}

// Set assigns a schema field verbatim. Unknown names are ignored, matching
// the overlay rule.
func (d *Document) Set(name string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.def.Schema[name]; ok {
		d.fields[name] = value
	}
}

func (d *Document) ID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.id
}

func (d *Document) SetID(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.id = id
}

func (d *Document) OwnerID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ownerID
}

func (d *Document) SetOwnerID(owner string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ownerID = owner
}

func (d *Document) CreatedAt() *time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.createdAt
}

func (d *Document) UpdatedAt() *time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.updatedAt
}

func (d *Document) SetCreatedAt(t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.createdAt = &t
}

func (d *Document) SetUpdatedAt(t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updatedAt = &t
}

// SetListener installs the teardown hook of an active live subscription,
// closing any prior one first. Only the subscription machinery writes this.
func (d *Document) SetListener(cancel func()) {
	d.listenerMu.Lock()
	prior := d.listener
	d.listener = cancel
	d.listenerMu.Unlock()
	if prior != nil {
		prior()
	}
}

// CloseListener tears down the active listener, if any. Safe to call when
// none is active.
func (d *Document) CloseListener() {
	d.listenerMu.Lock()
	prior := d.listener
	d.listener = nil
	d.listenerMu.Unlock()
	if prior != nil {
		prior()
	}
}
