// Package memstore is an in-process implementation of the store capability.
// Documents are kept as CBOR-encoded snapshots so readers never share
// mutable state with writers, and a single store-wide mutex gives
// transactions trivial serializability. It backs the adapter test suites and
// any embedded usage that has no external database.
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/docmodel/docmodel.go/pkg/store"
)

const watchBuffer = 256

var _ store.Store = (*Store)(nil)

// Store holds collections of CBOR document snapshots.
type Store struct {
	mu       sync.Mutex
	data     map[string]map[string][]byte
	watchers []*watcher

	enc cbor.EncMode
	dec cbor.DecMode
}

type watcher struct {
	path   string
	query  store.Query
	ch     chan store.Change
	closed bool
}

// New returns an empty in-memory store.
func New() *Store {
	enc, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano, TimeTag: cbor.EncTagRequired}.EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any{})}.DecMode()
	if err != nil {
		panic(err)
	}
	return &Store{
		data: make(map[string]map[string][]byte),
		enc:  enc,
		dec:  dec,
	}
}

type txState struct {
	owner   *Store
	pending map[string]pendingOp
}

type pendingOp struct {
	path   string
	id     string
	data   map[string]any
	delete bool
}

func pendingKey(path, id string) string { return path + "\x00" + id }

func (s *Store) txOf(tx store.Txn) (*txState, error) {
	if tx == nil {
		return nil, nil
	}
	t, ok := tx.(*txState)
	if !ok || t.owner != s {
		return nil, fmt.Errorf("transaction handle does not belong to this store")
	}
	return t, nil
}

// RunTransaction runs fn while holding the store lock, buffering writes and
// applying them only when fn succeeds. Reads inside the transaction observe
// its own pending writes.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &txState{owner: s, pending: make(map[string]pendingOp)}
	if err := fn(ctx, t); err != nil {
		return err
	}
	for _, op := range t.pending {
		if op.delete {
			s.deleteLocked(op.path, op.id)
			continue
		}
		if err := s.setLocked(op.path, op.id, op.data); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, tx store.Txn, path, id string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := s.txOf(tx)
	if err != nil {
		return nil, err
	}
	if t != nil {
		// lock already held by RunTransaction
		if op, ok := t.pending[pendingKey(path, id)]; ok {
			if op.delete {
				return nil, nil
			}
			return s.reencode(op.data)
		}
		return s.getLocked(path, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(path, id)
}

func (s *Store) Set(ctx context.Context, tx store.Txn, path, id string, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := s.txOf(tx)
	if err != nil {
		return err
	}
	if t != nil {
		t.pending[pendingKey(path, id)] = pendingOp{path: path, id: id, data: data}
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(path, id, data)
}

func (s *Store) Delete(ctx context.Context, tx store.Txn, path, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := s.txOf(tx)
	if err != nil {
		return err
	}
	if t != nil {
		t.pending[pendingKey(path, id)] = pendingOp{path: path, id: id, delete: true}
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(path, id)
	return nil
}

func (s *Store) Query(ctx context.Context, tx store.Txn, path string, q store.Query) ([]store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := s.txOf(tx)
	if err != nil {
		return nil, err
	}
	if t == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return s.queryLocked(t, path, q)
}

func (s *Store) Watch(ctx context.Context, path string, q store.Query) (<-chan store.Change, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	w := &watcher{path: path, query: q, ch: make(chan store.Change, watchBuffer)}
	s.mu.Lock()
	s.watchers = append(s.watchers, w)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if w.closed {
			return
		}
		w.closed = true
		for i, other := range s.watchers {
			if other == w {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				break
			}
		}
		close(w.ch)
	}
	return w.ch, cancel, nil
}

// ---- locked internals ----

func (s *Store) getLocked(path, id string) (map[string]any, error) {
	col := s.data[path]
	if col == nil {
		return nil, nil
	}
	buf, ok := col[id]
	if !ok {
		return nil, nil
	}
	return s.decode(buf)
}

func (s *Store) setLocked(path, id string, data map[string]any) error {
	old, err := s.getLocked(path, id)
	if err != nil {
		return err
	}
	buf, err := s.enc.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", path, id, err)
	}
	col := s.data[path]
	if col == nil {
		col = make(map[string][]byte)
		s.data[path] = col
	}
	col[id] = buf
	current, err := s.decode(buf)
	if err != nil {
		return err
	}
	s.notifyLocked(path, id, old, current)
	return nil
}

func (s *Store) deleteLocked(path, id string) {
	col := s.data[path]
	if col == nil {
		return
	}
	old, _ := s.getLocked(path, id)
	if _, ok := col[id]; !ok {
		return
	}
	delete(col, id)
	s.notifyLocked(path, id, old, nil)
}

func (s *Store) queryLocked(t *txState, path string, q store.Query) ([]store.Snapshot, error) {
	docs := make(map[string]map[string]any)
	for id, buf := range s.data[path] {
		decoded, err := s.decode(buf)
		if err != nil {
			return nil, err
		}
		docs[id] = decoded
	}
	if t != nil {
		for _, op := range t.pending {
			if op.path != path {
				continue
			}
			if op.delete {
				delete(docs, op.id)
				continue
			}
			decoded, err := s.reencode(op.data)
			if err != nil {
				return nil, err
			}
			docs[op.id] = decoded
		}
	}

	out := make([]store.Snapshot, 0, len(docs))
	for id, data := range docs {
		ok, err := matches(data, q.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, store.Snapshot{ID: id, Data: data})
		}
	}

	// stable id order first so unordered queries are deterministic
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	for i := len(q.Orders) - 1; i >= 0; i-- {
		order := q.Orders[i]
		sort.SliceStable(out, func(a, b int) bool {
			c := compareValues(lookup(out[a].Data, order.Field), lookup(out[b].Data, order.Field))
			if order.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) notifyLocked(path, id string, old, current map[string]any) {
	for _, w := range s.watchers {
		if w.path != path || w.closed {
			continue
		}
		oldMatch := false
		if old != nil {
			oldMatch, _ = matches(old, w.query.Filters)
		}
		newMatch := false
		if current != nil {
			newMatch, _ = matches(current, w.query.Filters)
		}

		var change store.Change
		switch {
		case !oldMatch && newMatch:
			change = store.Change{Type: store.Added, ID: id, Data: current}
		case oldMatch && newMatch:
			change = store.Change{Type: store.Modified, ID: id, Data: current}
		case oldMatch && !newMatch:
			change = store.Change{Type: store.Removed, ID: id}
		default:
			continue
		}
		select {
		case w.ch <- change:
		default:
			// slow consumer, drop rather than wedge the store
		}
	}
}

func (s *Store) decode(buf []byte) (map[string]any, error) {
	var out map[string]any
	if err := s.dec.Unmarshal(buf, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

// reencode normalizes caller-shaped data (e.g. *time.Time values) into the
// same form a stored document decodes to.
func (s *Store) reencode(data map[string]any) (map[string]any, error) {
	buf, err := s.enc.Marshal(data)
	if err != nil {
		return nil, err
	}
	return s.decode(buf)
}

// ---- predicate evaluation ----

func lookup(data map[string]any, field string) any {
	parts := strings.Split(field, ".")
	var current any = data
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

func matches(data map[string]any, filters []store.Filter) (bool, error) {
	for _, f := range filters {
		value := lookup(data, f.Field)
		ok, err := apply(f.Op, value, f.Value)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func apply(op string, value, want any) (bool, error) {
	switch op {
	case "==":
		return equalValues(value, want), nil
	case "!=":
		return !equalValues(value, want), nil
	case "<":
		return compareValues(value, want) < 0, nil
	case "<=":
		return compareValues(value, want) <= 0, nil
	case ">":
		return compareValues(value, want) > 0, nil
	case ">=":
		return compareValues(value, want) >= 0, nil
	case "in":
		items, ok := want.([]any)
		if !ok {
			return false, nil
		}
		for _, item := range items {
			if equalValues(value, item) {
				return true, nil
			}
		}
		return false, nil
	case "array-contains":
		items, ok := value.([]any)
		if !ok {
			return false, nil
		}
		for _, item := range items {
			if equalValues(item, want) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", store.ErrInvalidOp, op)
	}
}

func equalValues(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	if at, aok := toTime(a); aok {
		if bt, bok := toTime(b); bok {
			return at.Equal(bt)
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two values, nils first. Incomparable pairs order by
// their formatted representation so sorting stays total.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if at, aok := toTime(a); aok {
		if bt, bok := toTime(b); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return strings.Compare(as, bs)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	default:
		return time.Time{}, false
	}
}
