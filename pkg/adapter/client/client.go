// Package client is the interactive-runtime adapter: every operation runs
// on behalf of one signed-in identity, writes are stamped with it, and
// privileged maintenance operations are refused.
package client

import (
	"context"
	"strings"

	"github.com/docmodel/docmodel.go/pkg/adapter"
	"github.com/docmodel/docmodel.go/pkg/document"
	"github.com/docmodel/docmodel.go/pkg/logger"
	"github.com/docmodel/docmodel.go/pkg/schema"
	"github.com/docmodel/docmodel.go/pkg/store"
)

type Adapter struct {
	*adapter.Base
	identity string
}

var _ adapter.Adapter = (*Adapter)(nil)

// New builds an interactive adapter over a store. identity is the signed-in
// user stamped into ownerId on every write.
func New(st store.Store, identity string, log logger.Logger) *Adapter {
	return &Adapter{Base: adapter.NewBase(st, log), identity: identity}
}

func (a *Adapter) Type() adapter.Type { return adapter.TypeClient }

func (a *Adapter) Identity() string { return a.identity }

func (a *Adapter) Create(ctx context.Context, tx adapter.Txn, path, id string, data map[string]any) error {
	a.stamp(data)
	return a.Base.Create(ctx, tx, path, id, data)
}

func (a *Adapter) Update(ctx context.Context, tx adapter.Txn, path, id string, data map[string]any) error {
	a.stamp(data)
	return a.Base.Update(ctx, tx, path, id, data)
}

// Get refuses to expose other owners' archived documents; the interactive
// runtime only sees its own archive.
func (a *Adapter) Get(ctx context.Context, tx adapter.Txn, path, id string) (map[string]any, error) {
	data, err := a.Base.Get(ctx, tx, path, id)
	if err != nil {
		return nil, err
	}
	if data != nil && isArchive(path) && !a.owns(data) {
		return nil, adapter.ErrPrivilegedOnly
	}
	return data, nil
}

// Query filters other owners' documents out of archive results.
func (a *Adapter) Query(ctx context.Context, tx adapter.Txn, path string, constraints []adapter.Constraint) ([]adapter.Snapshot, error) {
	snaps, err := a.Base.Query(ctx, tx, path, constraints)
	if err != nil {
		return nil, err
	}
	if !isArchive(path) {
		return snaps, nil
	}
	owned := snaps[:0]
	for _, snap := range snaps {
		if a.owns(snap.Data) {
			owned = append(owned, snap)
		}
	}
	return owned, nil
}

// Move guards the archive boundary in both directions: archiving and
// restoring are allowed only for the caller's own documents.
func (a *Adapter) Move(ctx context.Context, tx adapter.Txn, fromPath, toPath, id string) (map[string]any, error) {
	if !isArchive(fromPath) && !isArchive(toPath) {
		return a.Base.Move(ctx, tx, fromPath, toPath, id)
	}

	var moved map[string]any
	op := func(ctx context.Context, tx adapter.Txn) error {
		data, err := a.Base.Get(ctx, tx, fromPath, id)
		if err != nil {
			return err
		}
		if data != nil && !a.owns(data) {
			return adapter.ErrPrivilegedOnly
		}
		moved, err = a.Base.Move(ctx, tx, fromPath, toPath, id)
		return err
	}

	var err error
	if tx != nil {
		err = op(ctx, tx)
	} else {
		err = a.RunTransaction(ctx, op)
	}
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// EnsureCounter is a provisioning operation; the interactive runtime never
// gets to mint counters.
func (a *Adapter) EnsureCounter(ctx context.Context, tx adapter.Txn, path string, counter adapter.Counter) error {
	return adapter.ErrPrivilegedOnly
}

func (a *Adapter) owns(data map[string]any) bool {
	owner, _ := data[document.KeyOwnerID].(string)
	return owner == "" || owner == a.identity
}

func isArchive(path string) bool {
	return strings.HasSuffix(path, schema.ArchiveSuffix)
}

// stamp overrides whatever owner the caller supplied; the interactive
// runtime cannot write as anyone else.
func (a *Adapter) stamp(data map[string]any) {
	if data != nil {
		data[document.KeyOwnerID] = a.identity
	}
}
