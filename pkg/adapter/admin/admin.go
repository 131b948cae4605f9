// Package admin is the privileged-runtime adapter used by backend code. It
// trusts the caller: owner identity is whatever the document carries, and
// provisioning operations are allowed.
package admin

import (
	"github.com/docmodel/docmodel.go/pkg/adapter"
	"github.com/docmodel/docmodel.go/pkg/logger"
	"github.com/docmodel/docmodel.go/pkg/store"
)

type Adapter struct {
	*adapter.Base
	identity string
}

var _ adapter.Adapter = (*Adapter)(nil)

// New builds a privileged adapter over a store.
func New(st store.Store, log logger.Logger) *Adapter {
	return &Adapter{Base: adapter.NewBase(st, log)}
}

// NewAs builds a privileged adapter that stamps writes with the given
// identity, for backend jobs acting on behalf of a user.
func NewAs(st store.Store, identity string, log logger.Logger) *Adapter {
	return &Adapter{Base: adapter.NewBase(st, log), identity: identity}
}

func (a *Adapter) Type() adapter.Type { return adapter.TypeAdmin }

func (a *Adapter) Identity() string { return a.identity }
