// Package docmodel is a schema-driven object-document mapping layer. A
// Session binds model definitions to exactly one persistence adapter, which
// is the only component that talks to the underlying document store; the
// adapter seam lets the same model code run in the interactive and the
// privileged runtime.
package docmodel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/docmodel/docmodel.go/pkg/adapter"
	"github.com/docmodel/docmodel.go/pkg/config"
	"github.com/docmodel/docmodel.go/pkg/document"
	"github.com/docmodel/docmodel.go/pkg/logger"
)

var (
	ErrNoAdapter     = errors.New("no persistence adapter configured")
	ErrInvalidPrefix = errors.New("invalid collection path prefix")
	ErrMissingID     = errors.New("document id is required")
	ErrHasDependents = errors.New("document has dependent children")
)

// Session is the composition point for model operations: one adapter, one
// default path prefix, one logger. Sessions are cheap; tests routinely run
// several against differently configured adapters in one process.
type Session struct {
	adapter adapter.Adapter
	prefix  string
	log     logger.Logger
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithDefaultPrefix overrides the DOCMODEL_PREFIX-derived default prefix.
func WithDefaultPrefix(prefix string) Option {
	return func(s *Session) { s.prefix = prefix }
}

func WithLogger(log logger.Logger) Option {
	return func(s *Session) { s.log = log }
}

// New builds a Session over the given adapter. Defaults come from the
// environment; options win over both.
func New(a adapter.Adapter, opts ...Option) *Session {
	cfg := config.Load()
	s := &Session{adapter: a, prefix: cfg.Prefix}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		if a != nil {
			s.log = a.Logger()
		} else {
			s.log = logger.New(nil, cfg.LogLevel)
		}
	}
	return s
}

// Adapter exposes the bound adapter, mainly for composing transactions.
func (s *Session) Adapter() adapter.Adapter { return s.adapter }

func (s *Session) ready() error {
	if s.adapter == nil {
		return ErrNoAdapter
	}
	return nil
}

// fail is the uniform log-then-rethrow wrapper: every delegating operation
// funnels its failures through here exactly once.
func (s *Session) fail(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	s.log.Error("persistence operation failed",
		"op", op,
		"collection", collection,
		"error", err.Error(),
	)
	return err
}

// ResolvePath applies a tenant/namespace prefix to a collection path. The
// prefix must split into an even number of non-empty segments (document
// path parity); if its first segment already equals the collection, the
// prefix is discarded so re-prefixing an already resolved path is a no-op.
func ResolvePath(collection, prefix string) (string, error) {
	if prefix == "" {
		return collection, nil
	}
	trimmed := strings.TrimSuffix(prefix, "/")
	segments := strings.Split(trimmed, "/")
	for _, segment := range segments {
		if segment == "" {
			return "", fmt.Errorf("%w: empty segment in %q", ErrInvalidPrefix, prefix)
		}
	}
	if len(segments)%2 != 0 {
		return "", fmt.Errorf("%w: %q has %d segments, want an even count", ErrInvalidPrefix, prefix, len(segments))
	}
	if segments[0] == collection {
		return collection, nil
	}
	return trimmed + "/" + collection, nil
}

func (s *Session) resolvePath(collection string, o *opSettings) (string, error) {
	prefix := s.prefix
	if o.prefix != nil {
		prefix = *o.prefix
	}
	return ResolvePath(collection, prefix)
}

// opSettings carries the optional arguments shared by the persistence
// verbs. Options irrelevant to a verb are ignored by it.
type opSettings struct {
	id         string
	autonumber bool
	tx         adapter.Txn
	prefix     *string
	callback   func(ctx context.Context, doc *document.Document) error
}

// OpOption tunes a single persistence operation.
type OpOption func(*opSettings)

func newOpSettings(opts []OpOption) *opSettings {
	o := &opSettings{autonumber: true}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithID supplies the document id Create should use instead of a random one.
func WithID(id string) OpOption {
	return func(o *opSettings) { o.id = id }
}

// SkipAutonumber creates the document without consuming a counter code even
// when its definition enables autonumbering.
func SkipAutonumber() OpOption {
	return func(o *opSettings) { o.autonumber = false }
}

// WithTxn composes the operation into a caller-controlled transaction.
func WithTxn(tx adapter.Txn) OpOption {
	return func(o *opSettings) { o.tx = tx }
}

// WithPrefix relocates the managed collection under a tenant/namespace
// segment for this operation only.
func WithPrefix(prefix string) OpOption {
	return func(o *opSettings) { p := prefix; o.prefix = &p }
}

// WithCallback runs after a create/update succeeds, or before a delete
// removes the document.
func WithCallback(fn func(ctx context.Context, doc *document.Document) error) OpOption {
	return func(o *opSettings) { o.callback = fn }
}
