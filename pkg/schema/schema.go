// Package schema holds the declarative per-field metadata and the
// per-collection definition that drive document materialization, validation
// and persistence.
package schema

import (
	"errors"
	"fmt"
)

// Kind is the closed set of field shapes a schema may declare.
type Kind int

const (
	Text Kind = iota
	Number
	Bool
	Object
	List
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Number:
		return "number"
	case Bool:
		return "bool"
	case Object:
		return "object"
	case List:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrUnknownFieldKind = errors.New("unknown schema field kind")
	ErrNoSchema         = errors.New("definition has no schema")
)

// Validator checks a field value. A nil return passes; a non-nil return
// fails, and its message is used verbatim in the emitted error.
type Validator func(value any) error

// Field describes one schema entry.
//
// Default may be a plain value or a zero-argument producer (func() any);
// producers are invoked fresh per instance so list defaults never share
// identity between documents.
type Field struct {
	Kind      Kind
	Default   any
	Required  bool
	MaxLength int

	// NestedType rehydrates Object values (and List elements) as embedded
	// documents of another definition instead of plain maps.
	NestedType *Definition

	Validator Validator

	// Label replaces the raw key name in validation error messages.
	Label string
}

// DefaultValue resolves the field default, invoking producer defaults.
func (f Field) DefaultValue() any {
	switch produce := f.Default.(type) {
	case func() any:
		return produce()
	case nil:
		return f.zero()
	default:
		return f.Default
	}
}

func (f Field) zero() any {
	switch f.Kind {
	case Text:
		return ""
	case Number:
		return float64(0)
	case Bool:
		return false
	case List:
		return []any{}
	default:
		return nil
	}
}

// Schema maps field names to their declarations.
type Schema map[string]Field

// Check verifies every declared kind is recognized. Materialization calls
// this up front so a bad declaration fails before any value is touched.
func (s Schema) Check() error {
	for name, field := range s {
		switch field.Kind {
		case Text, Number, Bool, Object, List:
		default:
			return fmt.Errorf("%w: field %q declared as %s", ErrUnknownFieldKind, name, field.Kind)
		}
	}
	return nil
}
