package document

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/docmodel/docmodel.go/pkg/schema"
)

// ValidationError reports the first schema violation found.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validate walks the schema in field-name order and fails on the first
// violation: required presence, then maximum length, then the custom
// validator. The declared label, when present, replaces the raw key name in
// messages.
func (d *Document) Validate() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.def.Schema))
	for name := range d.def.Schema {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := d.def.Schema[name]
		if err := validateField(name, field, d.fields[name]); err != nil {
			return err
		}
	}
	return nil
}

func validateField(name string, field schema.Field, value any) error {
	label := name
	if field.Label != "" {
		label = field.Label
	}

	if field.Required {
		if err := requirePresent(name, label, field.Kind, value); err != nil {
			return err
		}
	}

	if field.MaxLength > 0 {
		switch v := value.(type) {
		case string:
			if utf8.RuneCountInString(v) > field.MaxLength {
				return &ValidationError{
					Field:   name,
					Message: fmt.Sprintf("%s exceeds maximum length %d", label, field.MaxLength),
				}
			}
		case []any:
			if len(v) > field.MaxLength {
				return &ValidationError{
					Field:   name,
					Message: fmt.Sprintf("%s exceeds maximum length %d", label, field.MaxLength),
				}
			}
		}
	}

	if field.Validator != nil {
		if err := field.Validator(value); err != nil {
			msg := err.Error()
			if msg == "" {
				msg = fmt.Sprintf("invalid value for %s", label)
			}
			return &ValidationError{Field: name, Message: msg}
		}
	}
	return nil
}

func requirePresent(name, label string, kind schema.Kind, value any) error {
	missing := false
	switch kind {
	case schema.List:
		items, ok := value.([]any)
		missing = !ok || len(items) == 0
	default:
		switch v := value.(type) {
		case nil:
			missing = true
		case string:
			missing = v == ""
		}
	}
	if missing {
		return &ValidationError{Field: name, Message: fmt.Sprintf("%s is required", label)}
	}
	return nil
}
