package document

import "time"

// Data returns the plain-object projection of the document: every schema
// field plus the identity fields. Nested documents project recursively,
// native times are cloned to break aliasing, slices are rebuilt element by
// element, and plain maps are copied one level deep. The pre-edit snapshot
// never appears in the result.
func (d *Document) Data() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dataLocked()
}

func (d *Document) dataLocked() map[string]any {
	out := make(map[string]any, len(d.fields)+4)
	for name, value := range d.fields {
		out[name] = projectValue(value)
	}
	out[KeyID] = d.id
	out[KeyOwnerID] = d.ownerID
	out[KeyCreatedAt] = cloneTime(d.createdAt)
	out[KeyUpdatedAt] = cloneTime(d.updatedAt)
	return out
}

func projectValue(value any) any {
	switch v := value.(type) {
	case *Document:
		return v.Data()
	case time.Time:
		return v
	case *time.Time:
		if v == nil {
			return nil
		}
		t := *v
		return &t
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = projectValue(item)
		}
		return items
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, item := range v {
			m[k] = item
		}
		return m
	default:
		return value
	}
}

func cloneTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
