package adapter

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConstraint = errors.New("invalid query constraint")
)

type constraintKind int

const (
	kindWhere constraintKind = iota
	kindOrderBy
	kindLimit
)

// Constraint is one element of the query language consumed by the fetch and
// subscribe operations: a where predicate, an ordering, or a limit.
type Constraint struct {
	kind  constraintKind
	Field string
	Op    string
	Value any
	Desc  bool
	Count int
}

func Where(field, op string, value any) Constraint {
	return Constraint{kind: kindWhere, Field: field, Op: op, Value: value}
}

func OrderBy(field string, desc bool) Constraint {
	return Constraint{kind: kindOrderBy, Field: field, Desc: desc}
}

func Limit(count int) Constraint {
	return Constraint{kind: kindLimit, Count: count}
}

// FromTuples converts the wire shape of the constraint language, an array of
// ["where", field, op, value] / ["orderBy", field, direction] /
// ["limit", count] tuples. An unrecognized first element is fatal.
func FromTuples(tuples [][]any) ([]Constraint, error) {
	out := make([]Constraint, 0, len(tuples))
	for _, tuple := range tuples {
		if len(tuple) == 0 {
			return nil, fmt.Errorf("%w: empty tuple", ErrInvalidConstraint)
		}
		head, ok := tuple[0].(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string tuple head %v", ErrInvalidConstraint, tuple[0])
		}
		switch head {
		case "where":
			if len(tuple) != 4 {
				return nil, fmt.Errorf("%w: where expects [where, field, op, value]", ErrInvalidConstraint)
			}
			field, fok := tuple[1].(string)
			op, ook := tuple[2].(string)
			if !fok || !ook {
				return nil, fmt.Errorf("%w: where field and op must be strings", ErrInvalidConstraint)
			}
			out = append(out, Where(field, op, tuple[3]))
		case "orderBy":
			if len(tuple) != 3 {
				return nil, fmt.Errorf("%w: orderBy expects [orderBy, field, direction]", ErrInvalidConstraint)
			}
			field, fok := tuple[1].(string)
			dir, dok := tuple[2].(string)
			if !fok || !dok {
				return nil, fmt.Errorf("%w: orderBy field and direction must be strings", ErrInvalidConstraint)
			}
			if dir != "asc" && dir != "desc" {
				return nil, fmt.Errorf("%w: orderBy direction %q", ErrInvalidConstraint, dir)
			}
			out = append(out, OrderBy(field, dir == "desc"))
		case "limit":
			if len(tuple) != 2 {
				return nil, fmt.Errorf("%w: limit expects [limit, count]", ErrInvalidConstraint)
			}
			count, err := asInt(tuple[1])
			if err != nil {
				return nil, fmt.Errorf("%w: limit count: %v", ErrInvalidConstraint, err)
			}
			out = append(out, Limit(count))
		default:
			return nil, fmt.Errorf("%w: unrecognized constraint %q", ErrInvalidConstraint, head)
		}
	}
	return out, nil
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
