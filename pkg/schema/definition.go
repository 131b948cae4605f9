package schema

import "context"

// PlaceholderDocID in a child-collection condition is replaced with the
// parent document's id when the dependency check runs.
const PlaceholderDocID = "$docId"

// ChildCollection declares a collection whose documents reference this one.
// Delete refuses to run while matching dependents exist.
type ChildCollection struct {
	CollectionPath string
	LocalField     string
	// Condition is a [field, operator, value] triple; the value may be
	// PlaceholderDocID.
	Condition    [3]any
	RelationType string
}

// Hooks are the fixed lifecycle extension points of a definition. Nil
// entries are skipped. They replace subclass override methods: a definition
// composes whichever hooks its collection needs.
type Hooks struct {
	BeforeInitialize func(raw map[string]any)
	AfterInitialize  func(raw map[string]any)
	BeforeCreate     func(ctx context.Context) error
	BeforeUpdate     func(ctx context.Context) error
	BeforeDelete     func(ctx context.Context) error
}

// Definition binds a schema to a managed collection.
type Definition struct {
	// CollectionPath is the bare collection segment, e.g. "users".
	CollectionPath string

	Schema Schema

	// Autonumber enables the per-collection counter protocol on create.
	Autonumber bool

	// LogicalDelete turns delete into relocation to the archive namespace.
	LogicalDelete bool

	ChildCollections []ChildCollection

	// TokenFields feed the search token map.
	TokenFields []string

	Hooks Hooks
}

// ArchiveSuffix names the sibling namespace logical deletes move into.
const ArchiveSuffix = "_archive"

// ArchivePath is the archive namespace for this definition's collection.
func (d *Definition) ArchivePath() string {
	return d.CollectionPath + ArchiveSuffix
}
