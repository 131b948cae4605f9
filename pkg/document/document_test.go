package document_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docmodel/docmodel.go/pkg/document"
	"github.com/docmodel/docmodel.go/pkg/schema"
)

func userDefinition() *schema.Definition {
	return &schema.Definition{
		CollectionPath: "users",
		Schema: schema.Schema{
			"name":    {Kind: schema.Text, Required: true},
			"age":     {Kind: schema.Number},
			"active":  {Kind: schema.Bool, Default: true},
			"profile": {Kind: schema.Object},
			"tags":    {Kind: schema.List, Default: func() any { return []any{} }},
		},
		TokenFields: []string{"name"},
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	doc, err := document.New(userDefinition(), nil)
	require.NoError(t, err)

	assert.Equal(t, "", doc.Get("name"))
	assert.Equal(t, float64(0), doc.Get("age"))
	assert.Equal(t, true, doc.Get("active"))
	assert.Nil(t, doc.Get("profile"))
	assert.Equal(t, []any{}, doc.Get("tags"))
	assert.Equal(t, "", doc.ID())
	assert.Nil(t, doc.CreatedAt())
}

func TestProducerDefaultsDoNotShareIdentity(t *testing.T) {
	def := userDefinition()
	a, err := document.New(def, nil)
	require.NoError(t, err)
	b, err := document.New(def, nil)
	require.NoError(t, err)

	tags := append(a.Get("tags").([]any), "x")
	a.Set("tags", tags)

	assert.Len(t, a.Get("tags"), 1)
	assert.Len(t, b.Get("tags"), 0)
}

func TestRoundTrip(t *testing.T) {
	raw := map[string]any{
		"name":    "Ada",
		"age":     float64(36),
		"active":  false,
		"profile": map[string]any{"city": "London"},
		"tags":    []any{"math", "engines"},
		"id":      "user-1",
		"ownerId": "owner-1",
	}
	doc, err := document.New(userDefinition(), raw)
	require.NoError(t, err)

	got := doc.Data()
	assert.Equal(t, "user-1", got["id"])
	assert.Equal(t, "owner-1", got["ownerId"])
	for key, want := range raw {
		if diff := cmp.Diff(want, got[key]); diff != "" {
			t.Errorf("field %s mismatch (-want +got):\n%s", key, diff)
		}
	}

	again, err := document.New(userDefinition(), got)
	require.NoError(t, err)
	if diff := cmp.Diff(got, again.Data()); diff != "" {
		t.Errorf("re-materialization drifted (-want +got):\n%s", diff)
	}
}

func TestProjectionBreaksAliasing(t *testing.T) {
	doc, err := document.New(userDefinition(), map[string]any{
		"tags": []any{"a"},
	})
	require.NoError(t, err)

	data := doc.Data()
	data["tags"].([]any)[0] = "mutated"
	assert.Equal(t, "a", doc.Get("tags").([]any)[0])

	profileDoc, err := document.New(userDefinition(), map[string]any{
		"profile": map[string]any{"city": "Kyoto"},
	})
	require.NoError(t, err)
	out := profileDoc.Data()
	out["profile"].(map[string]any)["city"] = "elsewhere"
	assert.Equal(t, "Kyoto", profileDoc.Get("profile").(map[string]any)["city"])
}

func TestListCoercionNormalizesNonArray(t *testing.T) {
	doc, err := document.New(userDefinition(), map[string]any{"tags": "not-a-list"})
	require.NoError(t, err)
	assert.Equal(t, []any{}, doc.Get("tags"))
}

type fakeTimestamp struct{ t time.Time }

func (f fakeTimestamp) AsTime() time.Time { return f.t }

func TestObjectCoercionNormalizesTimestamps(t *testing.T) {
	instant := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	doc, err := document.New(userDefinition(), map[string]any{
		"profile":   fakeTimestamp{t: instant},
		"createdAt": fakeTimestamp{t: instant},
	})
	require.NoError(t, err)

	assert.Equal(t, instant, doc.Get("profile"))
	require.NotNil(t, doc.CreatedAt())
	assert.True(t, doc.CreatedAt().Equal(instant))
}

func TestNestedTypeRehydration(t *testing.T) {
	addressDef := &schema.Definition{
		CollectionPath: "addresses",
		Schema: schema.Schema{
			"city": {Kind: schema.Text},
		},
	}
	def := &schema.Definition{
		CollectionPath: "companies",
		Schema: schema.Schema{
			"name":    {Kind: schema.Text},
			"address": {Kind: schema.Object, NestedType: addressDef},
			"offices": {Kind: schema.List, NestedType: addressDef},
		},
	}

	doc, err := document.New(def, map[string]any{
		"name":    "ACME",
		"address": map[string]any{"city": "Osaka"},
		"offices": []any{map[string]any{"city": "Nagoya"}},
	})
	require.NoError(t, err)

	address, ok := doc.Get("address").(*document.Document)
	require.True(t, ok)
	assert.Equal(t, "Osaka", address.Get("city"))

	offices := doc.Get("offices").([]any)
	require.Len(t, offices, 1)
	office, ok := offices[0].(*document.Document)
	require.True(t, ok)
	assert.Equal(t, "Nagoya", office.Get("city"))

	// nested documents project recursively
	data := doc.Data()
	nested, ok := data["address"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Osaka", nested["city"])
}

func TestUnknownKindIsFatal(t *testing.T) {
	def := &schema.Definition{
		CollectionPath: "broken",
		Schema: schema.Schema{
			"weird": {Kind: schema.Kind(42)},
		},
	}
	_, err := document.New(def, nil)
	require.ErrorIs(t, err, schema.ErrUnknownFieldKind)
	assert.Contains(t, err.Error(), "weird")
}

func TestRevertRestoresSnapshot(t *testing.T) {
	doc, err := document.New(userDefinition(), map[string]any{"name": "before"})
	require.NoError(t, err)

	doc.Set("name", "after")
	require.NoError(t, doc.Revert())
	assert.Equal(t, "before", doc.Get("name"))
}

func TestHooksRunAroundOverlay(t *testing.T) {
	var order []string
	def := userDefinition()
	def.Hooks.BeforeInitialize = func(raw map[string]any) { order = append(order, "before") }
	def.Hooks.AfterInitialize = func(raw map[string]any) { order = append(order, "after") }

	_, err := document.New(def, map[string]any{"name": "X"})
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "after"}, order)
}
