package docmodel_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docmodel/docmodel.go"
	"github.com/docmodel/docmodel.go/pkg/adapter/admin"
	"github.com/docmodel/docmodel.go/pkg/document"
	"github.com/docmodel/docmodel.go/pkg/logger"
	"github.com/docmodel/docmodel.go/pkg/schema"
	"github.com/docmodel/docmodel.go/pkg/store/memstore"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		prefix     string
		want       string
		wantErr    bool
	}{
		{name: "no prefix", collection: "users", prefix: "", want: "users"},
		{name: "two segments", collection: "users", prefix: "a/b", want: "a/b/users"},
		{name: "trailing slash", collection: "users", prefix: "a/b/", want: "a/b/users"},
		{name: "odd segments", collection: "users", prefix: "a/b/c", wantErr: true},
		{name: "empty segment", collection: "users", prefix: "a//b", wantErr: true},
		{name: "already prefixed", collection: "users", prefix: "users/x", want: "users"},
		{name: "four segments", collection: "users", prefix: "t/acme/env/prod", want: "t/acme/env/prod/users"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := docmodel.ResolvePath(tt.collection, tt.prefix)
			if tt.wantErr {
				require.ErrorIs(t, err, docmodel.ErrInvalidPrefix)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOperationsFailWithoutAdapter(t *testing.T) {
	session := docmodel.New(nil)
	def := &schema.Definition{
		CollectionPath: "users",
		Schema:         schema.Schema{"name": {Kind: schema.Text}},
	}
	doc, err := document.New(def, nil)
	require.NoError(t, err)

	_, err = session.Create(context.Background(), doc)
	require.ErrorIs(t, err, docmodel.ErrNoAdapter)

	_, err = session.Fetch(context.Background(), doc, "some-id")
	require.ErrorIs(t, err, docmodel.ErrNoAdapter)
}

func TestFailuresAreLoggedOnceAndRethrown(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	session := docmodel.New(
		admin.New(memstore.New(), nil),
		docmodel.WithLogger(logger.New(buf, zerolog.ErrorLevel)),
	)
	def := &schema.Definition{
		CollectionPath: "users",
		Schema:         schema.Schema{"name": {Kind: schema.Text, Required: true}},
	}
	doc, err := document.New(def, nil)
	require.NoError(t, err)

	_, err = session.Create(context.Background(), doc)
	require.Error(t, err)

	var verr *document.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, buf.String(), "create")
	assert.Contains(t, buf.String(), "users")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestPrefixRelocatesCollection(t *testing.T) {
	st := memstore.New()
	session := docmodel.New(admin.New(st, nil), docmodel.WithDefaultPrefix("tenants/acme"))
	def := &schema.Definition{
		CollectionPath: "users",
		Schema:         schema.Schema{"name": {Kind: schema.Text}},
	}
	doc, err := document.New(def, map[string]any{"name": "Ada"})
	require.NoError(t, err)

	id, err := session.Create(context.Background(), doc)
	require.NoError(t, err)

	raw, err := st.Get(context.Background(), nil, "tenants/acme/users", id)
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.Equal(t, "Ada", raw["name"])

	// a per-operation prefix overrides the session default
	other, err := document.New(def, map[string]any{"name": "Bob"})
	require.NoError(t, err)
	otherID, err := session.Create(context.Background(), other, docmodel.WithPrefix("tenants/globex"))
	require.NoError(t, err)

	raw, err = st.Get(context.Background(), nil, "tenants/globex/users", otherID)
	require.NoError(t, err)
	require.NotNil(t, raw)
}

func TestOddPrefixFailsBeforeAnyWrite(t *testing.T) {
	st := memstore.New()
	session := docmodel.New(admin.New(st, nil))
	def := &schema.Definition{
		CollectionPath: "users",
		Schema:         schema.Schema{"name": {Kind: schema.Text}},
	}
	doc, err := document.New(def, map[string]any{"name": "Ada"})
	require.NoError(t, err)

	_, err = session.Create(context.Background(), doc, docmodel.WithPrefix("a/b/c"))
	require.ErrorIs(t, err, docmodel.ErrInvalidPrefix)
	assert.Equal(t, "", doc.ID(), "no id is assigned when the prefix is rejected")
}
