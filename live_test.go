package docmodel_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docmodel/docmodel.go"
	"github.com/docmodel/docmodel.go/pkg/adapter"
	"github.com/docmodel/docmodel.go/pkg/document"
)

const liveWait = 2 * time.Second

func TestSubscribeKeepsDocumentCurrent(t *testing.T) {
	session, _ := newSession(t)
	ctx := context.Background()

	doc, err := document.New(customerDefinition(), map[string]any{"name": "Ada"})
	require.NoError(t, err)
	id, err := session.Create(ctx, doc)
	require.NoError(t, err)

	live, err := document.New(customerDefinition(), nil)
	require.NoError(t, err)
	require.NoError(t, session.Subscribe(ctx, live, id))
	defer session.Unsubscribe(live)

	// initial state materialized synchronously
	assert.Equal(t, "Ada", live.Get("name"))

	doc.Set("name", "Lovelace")
	require.NoError(t, session.Update(ctx, doc))

	require.Eventually(t, func() bool {
		return live.Get("name") == "Lovelace"
	}, liveWait, 10*time.Millisecond)
}

func TestSubscribeResetsOnRemoval(t *testing.T) {
	session, _ := newSession(t)
	ctx := context.Background()

	def := customerDefinition()
	def.LogicalDelete = false
	doc, err := document.New(def, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	id, err := session.Create(ctx, doc)
	require.NoError(t, err)

	live, err := document.New(def, nil)
	require.NoError(t, err)
	require.NoError(t, session.Subscribe(ctx, live, id))
	defer session.Unsubscribe(live)

	require.NoError(t, session.Delete(ctx, doc))

	require.Eventually(t, func() bool {
		return live.Get("name") == "" && live.ID() == ""
	}, liveWait, 10*time.Millisecond)
}

func TestSubscribeRequiresID(t *testing.T) {
	session, _ := newSession(t)
	doc, err := document.New(customerDefinition(), nil)
	require.NoError(t, err)

	err = session.Subscribe(context.Background(), doc, "")
	require.ErrorIs(t, err, docmodel.ErrMissingID)
}

func TestResubscribeTearsDownPriorListener(t *testing.T) {
	session, _ := newSession(t)
	ctx := context.Background()

	first, err := document.New(customerDefinition(), map[string]any{"name": "one"})
	require.NoError(t, err)
	firstID, err := session.Create(ctx, first)
	require.NoError(t, err)

	second, err := document.New(customerDefinition(), map[string]any{"name": "two"})
	require.NoError(t, err)
	secondID, err := session.Create(ctx, second)
	require.NoError(t, err)

	live, err := document.New(customerDefinition(), nil)
	require.NoError(t, err)
	require.NoError(t, session.Subscribe(ctx, live, firstID))
	require.NoError(t, session.Subscribe(ctx, live, secondID))
	defer session.Unsubscribe(live)

	assert.Equal(t, "two", live.Get("name"))

	// updates to the first document no longer reach the instance
	first.Set("name", "one-changed")
	require.NoError(t, session.Update(ctx, first))

	second.Set("name", "two-changed")
	require.NoError(t, session.Update(ctx, second))

	require.Eventually(t, func() bool {
		return live.Get("name") == "two-changed"
	}, liveWait, 10*time.Millisecond)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	session, _ := newSession(t)
	ctx := context.Background()

	doc, err := document.New(customerDefinition(), map[string]any{"name": "Ada"})
	require.NoError(t, err)
	id, err := session.Create(ctx, doc)
	require.NoError(t, err)

	live, err := document.New(customerDefinition(), nil)
	require.NoError(t, err)
	require.NoError(t, session.Subscribe(ctx, live, id))

	session.Unsubscribe(live)
	session.Unsubscribe(live) // no-op
}

func TestSubscribeDocsTracksResultSet(t *testing.T) {
	session, _ := newSession(t)
	ctx := context.Background()
	def := customerDefinition()
	def.LogicalDelete = false

	initial, err := document.New(def, map[string]any{"name": "amy", "tags": []any{"vip"}})
	require.NoError(t, err)
	_, err = session.Create(ctx, initial)
	require.NoError(t, err)

	result, err := session.SubscribeDocs(ctx, def, []adapter.Constraint{
		adapter.Where("tags", "array-contains", "vip"),
	})
	require.NoError(t, err)
	defer result.Unsubscribe()

	require.Equal(t, 1, result.Len())

	joined, err := document.New(def, map[string]any{"name": "bob", "tags": []any{"vip"}})
	require.NoError(t, err)
	_, err = session.Create(ctx, joined)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return result.Len() == 2 }, liveWait, 10*time.Millisecond)

	// falling out of the predicate removes the document from the set
	joined.Set("tags", []any{"regular"})
	require.NoError(t, session.Update(ctx, joined))

	require.Eventually(t, func() bool { return result.Len() == 1 }, liveWait, 10*time.Millisecond)
	docs := result.Docs()
	require.Len(t, docs, 1)
	assert.Equal(t, "amy", docs[0].Get("name"))
}
