package client_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docmodel/docmodel.go/pkg/adapter"
	"github.com/docmodel/docmodel.go/pkg/adapter/client"
	"github.com/docmodel/docmodel.go/pkg/store/memstore"
)

func TestTypeAndIdentity(t *testing.T) {
	a := client.New(memstore.New(), "user-7", nil)
	assert.Equal(t, adapter.TypeClient, a.Type())
	assert.Equal(t, "user-7", a.Identity())
}

func TestWritesStampOwner(t *testing.T) {
	a := client.New(memstore.New(), "user-7", nil)
	ctx := context.Background()

	require.NoError(t, a.Create(ctx, nil, "notes", "n1", map[string]any{
		"id":      "n1",
		"ownerId": "someone-else",
	}))

	data, err := a.Get(ctx, nil, "notes", "n1")
	require.NoError(t, err)
	assert.Equal(t, "user-7", data["ownerId"])

	require.NoError(t, a.Update(ctx, nil, "notes", "n1", map[string]any{
		"id":      "n1",
		"ownerId": "",
	}))
	data, err = a.Get(ctx, nil, "notes", "n1")
	require.NoError(t, err)
	assert.Equal(t, "user-7", data["ownerId"])
}

func TestArchiveReadsLimitedToOwnDocuments(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, nil, "notes_archive", "mine", map[string]any{
		"id": "mine", "ownerId": "user-7",
	}))
	require.NoError(t, st.Set(ctx, nil, "notes_archive", "theirs", map[string]any{
		"id": "theirs", "ownerId": "user-9",
	}))

	a := client.New(st, "user-7", nil)

	data, err := a.Get(ctx, nil, "notes_archive", "mine")
	require.NoError(t, err)
	assert.Equal(t, "mine", data["id"])

	_, err = a.Get(ctx, nil, "notes_archive", "theirs")
	require.ErrorIs(t, err, adapter.ErrPrivilegedOnly)

	snaps, err := a.Query(ctx, nil, "notes_archive", nil)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "mine", snaps[0].ID)
}

func TestRestoreLimitedToOwnDocuments(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, nil, "notes_archive", "theirs", map[string]any{
		"id": "theirs", "ownerId": "user-9",
	}))

	a := client.New(st, "user-7", nil)
	_, err := a.Move(ctx, nil, "notes_archive", "notes", "theirs")
	require.ErrorIs(t, err, adapter.ErrPrivilegedOnly)

	// still archived
	data, err := st.Get(ctx, nil, "notes_archive", "theirs")
	require.NoError(t, err)
	require.NotNil(t, data)
}

func TestEnsureCounterRefused(t *testing.T) {
	a := client.New(memstore.New(), "user-7", nil)
	err := a.EnsureCounter(context.Background(), nil, "notes", adapter.Counter{Length: 3, Status: true})
	require.ErrorIs(t, err, adapter.ErrPrivilegedOnly)
}
