package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePutAssignsUniqueIDs(t *testing.T) {
	store := NewDocumentStore()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := store.Put(&Document{MD5: "m", Filename: "f.png"})
		require.NotEmpty(t, id)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Equal(t, 50, store.Len())
}

func TestStoreGetAndDelete(t *testing.T) {
	store := NewDocumentStore()
	id := store.Put(&Document{Filename: "a.png"})

	doc, found := store.Get(id)
	require.True(t, found)
	assert.Equal(t, "a.png", doc.Filename)
	assert.False(t, doc.CreatedAt.IsZero())

	_, found = store.Get("missing")
	assert.False(t, found)

	assert.True(t, store.Delete(id))
	assert.False(t, store.Delete(id))
	assert.Equal(t, 0, store.Len())
}

func TestStoreListOrdersByCreation(t *testing.T) {
	store := NewDocumentStore()
	base := time.Now().UTC()

	newest := store.Put(&Document{Filename: "c.png", CreatedAt: base.Add(2 * time.Hour)})
	oldest := store.Put(&Document{Filename: "a.png", CreatedAt: base})
	middle := store.Put(&Document{Filename: "b.png", CreatedAt: base.Add(time.Hour)})

	docs := store.List()
	require.Len(t, docs, 3)
	assert.Equal(t, oldest, docs[0].ID)
	assert.Equal(t, middle, docs[1].ID)
	assert.Equal(t, newest, docs[2].ID)
}
