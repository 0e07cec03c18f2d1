package server

import (
	"image"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"layer-anything/internal/engine"
)

// Document is one uploaded image and the layer engine working on it. Fields
// other than Engine are written once at creation and read-only afterwards.
type Document struct {
	ID        string
	MD5       string
	Filename  string
	Format    string
	Data      []byte
	Image     image.Image
	Engine    *engine.Engine
	CreatedAt time.Time
}

// DocumentStore keeps open documents in memory.
type DocumentStore struct {
	mu      sync.RWMutex
	docs    map[string]*Document
	entropy *ulid.MonotonicEntropy
}

// NewDocumentStore creates an empty store.
func NewDocumentStore() *DocumentStore {
	seed := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &DocumentStore{
		docs:    make(map[string]*Document),
		entropy: ulid.Monotonic(seed, 0),
	}
}

// Put stores the document under a fresh id and returns the id.
func (s *DocumentStore) Put(doc *Document) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc.ID = ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	s.docs[doc.ID] = doc
	return doc.ID
}

// Get looks a document up by id.
func (s *DocumentStore) Get(id string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, found := s.docs[id]
	return doc, found
}

// Delete removes a document. Returns false when the id is unknown.
func (s *DocumentStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.docs[id]; !found {
		return false
	}
	delete(s.docs, id)
	return true
}

// List returns documents ordered oldest first.
func (s *DocumentStore) List() []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of open documents.
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
