package docstore

import (
	"context"
	"sync"

	"github.com/flurbudurbur/supergear/internal/domain"

	"github.com/pkg/errors"
)

// MemoryRepo is an in-process DocumentRepo. Documents are copied on the way
// in and out.
type MemoryRepo struct {
	mu   sync.RWMutex
	docs map[string]domain.Document

	readErr  map[string]error
	writeErr error
	writes   int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		docs:    make(map[string]domain.Document),
		readErr: make(map[string]error),
	}
}

func memKey(collection, id string) string {
	return collection + "/" + id
}

func (m *MemoryRepo) Read(ctx context.Context, collection, id string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.readErr[collection]; ok {
		return nil, err
	}

	doc, ok := m.docs[memKey(collection, id)]
	if !ok {
		return nil, nil
	}

	return copyDocument(doc)
}

func (m *MemoryRepo) Write(ctx context.Context, collection, id string, body domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.writes++
	if m.writeErr != nil {
		return m.writeErr
	}

	doc, err := copyDocument(body)
	if err != nil {
		return err
	}
	m.docs[memKey(collection, id)] = doc

	return nil
}

// Put stores a document without counting it as a write.
func (m *MemoryRepo) Put(collection, id string, body domain.Document) {
	doc, err := copyDocument(body)
	if err != nil {
		panic(err)
	}

	m.mu.Lock()
	m.docs[memKey(collection, id)] = doc
	m.mu.Unlock()
}

// Get returns a stored document or nil.
func (m *MemoryRepo) Get(collection, id string) domain.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[memKey(collection, id)]
	if !ok {
		return nil
	}
	c, _ := copyDocument(doc)
	return c
}

// FailReads makes every read of collection return err. A nil err clears it.
func (m *MemoryRepo) FailReads(collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.readErr, collection)
		return
	}
	m.readErr[collection] = err
}

// FailWrites makes every write return err. A nil err clears it.
func (m *MemoryRepo) FailWrites(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

// Writes is the number of write attempts seen so far.
func (m *MemoryRepo) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

func copyDocument(doc domain.Document) (domain.Document, error) {
	if doc == nil {
		return domain.Document{}, nil
	}
	c, err := ToDocument(doc)
	if err != nil {
		return nil, errors.Wrap(err, "could not copy document")
	}
	return c, nil
}
