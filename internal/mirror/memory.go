package mirror

import (
	"context"
	"sync"
)

// MemoryRepo is a SnapshotRepo that lives only as long as the process.
type MemoryRepo struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string][]byte)}
}

func (r *MemoryRepo) Get(_ context.Context, key string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}
	d, ok := r.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), d...), nil
}

func (r *MemoryRepo) Put(_ context.Context, key string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	r.data[key] = append([]byte(nil), data...)
	return nil
}

func (r *MemoryRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	delete(r.data, key)
	return nil
}

// Fail makes every call return err until it is called with nil.
func (r *MemoryRepo) Fail(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}
