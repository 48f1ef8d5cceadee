package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/lyzr/mediacatalog/cmd/catalog/models"
)

type memoryPayload struct {
	contentType string
	data        []byte
}

// MemoryPayloadStore keeps payloads in process memory
type MemoryPayloadStore struct {
	mu       sync.RWMutex
	payloads map[int64]*memoryPayload
}

// NewMemoryPayloadStore creates an empty store
func NewMemoryPayloadStore() *MemoryPayloadStore {
	return &MemoryPayloadStore{
		payloads: make(map[int64]*memoryPayload),
	}
}

// Save buffers the whole stream, then swaps it in
func (s *MemoryPayloadStore) Save(ctx context.Context, id int64, contentType string, r io.Reader) (int64, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return 0, fmt.Errorf("%w: read payload: %w", models.ErrStorageFailure, err)
	}

	s.mu.Lock()
	s.payloads[id] = &memoryPayload{contentType: contentType, data: buf.Bytes()}
	s.mu.Unlock()

	return n, nil
}

// Has reports whether a payload is stored for id
func (s *MemoryPayloadStore) Has(ctx context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.payloads[id]
	return ok, nil
}

// Open returns the stored bytes together with their content type
func (s *MemoryPayloadStore) Open(ctx context.Context, id int64) (*Payload, error) {
	// Stored slices are never mutated, so reads happen outside the lock
	s.mu.RLock()
	p, ok := s.payloads[id]
	s.mu.RUnlock()
	if !ok {
		return nil, models.ErrNotFound
	}

	return &Payload{
		ContentType: p.contentType,
		Size:        int64(len(p.data)),
		Body:        io.NopCloser(bytes.NewReader(p.data)),
	}, nil
}
