package badger

import "github.com/poiesic/examscribe/storage"

// NewMemoryIndex returns an index backed by an in-memory database it owns.
// Intended for tests.
func NewMemoryIndex() (storage.VectorIndex, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	index, err := newIndex(backend, true)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return index, nil
}
