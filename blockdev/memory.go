package blockdev

import "sync"

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
	open bool
}

// NewMemoryStore returns a zeroed store of the given size in blocks.
// A store of zero blocks never opens.
func NewMemoryStore(blocks int) *MemoryStore {
	if blocks < 0 {
		blocks = 0
	}
	return &MemoryStore{data: make([]byte, blocks*BlockSize)}
}

// NewMemoryStoreFrom returns a store holding a copy of image.
// Trailing bytes beyond the last full block are dropped.
func NewMemoryStoreFrom(image []byte) *MemoryStore {
	n := len(image) / BlockSize * BlockSize
	data := make([]byte, n)
	copy(data, image[:n])
	return &MemoryStore{data: data}
}

// Open implements Store.
func (m *MemoryStore) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = len(m.data) > 0
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

// IsOpen implements Store.
func (m *MemoryStore) IsOpen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.open
}

// Size implements Store.
func (m *MemoryStore) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data) / BlockSize
}

// ReadBlock implements Store.
func (m *MemoryStore) ReadBlock(id int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := checkRead(m.open, id, len(m.data)/BlockSize); err != nil {
		return nil, err
	}
	b := make([]byte, BlockSize)
	copy(b, m.data[id*BlockSize:])
	return b, nil
}

// WriteBlock implements Store.
func (m *MemoryStore) WriteBlock(id int, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkWrite(m.open, id, len(m.data)/BlockSize, p); err != nil {
		return err
	}
	copy(m.data[id*BlockSize:], p)
	return nil
}

// Sync implements Store.
func (m *MemoryStore) Sync() error {
	if !m.IsOpen() {
		return ErrNotOpen
	}
	return nil
}

// SetSize implements Resizer.
func (m *MemoryStore) SetSize(blocks int) error {
	if blocks <= 0 {
		return ErrInvalidSize
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := blocks * BlockSize
	if n <= len(m.data) {
		m.data = m.data[:n:n]
		return nil
	}
	m.data = append(m.data, make([]byte, n-len(m.data))...)
	return nil
}

// Bytes returns a copy of the whole image.
func (m *MemoryStore) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b := make([]byte, len(m.data))
	copy(b, m.data)
	return b
}
