package blockdev

import (
	"errors"
	"fmt"

	"github.com/hupe1980/clusterfs/layout"
)

// BlockSize is the size of every block in bytes.
const BlockSize = layout.BlockSize

var (
	// ErrNotOpen is returned for I/O on a closed store.
	ErrNotOpen = errors.New("block store is not open")
	// ErrInvalidSize is returned for non-positive store sizes.
	ErrInvalidSize = errors.New("invalid size")
	// ErrBufferTooLarge is returned when a write exceeds one block.
	ErrBufferTooLarge = errors.New("buffer larger than a block")
	// ErrOutOfRange is returned for block indexes outside the store.
	ErrOutOfRange = errors.New("block index out of range")
)

// Store is a fixed-size block device.
type Store interface {
	// Open makes the store accessible. A store without backing data stays closed
	// and Open returns nil.
	Open() error
	// Close releases the backing resources. It is idempotent.
	Close() error
	// IsOpen reports whether reads and writes are allowed.
	IsOpen() bool
	// Size returns the number of blocks.
	Size() int
	// ReadBlock returns a copy of block id, exactly BlockSize bytes long.
	ReadBlock(id int) ([]byte, error)
	// WriteBlock writes p at the start of block id. Bytes of the block beyond
	// len(p) keep their previous contents.
	WriteBlock(id int, p []byte) error
	// Sync flushes written blocks to stable storage.
	Sync() error
}

// Resizer is implemented by stores whose size can change.
type Resizer interface {
	// SetSize changes the store size to blocks. Values <= 0 fail with ErrInvalidSize.
	SetSize(blocks int) error
}

func checkRead(open bool, id, size int) error {
	if !open {
		return ErrNotOpen
	}
	if id < 0 || id >= size {
		return fmt.Errorf("%w: block %d of %d", ErrOutOfRange, id, size)
	}
	return nil
}

func checkWrite(open bool, id, size int, p []byte) error {
	if err := checkRead(open, id, size); err != nil {
		return err
	}
	if len(p) > BlockSize {
		return fmt.Errorf("%w: %d bytes", ErrBufferTooLarge, len(p))
	}
	return nil
}
