package clusterfs

import (
	"errors"
	"fmt"

	"github.com/hupe1980/clusterfs/blockdev"
	"github.com/hupe1980/clusterfs/layout"
)

// Errors of the lower layers, re-exported so callers only import this package.
var (
	// ErrNotOpen is returned for operations on a closed store or filesystem.
	ErrNotOpen = blockdev.ErrNotOpen
	// ErrInvalidSize is returned for negative or unrepresentable sizes.
	ErrInvalidSize = blockdev.ErrInvalidSize
	// ErrBufferTooLarge is returned when a block write exceeds the block size.
	ErrBufferTooLarge = blockdev.ErrBufferTooLarge
	// ErrOutOfRange is returned for block indexes outside the store.
	ErrOutOfRange = blockdev.ErrOutOfRange
	// ErrVolumeTooSmall is returned when the store cannot hold a filesystem.
	ErrVolumeTooSmall = layout.ErrVolumeTooSmall
	// ErrInvalidSuperblock is returned when block 0 holds an unusable geometry.
	ErrInvalidSuperblock = layout.ErrInvalidSuperblock
	// ErrNameTooLong is returned for names longer than 11 bytes.
	ErrNameTooLong = layout.ErrNameTooLong
	// ErrInvalidName is returned for empty names.
	ErrInvalidName = layout.ErrInvalidName
)

var (
	// ErrNoFreeCluster is returned when the allocation table is exhausted.
	ErrNoFreeCluster = errors.New("no free cluster")
	// ErrNoFreeDirectorySlot is returned when every directory slot is used.
	ErrNoFreeDirectorySlot = errors.New("no free directory slot")
	// ErrNameAlreadyExists is returned when creating a name that is in use.
	ErrNameAlreadyExists = errors.New("name already exists")
	// ErrFileAlreadyOpen is returned when a file has a live handle.
	ErrFileAlreadyOpen = errors.New("file already open")
	// ErrFileNotFound is returned for names without a directory entry.
	ErrFileNotFound = errors.New("file not found")
	// ErrFileClosed is returned for operations on a closed handle.
	ErrFileClosed = errors.New("file closed")
	// ErrSeekOutOfRange is returned when a seek target lies outside [0, size].
	ErrSeekOutOfRange = errors.New("seek out of range")
)

// ErrCorruptChain indicates a cluster chain that cannot be walked, or a
// directory entry whose size does not fit its chain.
type ErrCorruptChain struct {
	File    string
	Cluster uint32
	Reason  string
}

func (e *ErrCorruptChain) Error() string {
	if e.File == "" {
		return fmt.Sprintf("corrupt chain at cluster %d: %s", e.Cluster, e.Reason)
	}
	return fmt.Sprintf("corrupt chain of %q at cluster %d: %s", e.File, e.Cluster, e.Reason)
}
