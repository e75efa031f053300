package clusterfs

import (
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/clusterfs/blockdev"
	"github.com/hupe1980/clusterfs/layout"
)

// BlockSize is the size of a block in bytes.
const BlockSize = layout.BlockSize

// FS is a mounted filesystem.
//
// The allocation and directory tables are held in memory and written back
// after every structural change. FS is safe for concurrent use within one
// process; it does not coordinate with other processes sharing the store.
type FS struct {
	mu sync.Mutex

	store     blockdev.Store
	sb        layout.Superblock
	table     layout.Table
	dir       layout.Directory
	files     map[string]*File
	open      bool
	formatted bool

	logger  *Logger
	metrics MetricsCollector
}

// Mount opens store and reads the filesystem on it. An all-zero block 0 is
// treated as an unformatted volume and a new filesystem is written.
func Mount(store blockdev.Store, optFns ...Option) (*FS, error) {
	return mount(store, false, optFns)
}

// Format opens store and writes a new, empty filesystem regardless of its
// current contents.
func Format(store blockdev.Store, optFns ...Option) (*FS, error) {
	return mount(store, true, optFns)
}

func mount(store blockdev.Store, force bool, optFns []Option) (*FS, error) {
	o := applyOptions(optFns)
	if o.cacheBytes > 0 {
		store = blockdev.NewCachingStore(store, o.cacheBytes, o.rc)
	}

	f := &FS{
		store:   store,
		files:   make(map[string]*File),
		logger:  o.logger,
		metrics: o.metricsCollector,
	}

	start := time.Now()
	err := f.mount(force)
	f.metrics.RecordMount(time.Since(start), f.formatted, err)
	f.logger.LogMount(store.Size(), f.formatted, err)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return f, nil
}

func (f *FS) mount(force bool) error {
	if err := f.store.Open(); err != nil {
		return err
	}
	if !f.store.IsOpen() {
		return fmt.Errorf("%w: store has no backing data", ErrNotOpen)
	}

	b, err := f.store.ReadBlock(layout.SuperblockBlock)
	if err != nil {
		return err
	}
	if force || layout.IsZero(b) {
		return f.format()
	}
	return f.load(b)
}

// format lays out a new filesystem over the whole store.
func (f *FS) format() error {
	blocks := f.store.Size()
	sb, err := layout.NewSuperblock(blocks)
	if err != nil {
		return err
	}
	if blocks/int(sb.SectorsPerCluster) > sb.ClusterCount() {
		f.logger.Warn("volume larger than the allocation table can address",
			"blocks", blocks,
			"used_blocks", sb.RequiredBlocks(),
		)
	}

	f.sb = sb
	f.table = layout.NewTable(sb.ClusterCount())
	f.dir = layout.NewDirectory(sb.DirEntryCount())

	b := make([]byte, BlockSize)
	if err := sb.Encode(b); err != nil {
		return err
	}
	if err := f.store.WriteBlock(layout.SuperblockBlock, b); err != nil {
		return err
	}
	if err := f.persist(); err != nil {
		return err
	}

	f.formatted = true
	f.open = true
	return nil
}

// load reads an existing filesystem. Nothing is written.
func (f *FS) load(block0 []byte) error {
	sb, err := layout.DecodeSuperblock(block0)
	if err != nil {
		return err
	}
	if err := sb.Validate(); err != nil {
		return err
	}
	if size := f.store.Size(); size < sb.RequiredBlocks() {
		return fmt.Errorf("%w: geometry needs %d blocks, store has %d", ErrVolumeTooSmall, sb.RequiredBlocks(), size)
	}

	tb, err := f.store.ReadBlock(layout.TableBlock)
	if err != nil {
		return err
	}
	table, err := layout.DecodeTable(tb, sb.ClusterCount())
	if err != nil {
		return err
	}

	first, end := sb.DirectoryBlocks()
	buf := make([]byte, 0, (end-first)*BlockSize)
	for id := first; id < end; id++ {
		b, err := f.store.ReadBlock(id)
		if err != nil {
			return err
		}
		buf = append(buf, b...)
	}
	dir, err := layout.DecodeDirectory(buf, sb.DirEntryCount())
	if err != nil {
		return err
	}

	f.sb = sb
	f.table = table
	f.dir = dir
	f.open = true
	return nil
}

// persist writes the allocation table and the directory table.
func (f *FS) persist() error {
	tb := make([]byte, BlockSize)
	if err := f.table.Encode(tb); err != nil {
		return err
	}
	if err := f.store.WriteBlock(layout.TableBlock, tb); err != nil {
		return fmt.Errorf("write allocation table: %w", err)
	}

	first, end := f.sb.DirectoryBlocks()
	buf := make([]byte, (end-first)*BlockSize)
	if err := f.dir.Encode(buf); err != nil {
		return err
	}
	for id := first; id < end; id++ {
		off := (id - first) * BlockSize
		if err := f.store.WriteBlock(id, buf[off:off+BlockSize]); err != nil {
			return fmt.Errorf("write directory: %w", err)
		}
	}
	return nil
}

// Open reopens the store after Close. The in-memory tables are kept.
func (f *FS) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openLocked()
}

func (f *FS) openLocked() error {
	if f.open {
		return nil
	}
	if err := f.store.Open(); err != nil {
		return err
	}
	if !f.store.IsOpen() {
		return fmt.Errorf("%w: store has no backing data", ErrNotOpen)
	}
	f.open = true
	return nil
}

// Close flushes and closes the store. Open file handles stay registered and
// reopen the store for the duration of each read, write or truncate.
func (f *FS) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeLocked()
}

func (f *FS) closeLocked() error {
	if !f.open {
		return nil
	}
	f.open = false
	err := f.store.Sync()
	if cerr := f.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// transient opens a closed filesystem and returns the function that closes
// it again. For an open filesystem the returned function does nothing.
func (f *FS) transient() (func() error, error) {
	if f.open {
		return func() error { return nil }, nil
	}
	if err := f.openLocked(); err != nil {
		return nil, err
	}
	return f.closeLocked, nil
}

// IsOpen reports whether the store is open.
func (f *FS) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Formatted reports whether Mount wrote a new filesystem.
func (f *FS) Formatted() bool {
	return f.formatted
}

// Superblock returns the volume geometry.
func (f *FS) Superblock() layout.Superblock {
	return f.sb
}

// Store returns the underlying block store.
func (f *FS) Store() blockdev.Store {
	return f.store
}

// AllocationTable returns a copy of the in-memory allocation table.
func (f *FS) AllocationTable() layout.Table {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.table.Clone()
}

// Usage describes cluster and directory occupancy.
type Usage struct {
	ClusterSize      int
	TotalClusters    int
	ReservedClusters int
	UsedClusters     int
	FreeClusters     int
	DirectorySlots   int
	UsedSlots        int
}

// FreeBytes returns the capacity of the free clusters in bytes.
func (u Usage) FreeBytes() int64 {
	return int64(u.FreeClusters) * int64(u.ClusterSize)
}

// Usage reports cluster and directory occupancy.
func (f *FS) Usage() Usage {
	f.mu.Lock()
	defer f.mu.Unlock()

	u := Usage{
		ClusterSize:    f.sb.ClusterSize(),
		TotalClusters:  len(f.table),
		DirectorySlots: len(f.dir),
	}
	for _, e := range f.table {
		switch e.Kind() {
		case layout.KindFree:
			u.FreeClusters++
		case layout.KindReserved:
			u.ReservedClusters++
		default:
			u.UsedClusters++
		}
	}
	for _, e := range f.dir {
		if !e.IsFree() {
			u.UsedSlots++
		}
	}
	return u
}
