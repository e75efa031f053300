package clusterfs

import (
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/clusterfs/layout"
)

// FindFreeCluster returns the lowest free data cluster.
func (f *FS) FindFreeCluster() (uint32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findFreeCluster(layout.FirstDataCluster)
}

// findFreeCluster scans upward from start without wrapping.
func (f *FS) findFreeCluster(start uint32) (uint32, bool) {
	for c := start; c < uint32(len(f.table)); c++ {
		if f.table[c].IsFree() {
			return c, true
		}
	}
	return 0, false
}

// walkChain returns the clusters of the chain starting at first. The walk is
// bounded by the table length.
func (f *FS) walkChain(name string, first int32) ([]uint32, error) {
	n := uint32(len(f.table))
	if first < layout.FirstDataCluster || uint32(first) >= n {
		return nil, &ErrCorruptChain{File: name, Cluster: uint32(first), Reason: "first cluster out of range"}
	}

	chain := make([]uint32, 0, 4)
	c := uint32(first)
	for steps := uint32(0); ; steps++ {
		if steps >= n {
			return nil, &ErrCorruptChain{File: name, Cluster: c, Reason: "cycle"}
		}
		chain = append(chain, c)

		e := f.table[c]
		switch e.Kind() {
		case layout.KindEndOfChain:
			return chain, nil
		case layout.KindNext:
			next, _ := e.Next()
			if next < layout.FirstDataCluster || next >= n {
				return nil, &ErrCorruptChain{File: name, Cluster: c, Reason: fmt.Sprintf("link to cluster %d out of range", next)}
			}
			c = next
		default:
			return nil, &ErrCorruptChain{File: name, Cluster: c, Reason: e.Kind().String() + " cluster in chain"}
		}
	}
}

// entryChain walks the chain of directory slot and checks that the recorded
// size fits it.
func (f *FS) entryChain(slot int) ([]uint32, error) {
	e := f.dir[slot]
	chain, err := f.walkChain(e.Name, e.FirstCluster)
	if err != nil {
		return nil, err
	}
	if e.Size < 0 || int64(e.Size) > int64(len(chain)*f.sb.ClusterSize()) {
		return nil, &ErrCorruptChain{
			File:    e.Name,
			Cluster: uint32(e.FirstCluster),
			Reason:  fmt.Sprintf("size %d exceeds chain of %d clusters", e.Size, len(chain)),
		}
	}
	return chain, nil
}

// zeroCluster clears every block of cluster c.
func (f *FS) zeroCluster(c uint32) error {
	zero := make([]byte, BlockSize)
	first := f.sb.FirstBlock(c)
	for id := first; id < first+int(f.sb.SectorsPerCluster); id++ {
		if err := f.store.WriteBlock(id, zero); err != nil {
			return err
		}
	}
	return nil
}

// allocateCluster claims the lowest free cluster as a one-cluster chain.
func (f *FS) allocateCluster() (uint32, error) {
	c, ok := f.findFreeCluster(layout.FirstDataCluster)
	if !ok {
		return 0, ErrNoFreeCluster
	}
	if err := f.zeroCluster(c); err != nil {
		return 0, err
	}
	f.table[c] = layout.EndOfChain
	return c, nil
}

// allocateClusters extends chain until it holds wanted clusters. Nothing is
// mutated when the free clusters do not suffice.
func (f *FS) allocateClusters(chain []uint32, wanted int) ([]uint32, error) {
	need := wanted - len(chain)
	if need <= 0 {
		return chain, nil
	}
	if free := f.table.CountFree(); free < need {
		return chain, fmt.Errorf("%w: need %d clusters, %d free", ErrNoFreeCluster, need, free)
	}

	for len(chain) < wanted {
		c, err := f.allocateCluster()
		if err != nil {
			return chain, err
		}
		f.table[chain[len(chain)-1]] = layout.Next(c)
		chain = append(chain, c)
	}
	return chain, nil
}

// releaseClusters frees the tail of chain until it holds wanted clusters.
// wanted is at least one.
func (f *FS) releaseClusters(chain []uint32, wanted int) []uint32 {
	if wanted < 1 {
		wanted = 1
	}
	for len(chain) > wanted {
		f.table[chain[len(chain)-1]] = layout.Free
		chain = chain[:len(chain)-1]
		f.table[chain[len(chain)-1]] = layout.EndOfChain
	}
	return chain
}

// ChangeSize sets the size of the file behind handle to n bytes, growing or
// shrinking its chain, and persists both tables. The cursor is clamped to
// the new size. Bytes added by growth read as zero.
func (f *FS) ChangeSize(handle *File, n int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changeSize(handle, n)
}

func (f *FS) changeSize(handle *File, n int64) (err error) {
	if handle == nil || handle.fs != f || handle.closed {
		return ErrFileClosed
	}
	if !f.open {
		return ErrNotOpen
	}
	if n < 0 || n > math.MaxInt32 {
		return fmt.Errorf("%w: %d bytes", ErrInvalidSize, n)
	}

	slot, err := f.lookup(handle.name)
	if err != nil {
		return err
	}
	entry := &f.dir[slot]

	start := time.Now()
	from := int64(entry.Size)
	delta := 0
	defer func() {
		f.metrics.RecordResize(delta, time.Since(start), err)
		f.logger.LogResize(handle.name, from, n, err)
	}()

	chain, err := f.entryChain(slot)
	if err != nil {
		return err
	}

	used := len(chain)
	wanted := f.sb.ClustersFor(n)
	switch {
	case wanted > used:
		if chain, err = f.allocateClusters(chain, wanted); err != nil {
			return err
		}
		// New clusters are zeroed already. Only the old tail may hold stale bytes.
		if err := f.zeroRange(chain, from, min(n, int64(used*f.sb.ClusterSize()))); err != nil {
			return err
		}
	case wanted < used:
		chain = f.releaseClusters(chain, wanted)
	default:
		if err := f.zeroRange(chain, from, n); err != nil {
			return err
		}
	}
	delta = len(chain) - used

	entry.Size = int32(n)
	handle.size = n
	if handle.pos > n {
		handle.pos = n
	}
	return f.persist()
}

// zeroRange clears bytes [from, to) of the file stored in chain.
func (f *FS) zeroRange(chain []uint32, from, to int64) error {
	if to <= from {
		return nil
	}
	return f.writeAt(chain, from, make([]byte, to-from))
}

// blockAt maps a file offset to the block holding it and the offset within
// that block.
func (f *FS) blockAt(chain []uint32, off int64) (id, within int) {
	cs := int64(f.sb.ClusterSize())
	rel := int(off % cs)
	return f.sb.FirstBlock(chain[off/cs]) + rel/BlockSize, rel % BlockSize
}

// writeAt writes p at file offset off. The chain must cover off+len(p).
func (f *FS) writeAt(chain []uint32, off int64, p []byte) error {
	for len(p) > 0 {
		id, within := f.blockAt(chain, off)
		n := min(BlockSize-within, len(p))

		if within == 0 {
			// The store keeps the bytes past len(p).
			if err := f.store.WriteBlock(id, p[:n]); err != nil {
				return err
			}
		} else {
			b, err := f.store.ReadBlock(id)
			if err != nil {
				return err
			}
			copy(b[within:], p[:n])
			if err := f.store.WriteBlock(id, b); err != nil {
				return err
			}
		}

		off += int64(n)
		p = p[n:]
	}
	return nil
}

// readAt fills p from file offset off. The chain must cover off+len(p).
func (f *FS) readAt(chain []uint32, off int64, p []byte) error {
	for len(p) > 0 {
		id, within := f.blockAt(chain, off)
		b, err := f.store.ReadBlock(id)
		if err != nil {
			return err
		}
		n := copy(p, b[within:])
		off += int64(n)
		p = p[n:]
	}
	return nil
}
