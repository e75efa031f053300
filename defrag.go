package clusterfs

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/clusterfs/layout"
)

// Defragment frees clusters that are allocated but not reachable from any
// directory entry and returns how many were freed. Data is not moved.
//
// A corrupt chain aborts the pass before anything is freed, since its
// clusters cannot be told apart from orphans.
func (f *FS) Defragment() (freed int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := time.Now()
	defer func() {
		f.metrics.RecordDefragment(freed, time.Since(start), err)
		f.logger.LogDefragment(freed, err)
	}()

	if !f.open {
		return 0, ErrNotOpen
	}

	orphans, err := f.orphans()
	if err != nil {
		return 0, err
	}
	if orphans.IsEmpty() {
		return 0, nil
	}

	it := orphans.Iterator()
	for it.HasNext() {
		f.table[it.Next()] = layout.Free
	}
	if err := f.persist(); err != nil {
		return 0, err
	}
	return int(orphans.GetCardinality()), nil
}

// orphans returns the allocated clusters no directory entry reaches.
func (f *FS) orphans() (*roaring.Bitmap, error) {
	allocated := roaring.New()
	for c := layout.FirstDataCluster; c < len(f.table); c++ {
		if f.table[c].IsAllocated() {
			allocated.Add(uint32(c))
		}
	}

	reachable := roaring.New()
	for _, e := range f.dir {
		if e.IsFree() {
			continue
		}
		chain, err := f.walkChain(e.Name, e.FirstCluster)
		if err != nil {
			return nil, err
		}
		reachable.AddMany(chain)
	}

	return roaring.AndNot(allocated, reachable), nil
}
