package clusterfs

import (
	"fmt"
	"time"

	"github.com/hupe1980/clusterfs/layout"
)

// FileInfo describes a directory entry and its chain.
type FileInfo struct {
	Name         string
	Size         int64
	FirstCluster uint32
	Chain        []uint32
	Open         bool
}

// Clusters returns the number of clusters the file occupies.
func (fi FileInfo) Clusters() int {
	return len(fi.Chain)
}

// lookup returns the directory slot holding name.
func (f *FS) lookup(name string) (int, error) {
	slot := f.dir.Lookup(name)
	if slot < 0 {
		return -1, fmt.Errorf("%w: %q", ErrFileNotFound, name)
	}
	return slot, nil
}

// Create adds an empty file owning one cluster.
func (f *FS) Create(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.create(name)
	return err
}

// create checks every precondition before touching the tables.
func (f *FS) create(name string) (slot int, err error) {
	start := time.Now()
	var cluster uint32
	defer func() {
		f.metrics.RecordCreate(time.Since(start), err)
		f.logger.LogCreate(name, cluster, err)
	}()

	if !f.open {
		return -1, ErrNotOpen
	}
	if err := layout.ValidateName(name); err != nil {
		return -1, err
	}
	if _, ok := f.findFreeCluster(layout.FirstDataCluster); !ok {
		return -1, ErrNoFreeCluster
	}
	if f.dir.Lookup(name) >= 0 {
		return -1, fmt.Errorf("%w: %q", ErrNameAlreadyExists, name)
	}
	slot = f.dir.FreeSlot()
	if slot < 0 {
		return -1, ErrNoFreeDirectorySlot
	}

	cluster, err = f.allocateCluster()
	if err != nil {
		return -1, err
	}
	f.dir[slot] = layout.DirEntry{
		Name:         name,
		FirstCluster: int32(cluster),
		Size:         0,
		Type:         layout.TypeFile,
	}
	return slot, f.persist()
}

// OpenFile returns a handle for name, creating the file if it does not exist.
// A file has at most one live handle; a second open fails with
// ErrFileAlreadyOpen until the first handle is closed.
func (f *FS) OpenFile(name string) (*File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.open {
		return nil, ErrNotOpen
	}
	if _, ok := f.files[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrFileAlreadyOpen, name)
	}

	slot := f.dir.Lookup(name)
	if slot < 0 {
		var err error
		if slot, err = f.create(name); err != nil {
			return nil, err
		}
	} else if _, err := f.entryChain(slot); err != nil {
		return nil, err
	}

	file := &File{
		fs:   f,
		name: name,
		size: int64(f.dir[slot].Size),
	}
	f.files[name] = file
	return file, nil
}

// Remove deletes name and frees its chain. Open files cannot be removed.
func (f *FS) Remove(name string) (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := time.Now()
	defer func() {
		f.metrics.RecordDelete(time.Since(start), err)
		f.logger.LogDelete(name, err)
	}()

	if !f.open {
		return ErrNotOpen
	}
	slot, err := f.lookup(name)
	if err != nil {
		return err
	}
	if _, ok := f.files[name]; ok {
		return fmt.Errorf("%w: %q", ErrFileAlreadyOpen, name)
	}

	chain, err := f.walkChain(name, f.dir[slot].FirstCluster)
	if err != nil {
		return err
	}
	chain = f.releaseClusters(chain, 1)
	f.table[chain[0]] = layout.Free
	f.dir[slot] = layout.EmptyDirEntry()
	return f.persist()
}

// List returns the names of all files in directory order.
func (f *FS) List() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.dir))
	for _, e := range f.dir {
		if !e.IsFree() {
			names = append(names, e.Name)
		}
	}
	return names
}

// ReadDir returns the FileInfo of every file in directory order.
func (f *FS) ReadDir() ([]FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	infos := make([]FileInfo, 0, len(f.dir))
	for slot, e := range f.dir {
		if e.IsFree() {
			continue
		}
		fi, err := f.stat(slot)
		if err != nil {
			return nil, err
		}
		infos = append(infos, fi)
	}
	return infos, nil
}

// Stat returns the FileInfo of name.
func (f *FS) Stat(name string) (FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	slot, err := f.lookup(name)
	if err != nil {
		return FileInfo{}, err
	}
	return f.stat(slot)
}

func (f *FS) stat(slot int) (FileInfo, error) {
	e := f.dir[slot]
	chain, err := f.walkChain(e.Name, e.FirstCluster)
	if err != nil {
		return FileInfo{}, err
	}
	_, open := f.files[e.Name]
	return FileInfo{
		Name:         e.Name,
		Size:         int64(e.Size),
		FirstCluster: uint32(e.FirstCluster),
		Chain:        chain,
		Open:         open,
	}, nil
}
