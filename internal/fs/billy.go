package fs

import (
	"fmt"
	iofs "io/fs"
	"os"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
)

// BillyFS adapts a go-billy filesystem to FileSystem.
type BillyFS struct {
	fs billy.Filesystem
}

// NewBillyFS wraps bfs.
func NewBillyFS(bfs billy.Filesystem) *BillyFS {
	return &BillyFS{fs: bfs}
}

// NewMemFS returns an empty in-memory filesystem.
func NewMemFS() *BillyFS {
	return NewBillyFS(memfs.New())
}

// NewOSFS returns a billy filesystem rooted at dir on the local disk.
func NewOSFS(dir string) *BillyFS {
	return NewBillyFS(osfs.New(dir))
}

// OpenFile implements FileSystem.
func (b *BillyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	f, err := b.fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, fmt.Errorf("billy: open %q: %w", name, err)
	}
	return &billyFile{File: f, fs: b.fs}, nil
}

// Remove implements FileSystem.
func (b *BillyFS) Remove(name string) error { return b.fs.Remove(name) }

// Rename implements FileSystem.
func (b *BillyFS) Rename(oldpath, newpath string) error { return b.fs.Rename(oldpath, newpath) }

// Stat implements FileSystem.
func (b *BillyFS) Stat(name string) (os.FileInfo, error) { return b.fs.Stat(name) }

// MkdirAll implements FileSystem.
func (b *BillyFS) MkdirAll(path string, perm os.FileMode) error { return b.fs.MkdirAll(path, perm) }

// ReadDir implements FileSystem.
func (b *BillyFS) ReadDir(name string) ([]os.DirEntry, error) {
	infos, err := b.fs.ReadDir(name)
	if err != nil {
		return nil, err
	}
	entries := make([]os.DirEntry, len(infos))
	for i, fi := range infos {
		entries[i] = iofs.FileInfoToDirEntry(fi)
	}
	return entries, nil
}

// billyFile adds the positional write, sync and stat methods billy files lack.
type billyFile struct {
	billy.File
	fs billy.Filesystem
	mu sync.Mutex
}

// WriteAt emulates pwrite with seek+write and restores the file offset.
func (f *billyFile) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cur, err := f.File.Seek(0, 1)
	if err != nil {
		return 0, err
	}
	if _, err := f.File.Seek(off, 0); err != nil {
		return 0, err
	}
	n, err := f.File.Write(p)
	if _, serr := f.File.Seek(cur, 0); serr != nil && err == nil {
		err = serr
	}
	return n, err
}

func (f *billyFile) Sync() error {
	if s, ok := f.File.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

func (f *billyFile) Stat() (os.FileInfo, error) {
	return f.fs.Stat(f.File.Name())
}
