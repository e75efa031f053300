package blockdev

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/hupe1980/clusterfs/internal/fs"
	"github.com/hupe1980/clusterfs/internal/mmap"
)

// Options configures a FileStore.
type Options struct {
	// FileSystem holds the backing file. Defaults to the local filesystem.
	FileSystem fs.FileSystem
	// DisableMmap forces positional file I/O even where mapping is available.
	DisableMmap bool
	// Perm is the permission used when the backing file is created.
	Perm os.FileMode
	// Logger receives debug output. Defaults to a discarding logger.
	Logger *slog.Logger
}

func applyOptions(optFns []func(o *Options)) Options {
	o := Options{
		FileSystem: fs.Default,
		Perm:       0o644,
	}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.FileSystem == nil {
		o.FileSystem = fs.Default
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// WithFileSystem sets the filesystem holding the backing file.
func WithFileSystem(fsys fs.FileSystem) func(o *Options) {
	return func(o *Options) { o.FileSystem = fsys }
}

// WithoutMmap disables memory mapping.
func WithoutMmap() func(o *Options) {
	return func(o *Options) { o.DisableMmap = true }
}

// WithLogger sets the debug logger.
func WithLogger(l *slog.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// FileStore is a Store backed by a file.
type FileStore struct {
	mu      sync.RWMutex
	path    string
	opts    Options
	file    fs.File
	mapping *mmap.Mapping
	blocks  int
	open    bool
}

// Create binds a FileStore to path, first creating the file with the given
// size in blocks if it does not exist. An existing file is left untouched.
func Create(path string, blocks int, optFns ...func(o *Options)) (*FileStore, error) {
	if blocks <= 0 {
		return nil, fmt.Errorf("%w: %d blocks", ErrInvalidSize, blocks)
	}
	s := New(path, optFns...)

	_, err := s.opts.FileSystem.Stat(path)
	switch {
	case err == nil:
		return s, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	f, err := s.opts.FileSystem.OpenFile(path, os.O_CREATE|os.O_RDWR, s.opts.Perm)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(blocks) * BlockSize); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return s, nil
}

// New binds a FileStore to path without creating anything.
func New(path string, optFns ...func(o *Options)) *FileStore {
	return &FileStore{path: path, opts: applyOptions(optFns)}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Mapped reports whether the open store is memory mapped.
func (s *FileStore) Mapped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mapping != nil
}

// Open implements Store. A missing or empty backing file leaves the store closed.
func (s *FileStore) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return nil
	}

	info, err := s.opts.FileSystem.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.opts.Logger.Debug("backing file missing, store stays closed", "path", s.path)
			return nil
		}
		return err
	}
	blocks := int(info.Size() / BlockSize)
	if blocks == 0 {
		s.opts.Logger.Debug("backing file empty, store stays closed", "path", s.path)
		return nil
	}

	f, err := s.opts.FileSystem.OpenFile(s.path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	s.file = f
	s.blocks = blocks
	s.mapLocked()
	s.open = true
	return nil
}

// mapLocked maps the backing file if possible. Failure is not an error: the
// store then uses positional I/O.
func (s *FileStore) mapLocked() {
	if s.opts.DisableMmap || !mmap.Supported() {
		return
	}
	osf, ok := fs.OSFile(s.file)
	if !ok {
		return
	}
	m, err := mmap.Map(osf, s.blocks*BlockSize, true)
	if err != nil {
		s.opts.Logger.Debug("mmap failed, using file I/O", "path", s.path, "error", err)
		return
	}
	_ = m.Advise(mmap.AccessRandom)
	s.mapping = m
}

func (s *FileStore) unmapLocked() error {
	if s.mapping == nil {
		return nil
	}
	err := s.mapping.Flush()
	if cerr := s.mapping.Close(); err == nil {
		err = cerr
	}
	s.mapping = nil
	return err
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}
	s.open = false

	err := s.unmapLocked()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	s.file = nil
	return err
}

// IsOpen implements Store.
func (s *FileStore) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

// Size implements Store. For a closed store it reports the backing file size.
func (s *FileStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.open {
		return s.blocks
	}
	info, err := s.opts.FileSystem.Stat(s.path)
	if err != nil {
		return 0
	}
	return int(info.Size() / BlockSize)
}

// ReadBlock implements Store.
func (s *FileStore) ReadBlock(id int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := checkRead(s.open, id, s.blocks); err != nil {
		return nil, err
	}

	b := make([]byte, BlockSize)
	off := int64(id) * BlockSize
	if s.mapping != nil {
		copy(b, s.mapping.Bytes()[off:])
		return b, nil
	}
	if _, err := s.file.ReadAt(b, off); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return b, nil
}

// WriteBlock implements Store.
func (s *FileStore) WriteBlock(id int, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkWrite(s.open, id, s.blocks, p); err != nil {
		return err
	}

	off := int64(id) * BlockSize
	if s.mapping != nil {
		copy(s.mapping.Bytes()[off:], p)
		return nil
	}
	_, err := s.file.WriteAt(p, off)
	return err
}

// Sync implements Store.
func (s *FileStore) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return ErrNotOpen
	}
	if s.mapping != nil {
		return s.mapping.Flush()
	}
	return s.file.Sync()
}

// SetSize implements Resizer. An open store is remapped to the new size.
func (s *FileStore) SetSize(blocks int) error {
	if blocks <= 0 {
		return fmt.Errorf("%w: %d blocks", ErrInvalidSize, blocks)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	size := int64(blocks) * BlockSize
	if !s.open {
		f, err := s.opts.FileSystem.OpenFile(s.path, os.O_CREATE|os.O_RDWR, s.opts.Perm)
		if err != nil {
			return err
		}
		if err := f.Truncate(size); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}

	if err := s.unmapLocked(); err != nil {
		return err
	}
	if err := s.file.Truncate(size); err != nil {
		s.mapLocked()
		return err
	}
	s.blocks = blocks
	s.mapLocked()
	return nil
}
