package clusterfs

import (
	"fmt"
	"io"
	"math"
	"time"
)

// File is a handle on one file of an FS. It keeps a cursor and a mirror of
// the file size; both are updated by Write, Truncate and Seek.
//
// Read, Write and Truncate reopen a closed FS for the duration of the call.
type File struct {
	fs     *FS
	name   string
	size   int64
	pos    int64
	closed bool
}

var (
	_ io.ReadWriteSeeker = (*File)(nil)
	_ io.Closer          = (*File)(nil)
)

// Name returns the file name.
func (fl *File) Name() string {
	return fl.name
}

// Size returns the file size in bytes.
func (fl *File) Size() int64 {
	fl.fs.mu.Lock()
	defer fl.fs.mu.Unlock()
	return fl.size
}

// Tell returns the cursor position.
func (fl *File) Tell() int64 {
	fl.fs.mu.Lock()
	defer fl.fs.mu.Unlock()
	return fl.pos
}

// Stat returns the committed size and chain of the file.
func (fl *File) Stat() (FileInfo, error) {
	f := fl.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	if fl.closed {
		return FileInfo{}, ErrFileClosed
	}
	slot, err := f.lookup(fl.name)
	if err != nil {
		return FileInfo{}, err
	}
	return f.stat(slot)
}

// Seek implements io.Seeker. Targets outside [0, size] fail with
// ErrSeekOutOfRange and leave the cursor unchanged.
func (fl *File) Seek(offset int64, whence int) (int64, error) {
	fl.fs.mu.Lock()
	defer fl.fs.mu.Unlock()

	if fl.closed {
		return 0, ErrFileClosed
	}

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = fl.pos + offset
	case io.SeekEnd:
		target = fl.size + offset
	default:
		return fl.pos, fmt.Errorf("clusterfs: invalid whence %d", whence)
	}
	if target < 0 || target > fl.size {
		return fl.pos, fmt.Errorf("%w: %d not in [0, %d]", ErrSeekOutOfRange, target, fl.size)
	}
	fl.pos = target
	return target, nil
}

// Truncate changes the file size to n bytes.
func (fl *File) Truncate(n int64) (err error) {
	f := fl.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	if fl.closed {
		return ErrFileClosed
	}
	release, err := f.transient()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := release(); err == nil {
			err = cerr
		}
	}()
	return f.changeSize(fl, n)
}

// Write implements io.Writer. It writes all of p at the cursor, growing the
// file when the write ends past the current size.
func (fl *File) Write(p []byte) (n int, err error) {
	f := fl.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	if fl.closed {
		return 0, ErrFileClosed
	}

	start := time.Now()
	defer func() {
		f.metrics.RecordWrite(n, time.Since(start), err)
	}()

	if len(p) == 0 {
		return 0, nil
	}
	end := fl.pos + int64(len(p))
	if end > math.MaxInt32 {
		return 0, fmt.Errorf("%w: write ends at %d", ErrInvalidSize, end)
	}

	release, err := f.transient()
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := release(); err == nil {
			err = cerr
		}
	}()

	if end > fl.size {
		if err := f.changeSize(fl, end); err != nil {
			return 0, err
		}
	}

	chain, err := f.chainOf(fl.name)
	if err != nil {
		return 0, err
	}
	if err := f.writeAt(chain, fl.pos, p); err != nil {
		return 0, err
	}
	fl.pos = end
	return len(p), nil
}

// Read implements io.Reader. It returns io.EOF once the cursor is at the end
// of the file.
func (fl *File) Read(p []byte) (n int, err error) {
	f := fl.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	if fl.closed {
		return 0, ErrFileClosed
	}

	start := time.Now()
	defer func() {
		f.metrics.RecordRead(n, time.Since(start), err)
	}()

	if len(p) == 0 {
		return 0, nil
	}
	remaining := fl.size - fl.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	release, err := f.transient()
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := release(); err == nil {
			err = cerr
		}
	}()

	chain, err := f.chainOf(fl.name)
	if err != nil {
		return 0, err
	}
	if err := f.readAt(chain, fl.pos, p); err != nil {
		return 0, err
	}
	fl.pos += int64(len(p))
	return len(p), nil
}

// Close releases the handle. The file can then be opened again.
func (fl *File) Close() error {
	f := fl.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	if fl.closed {
		return ErrFileClosed
	}
	fl.closed = true
	delete(f.files, fl.name)
	return nil
}

func (f *FS) chainOf(name string) ([]uint32, error) {
	slot, err := f.lookup(name)
	if err != nil {
		return nil, err
	}
	return f.entryChain(slot)
}
