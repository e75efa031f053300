// Package mmap provides memory-mapped file access.
//
// Two kinds of mappings are supported:
//
//	m, err := mmap.Open("image.blob")        // read-only, owns nothing but the mapping
//	m, err := mmap.Map(f, size, true)        // read-write shared mapping of an open file
//
// Writes through a shared mapping reach the page cache immediately and are
// forced to disk with Flush (msync).
//
// # Platform Support
//
// Mapping is implemented with mmap(2) on Unix systems. On other platforms Map
// and Open return ErrUnsupported and callers fall back to positional file I/O.
//
// # Thread Safety
//
// Close is idempotent and guarded by an atomic flag. Callers must not touch
// the slice returned by Bytes after Close returns.
package mmap
