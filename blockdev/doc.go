// Package blockdev provides fixed-size block storage for clusterfs volumes.
//
// A Store exposes 512-byte blocks addressed by index and has an explicit
// open/closed lifecycle: every read and write outside the open window fails
// with ErrNotOpen.
//
// # Implementations
//
//   - FileStore: a backing file, memory mapped read-write on Unix, positional
//     I/O otherwise or when the file lives on a non-OS filesystem (go-billy)
//   - MemoryStore: a byte slice, for tests and scratch volumes
//   - CachingStore: a write-through LRU block cache in front of another Store
//
// # Usage
//
//	store, err := blockdev.Create("volume.img", 25)
//	if err != nil { ... }
//	if err := store.Open(); err != nil { ... }
//	defer store.Close()
//
//	block, err := store.ReadBlock(0)
package blockdev
