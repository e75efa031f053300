// Package fs provides the filesystem abstraction behind file-backed block stores.
//
// The package defines two key interfaces:
//
//   - [File]: an open file with positional read/write, sync and truncate
//   - [FileSystem]: open, remove, rename, stat and directory operations
//
// # Implementations
//
//   - [LocalFS]: the operating system filesystem (fs.Default)
//   - [BillyFS]: any go-billy filesystem, e.g. memfs for in-memory volumes
//   - [FaultyFS]: fault injection wrapper for tests
//
// Only files opened through [LocalFS] are *os.File values and can be memory
// mapped; block stores fall back to ReadAt/WriteAt for everything else.
package fs
