// Package resource implements a controller for shared memory, concurrency and IO limits.
//
// The controller governs three resource types:
//
//   - Memory: a fail-fast byte budget, charged by block caches
//   - Concurrency: a cap on background workers, used by image export and restore
//   - IO: a token bucket in bytes per second, used to throttle snapshot transfers
//
// # Usage
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:     64 << 20,
//	    MaxBackgroundWorkers: 4,
//	    IOLimitBytesPerSec:   50 << 20,
//	})
//
//	if err := rc.AcquireIO(ctx, len(chunk)); err != nil {
//	    return err
//	}
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully: they become no-ops that
// always succeed, so limits stay optional without nil checks at call sites.
package resource
