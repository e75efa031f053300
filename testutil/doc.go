// Package testutil provides testing utilities for clusterfs.
//
// This package is intended for use in tests and benchmarks only.
// It provides deterministic payload generators so that failures reproduce
// from a seed.
//
// # Payloads
//
//	rng := testutil.NewRNG(seed)
//	data := rng.Bytes(4096)        // arbitrary bytes
//	text := rng.Text(2400)         // printable ASCII words
//	names := rng.Names(10, "f")    // unique 11-byte-safe file names
package testutil
