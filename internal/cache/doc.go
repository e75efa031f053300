// Package cache provides an LRU cache for fixed-size device blocks.
//
// Entries are keyed by a namespace (one per block store) and a block index, so
// several stores may share one cache. Memory can be charged against a
// resource.Controller; when the controller refuses, the block is simply not cached.
package cache
