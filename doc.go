// Package clusterfs implements a small FAT-style filesystem on a block device.
//
// A volume is a flat array of 512-byte blocks grouped into clusters of two
// blocks. Cluster 0 holds the superblock (block 0) and the allocation table
// (block 1), cluster 1 holds the directory table, and every other cluster
// belongs to at most one file chain.
//
// # Quick Start
//
//	store, _ := blockdev.Create("./volume.img", 64)
//	fsys, _ := clusterfs.Mount(store)  // formats an all-zero volume
//	defer fsys.Close()
//
//	f, _ := fsys.OpenFile("notes.txt") // created if absent
//	_, _ = f.Write([]byte("hello"))
//	_, _ = f.Seek(0, io.SeekStart)
//	buf, _ := io.ReadAll(f)
//	_ = f.Close()
//
// # Layout
//
// The allocation table stores one byte per cluster: 0x00 free, 0xFE
// reserved, 0xFF end of chain, anything else the next cluster. A volume
// therefore addresses at most 254 clusters. Directory slots are 32 bytes,
// which gives 32 files per volume.
//
// # Maintenance
//
// Defragment frees clusters that are allocated but unreachable from any
// directory entry. Check reports cross-linked, broken and orphaned chains
// without changing anything.
//
// The image subpackage snapshots a volume to a blob store (local, S3 or
// MinIO) and restores it.
package clusterfs
