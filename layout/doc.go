// Package layout defines the on-disk format of a clusterfs volume.
//
// A volume is a sequence of 512-byte blocks grouped into clusters of
// SectorsPerCluster blocks:
//
//	block 0                       superblock (geometry)
//	block 1                       allocation table, one byte per cluster
//	blocks spc .. 2*spc-1         directory table, 32-byte entries (cluster 1)
//	blocks >= 2*spc               file data, addressed through cluster chains
//
// Clusters 0 and 1 are always reserved. All multi-byte integers are little-endian.
//
// The package is pure: it encodes and decodes byte slices and never touches a
// block device.
package layout
