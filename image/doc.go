// Package image exports block stores to blob stores and restores them.
//
// An image is a directory of blobs below a name:
//
//	<name>/chunks/000000   compressed chunk of ChunkBlocks blocks
//	<name>/chunks/000001
//	<name>/manifest.json   geometry, compression and per-chunk CRC32C
//
// Chunks are written first. The manifest is written last and is the commit
// point: an image without a manifest does not exist. Chunks that only hold
// zero bytes are recorded in the manifest and never uploaded.
//
// Snapshot and RestoreLatest combine images with a Catalog, which hands out
// monotonically increasing versions per volume.
package image
