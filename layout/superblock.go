package layout

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// BlockSize is the fixed size of a block in bytes.
const BlockSize = 512

const (
	// DefaultBytesPerSector is the sector size written by NewSuperblock.
	DefaultBytesPerSector = BlockSize
	// DefaultSectorsPerCluster is the cluster size in blocks written by NewSuperblock.
	DefaultSectorsPerCluster = 2
	// DefaultReservedSectors is the reserved sector count written by NewSuperblock.
	DefaultReservedSectors = 2

	// MinClusters is the smallest usable volume: two reserved clusters and one data cluster.
	MinClusters = 3
	// MaxClusters is the number of clusters a one-byte allocation entry can address.
	MaxClusters = maxNext + 1

	// SuperblockBlock is the block index of the superblock.
	SuperblockBlock = 0
	// TableBlock is the block index of the allocation table.
	TableBlock = 1
	// FirstDataCluster is the lowest cluster a file may own.
	FirstDataCluster = 2
)

// Byte offsets of the superblock fields inside block 0.
const (
	offBytesPerSector    = 11
	offSectorsPerCluster = 13
	offReservedSectors   = 14
	offTotalSectors      = 32
)

var (
	// ErrVolumeTooSmall is returned when the backing store cannot hold the geometry.
	ErrVolumeTooSmall = errors.New("volume too small")
	// ErrInvalidSuperblock is returned when block 0 does not describe a usable volume.
	ErrInvalidSuperblock = errors.New("invalid superblock")
	// ErrShortBuffer is returned when a buffer cannot hold the encoded structure.
	ErrShortBuffer = errors.New("buffer too short")
)

// Superblock holds the volume geometry stored in block 0.
type Superblock struct {
	BytesPerSector      uint16 `json:"bytes_per_sector"`
	SectorsPerCluster   uint8  `json:"sectors_per_cluster"`
	ReservedSectorCount uint16 `json:"reserved_sector_count"`
	TotalSectorCount    int32  `json:"total_sector_count"`
}

// NewSuperblock computes the geometry for a store of the given size in blocks.
//
// TotalSectorCount is the number of clusters. It is clamped to MaxClusters.
func NewSuperblock(blocks int) (Superblock, error) {
	sb := Superblock{
		BytesPerSector:      DefaultBytesPerSector,
		SectorsPerCluster:   DefaultSectorsPerCluster,
		ReservedSectorCount: DefaultReservedSectors,
	}

	total := blocks / int(sb.SectorsPerCluster) * BlockSize / int(sb.BytesPerSector)
	if blocks*BlockSize < int(sb.BytesPerSector)*int(sb.SectorsPerCluster)*total || total < MinClusters {
		return Superblock{}, fmt.Errorf("%w: %d blocks, need at least %d", ErrVolumeTooSmall, blocks, MinClusters*int(sb.SectorsPerCluster))
	}
	if total > MaxClusters {
		total = MaxClusters
	}
	sb.TotalSectorCount = int32(total)

	return sb, nil
}

// Encode writes the superblock fields into b, which must hold at least one block.
// Bytes outside the field offsets are left untouched.
func (sb Superblock) Encode(b []byte) error {
	if len(b) < BlockSize {
		return ErrShortBuffer
	}
	binary.LittleEndian.PutUint16(b[offBytesPerSector:], sb.BytesPerSector)
	b[offSectorsPerCluster] = sb.SectorsPerCluster
	binary.LittleEndian.PutUint16(b[offReservedSectors:], sb.ReservedSectorCount)
	binary.LittleEndian.PutUint32(b[offTotalSectors:], uint32(sb.TotalSectorCount))
	return nil
}

// DecodeSuperblock reads the superblock fields from block 0.
func DecodeSuperblock(b []byte) (Superblock, error) {
	if len(b) < BlockSize {
		return Superblock{}, ErrShortBuffer
	}
	return Superblock{
		BytesPerSector:      binary.LittleEndian.Uint16(b[offBytesPerSector:]),
		SectorsPerCluster:   b[offSectorsPerCluster],
		ReservedSectorCount: binary.LittleEndian.Uint16(b[offReservedSectors:]),
		TotalSectorCount:    int32(binary.LittleEndian.Uint32(b[offTotalSectors:])),
	}, nil
}

// Validate checks that the geometry is one this package can lay out.
func (sb Superblock) Validate() error {
	switch {
	case sb.BytesPerSector != BlockSize:
		return fmt.Errorf("%w: bytes per sector %d", ErrInvalidSuperblock, sb.BytesPerSector)
	case sb.SectorsPerCluster != DefaultSectorsPerCluster:
		// Block 1 holds the table, so the directory at blocks [2, 2*spc) is
		// exactly cluster 1 only for two sectors per cluster.
		return fmt.Errorf("%w: sectors per cluster %d", ErrInvalidSuperblock, sb.SectorsPerCluster)
	case sb.TotalSectorCount < MinClusters || sb.TotalSectorCount > MaxClusters:
		return fmt.Errorf("%w: total sector count %d", ErrInvalidSuperblock, sb.TotalSectorCount)
	}
	return nil
}

// ClusterSize returns the size of a cluster in bytes.
func (sb Superblock) ClusterSize() int {
	return int(sb.BytesPerSector) * int(sb.SectorsPerCluster)
}

// ClusterCount returns the number of allocation table entries.
func (sb Superblock) ClusterCount() int {
	return int(sb.TotalSectorCount)
}

// DirEntryCount returns the number of directory slots.
func (sb Superblock) DirEntryCount() int {
	return sb.ClusterSize() / DirEntrySize
}

// FirstBlock returns the first block index of cluster c.
func (sb Superblock) FirstBlock(c uint32) int {
	return int(c) * int(sb.SectorsPerCluster)
}

// DirectoryBlocks returns the half-open block range holding the directory table.
func (sb Superblock) DirectoryBlocks() (first, end int) {
	return TableBlock + 1, 2 * int(sb.SectorsPerCluster)
}

// RequiredBlocks returns the number of blocks the clusters of this geometry span.
func (sb Superblock) RequiredBlocks() int {
	return sb.ClusterCount() * int(sb.SectorsPerCluster)
}

// ClustersFor returns how many clusters a file of size bytes occupies.
// Every file owns at least one cluster.
func (sb Superblock) ClustersFor(size int64) int {
	cs := int64(sb.ClusterSize())
	n := int((size + cs - 1) / cs)
	if n < 1 {
		n = 1
	}
	return n
}

// IsZero reports whether every byte of b is zero.
// An all-zero block 0 marks an unformatted volume.
func IsZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
