package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSuperblock(t *testing.T) {
	tests := []struct {
		name    string
		blocks  int
		total   int32
		wantErr error
	}{
		{name: "TwentyFiveBlocks", blocks: 25, total: 12},
		{name: "Smallest", blocks: 6, total: 3},
		{name: "TooSmall", blocks: 5, wantErr: ErrVolumeTooSmall},
		{name: "Empty", blocks: 0, wantErr: ErrVolumeTooSmall},
		{name: "Clamped", blocks: 4096, total: MaxClusters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sb, err := NewSuperblock(tt.blocks)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint16(512), sb.BytesPerSector)
			assert.Equal(t, uint8(2), sb.SectorsPerCluster)
			assert.Equal(t, uint16(2), sb.ReservedSectorCount)
			assert.Equal(t, tt.total, sb.TotalSectorCount)
			require.NoError(t, sb.Validate())
		})
	}
}

func TestSuperblock_EncodeDecode(t *testing.T) {
	geometries := []Superblock{
		{BytesPerSector: 512, SectorsPerCluster: 2, ReservedSectorCount: 2, TotalSectorCount: 12},
		{BytesPerSector: 512, SectorsPerCluster: 4, ReservedSectorCount: 2, TotalSectorCount: 254},
		{BytesPerSector: 512, SectorsPerCluster: 2, ReservedSectorCount: 7, TotalSectorCount: 3},
	}

	for _, sb := range geometries {
		b := make([]byte, BlockSize)
		require.NoError(t, sb.Encode(b))

		got, err := DecodeSuperblock(b)
		require.NoError(t, err)
		assert.Equal(t, sb, got)
	}
}

func TestSuperblock_ByteOffsets(t *testing.T) {
	sb := Superblock{BytesPerSector: 512, SectorsPerCluster: 2, ReservedSectorCount: 2, TotalSectorCount: 12}
	b := make([]byte, BlockSize)
	require.NoError(t, sb.Encode(b))

	assert.Equal(t, []byte{0x00, 0x02}, b[11:13])
	assert.Equal(t, byte(2), b[13])
	assert.Equal(t, []byte{0x02, 0x00}, b[14:16])
	assert.Equal(t, []byte{12, 0, 0, 0}, b[32:36])
	assert.False(t, IsZero(b))
}

func TestSuperblock_ShortBuffer(t *testing.T) {
	sb := Superblock{}
	assert.ErrorIs(t, sb.Encode(make([]byte, 10)), ErrShortBuffer)

	_, err := DecodeSuperblock(make([]byte, 10))
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestSuperblock_Validate(t *testing.T) {
	valid := Superblock{BytesPerSector: 512, SectorsPerCluster: 2, ReservedSectorCount: 2, TotalSectorCount: 12}
	require.NoError(t, valid.Validate())

	bad := []Superblock{
		{BytesPerSector: 4096, SectorsPerCluster: 2, TotalSectorCount: 12},
		{BytesPerSector: 512, SectorsPerCluster: 1, TotalSectorCount: 12},
		{BytesPerSector: 512, SectorsPerCluster: 4, TotalSectorCount: 12},
		{BytesPerSector: 512, SectorsPerCluster: 2, TotalSectorCount: 2},
		{BytesPerSector: 512, SectorsPerCluster: 2, TotalSectorCount: 255},
	}
	for _, sb := range bad {
		assert.ErrorIs(t, sb.Validate(), ErrInvalidSuperblock, "%+v", sb)
	}
}

func TestSuperblock_Geometry(t *testing.T) {
	sb, err := NewSuperblock(25)
	require.NoError(t, err)

	assert.Equal(t, 1024, sb.ClusterSize())
	assert.Equal(t, 12, sb.ClusterCount())
	assert.Equal(t, 32, sb.DirEntryCount())
	assert.Equal(t, 4, sb.FirstBlock(2))
	assert.Equal(t, 24, sb.RequiredBlocks())

	first, end := sb.DirectoryBlocks()
	assert.Equal(t, 2, first)
	assert.Equal(t, 4, end)

	assert.Equal(t, 1, sb.ClustersFor(0))
	assert.Equal(t, 1, sb.ClustersFor(100))
	assert.Equal(t, 1, sb.ClustersFor(1024))
	assert.Equal(t, 2, sb.ClustersFor(1025))
}
