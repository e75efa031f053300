package clusterfs

import (
	"fmt"
	"strings"
	"testing"

	"github.com/hupe1980/clusterfs/blockdev"
	"github.com/hupe1980/clusterfs/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	fsys := newTestFS(t, 25)

	require.NoError(t, fsys.Create("a.txt"))

	fi, err := fsys.Stat("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", fi.Name)
	assert.Equal(t, int64(0), fi.Size)
	assert.Equal(t, uint32(2), fi.FirstCluster)
	assert.Equal(t, []uint32{2}, fi.Chain)
	assert.Equal(t, 1, fi.Clusters())
	assert.False(t, fi.Open)
	assert.Equal(t, layout.EndOfChain, fsys.AllocationTable()[2])
}

func TestCreate_Errors(t *testing.T) {
	t.Run("NameTooLong", func(t *testing.T) {
		fsys := newTestFS(t, 25)
		assert.ErrorIs(t, fsys.Create("twelve_bytes"), ErrNameTooLong)
		require.NoError(t, fsys.Create("eleven_byte"))
	})

	t.Run("InvalidName", func(t *testing.T) {
		fsys := newTestFS(t, 25)
		assert.ErrorIs(t, fsys.Create(""), ErrInvalidName)
	})

	t.Run("NameAlreadyExists", func(t *testing.T) {
		fsys := newTestFS(t, 25)
		require.NoError(t, fsys.Create("dup"))
		assert.ErrorIs(t, fsys.Create("dup"), ErrNameAlreadyExists)
		assert.Equal(t, []string{"dup"}, fsys.List())
	})

	t.Run("NoFreeDirectorySlot", func(t *testing.T) {
		fsys := newTestFS(t, 80) // 38 data clusters, 32 slots
		for i := 0; i < 32; i++ {
			require.NoError(t, fsys.Create(fmt.Sprintf("f%d", i)))
		}
		before := fsys.AllocationTable()
		assert.ErrorIs(t, fsys.Create("one_more"), ErrNoFreeDirectorySlot)
		assert.Equal(t, before, fsys.AllocationTable())
	})

	t.Run("NoFreeCluster", func(t *testing.T) {
		fsys := newTestFS(t, 25) // 10 data clusters
		for i := 0; i < 10; i++ {
			require.NoError(t, fsys.Create(fmt.Sprintf("f%d", i)))
		}
		assert.ErrorIs(t, fsys.Create("one_more"), ErrNoFreeCluster)
		assert.Len(t, fsys.List(), 10)
	})

	t.Run("NoFreeClusterBeforeDuplicate", func(t *testing.T) {
		fsys := newTestFS(t, 25)
		for i := 0; i < 10; i++ {
			require.NoError(t, fsys.Create(fmt.Sprintf("f%d", i)))
		}
		assert.ErrorIs(t, fsys.Create("f0"), ErrNoFreeCluster)
	})
}

func TestCreate_PersistsTables(t *testing.T) {
	store := blockdev.NewMemoryStore(25)
	fsys, err := Mount(store)
	require.NoError(t, err)
	require.NoError(t, fsys.Create("a"))

	block1, err := store.ReadBlock(1)
	require.NoError(t, err)
	assert.Equal(t, byte(0xFF), block1[2])

	dir, err := store.ReadBlock(2)
	require.NoError(t, err)
	e, err := layout.DecodeDirEntry(dir)
	require.NoError(t, err)
	assert.Equal(t, layout.DirEntry{Name: "a", FirstCluster: 2, Size: 0, Type: layout.TypeFile}, e)
}

func TestOpenFile(t *testing.T) {
	fsys := newTestFS(t, 25)

	f, err := fsys.OpenFile("new")
	require.NoError(t, err)
	assert.Equal(t, "new", f.Name())
	assert.Equal(t, []string{"new"}, fsys.List())

	_, err = fsys.OpenFile("new")
	assert.ErrorIs(t, err, ErrFileAlreadyOpen)

	fi, err := fsys.Stat("new")
	require.NoError(t, err)
	assert.True(t, fi.Open)

	require.NoError(t, f.Truncate(77))
	require.NoError(t, f.Close())

	f, err = fsys.OpenFile("new")
	require.NoError(t, err)
	assert.Equal(t, int64(77), f.Size())
	assert.Equal(t, int64(0), f.Tell())

	_, err = fsys.OpenFile(strings.Repeat("x", 12))
	assert.ErrorIs(t, err, ErrNameTooLong)
}

func TestRemove(t *testing.T) {
	fsys := newTestFS(t, 25)
	free := fsys.Usage().FreeClusters

	f, err := fsys.OpenFile("gone")
	require.NoError(t, err)
	require.NoError(t, f.Truncate(3000))

	assert.ErrorIs(t, fsys.Remove("gone"), ErrFileAlreadyOpen)
	require.NoError(t, f.Close())

	assert.ErrorIs(t, fsys.Remove("missing"), ErrFileNotFound)
	require.NoError(t, fsys.Remove("gone"))

	assert.Empty(t, fsys.List())
	assert.Equal(t, free, fsys.Usage().FreeClusters)
	_, err = fsys.Stat("gone")
	assert.ErrorIs(t, err, ErrFileNotFound)

	// The slot and clusters are reusable.
	require.NoError(t, fsys.Create("gone"))
	fi, err := fsys.Stat("gone")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), fi.FirstCluster)
}

func TestList_SkipsEmptySlots(t *testing.T) {
	fsys := newTestFS(t, 25)
	for _, name := range []string{"a", "b", "c", "d"} {
		require.NoError(t, fsys.Create(name))
	}
	require.NoError(t, fsys.Remove("b"))
	assert.Equal(t, []string{"a", "c", "d"}, fsys.List())

	// The lowest free slot is reused, so directory order is slot order.
	require.NoError(t, fsys.Create("e"))
	assert.Equal(t, []string{"a", "e", "c", "d"}, fsys.List())

	infos, err := fsys.ReadDir()
	require.NoError(t, err)
	require.Len(t, infos, 4)
	assert.Equal(t, "e", infos[1].Name)
}
