package clusterfs

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/hupe1980/clusterfs/blockdev"
	"github.com/hupe1980/clusterfs/layout"
	"github.com/hupe1980/clusterfs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linkOrphans writes a chain over clusters that no directory entry owns.
func linkOrphans(t *testing.T, fsys *FS, clusters ...uint32) {
	t.Helper()
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	for i, c := range clusters {
		if i == len(clusters)-1 {
			fsys.table[c] = layout.EndOfChain
		} else {
			fsys.table[c] = layout.Next(clusters[i+1])
		}
	}
	require.NoError(t, fsys.persist())
}

func TestDefragment_Scenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drive.img")
	store, err := blockdev.Create(path, 25)
	require.NoError(t, err)

	fsys, err := Mount(store)
	require.NoError(t, err)
	require.True(t, fsys.Formatted())

	f, err := fsys.OpenFile("my_file.txt")
	require.NoError(t, err)
	require.NoError(t, f.Truncate(100))

	text := testutil.NewRNG(25).Text(2400)
	_, err = f.Write(text)
	require.NoError(t, err)

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	head := make([]byte, 500)
	_, err = io.ReadFull(f, head)
	require.NoError(t, err)
	assert.Equal(t, text[:500], head)

	fi, err := f.Stat()
	require.NoError(t, err)
	require.Equal(t, []uint32{2, 3, 4}, fi.Chain)

	linkOrphans(t, fsys, 6, 7, 8, 9)

	freed, err := fsys.Defragment()
	require.NoError(t, err)
	assert.Equal(t, 4, freed)

	table := fsys.AllocationTable()
	for c := 6; c <= 9; c++ {
		assert.Equal(t, layout.Free, table[c], "cluster %d", c)
	}
	assert.Equal(t, layout.Next(3), table[2])
	assert.Equal(t, layout.Next(4), table[3])
	assert.Equal(t, layout.EndOfChain, table[4])

	require.NoError(t, f.Close())
	require.NoError(t, fsys.Close())

	// The reclaimed table is on disk.
	fsys, err = Mount(blockdev.New(path))
	require.NoError(t, err)
	defer fsys.Close()
	assert.Equal(t, table, fsys.AllocationTable())

	f, err = fsys.OpenFile("my_file.txt")
	require.NoError(t, err)
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestDefragment_Idempotent(t *testing.T) {
	fsys := newTestFS(t, 40)
	f := openTestFile(t, fsys, "a")
	require.NoError(t, f.Truncate(3000))
	require.NoError(t, fsys.Create("b"))

	linkOrphans(t, fsys, 10, 12)

	freed, err := fsys.Defragment()
	require.NoError(t, err)
	assert.Equal(t, 2, freed)

	after := fsys.AllocationTable()
	freed, err = fsys.Defragment()
	require.NoError(t, err)
	assert.Equal(t, 0, freed)
	assert.Equal(t, after, fsys.AllocationTable())
}

func TestDefragment_KeepsReachableClusters(t *testing.T) {
	fsys := newTestFS(t, 40)
	for _, name := range []string{"a", "b", "c"} {
		f := openTestFile(t, fsys, name)
		require.NoError(t, f.Truncate(2500))
		require.NoError(t, f.Close())
	}
	// Leave an empty slot between used ones.
	require.NoError(t, fsys.Remove("b"))
	before := fsys.AllocationTable()

	freed, err := fsys.Defragment()
	require.NoError(t, err)
	assert.Equal(t, 0, freed)
	assert.Equal(t, before, fsys.AllocationTable())

	fi, err := fsys.Stat("c")
	require.NoError(t, err)
	assert.Equal(t, 3, fi.Clusters())
}

func TestDefragment_CorruptChain(t *testing.T) {
	fsys := newTestFS(t, 25)
	f := openTestFile(t, fsys, "a")
	require.NoError(t, f.Truncate(2048))
	linkOrphans(t, fsys, 8)

	// Make cluster 3 point back at 2.
	fsys.mu.Lock()
	fsys.table[3] = layout.Next(2)
	fsys.mu.Unlock()

	before := fsys.AllocationTable()
	_, err := fsys.Defragment()

	var cc *ErrCorruptChain
	require.True(t, errors.As(err, &cc))
	assert.Equal(t, "a", cc.File)
	assert.Equal(t, "cycle", cc.Reason)
	assert.Equal(t, before, fsys.AllocationTable())
}

func TestWalkChain_Corruption(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(table layout.Table)
		first  int32
		reason string
	}{
		{"FreeSuccessor", func(tb layout.Table) { tb[2] = layout.Next(5) }, 2, "free cluster in chain"},
		{"ReservedSuccessor", func(tb layout.Table) { tb[2] = layout.Next(1) }, 2, "link to cluster 1 out of range"},
		{"OutOfRange", func(tb layout.Table) { tb[2] = layout.Next(200) }, 2, "link to cluster 200 out of range"},
		{"SelfLoop", func(tb layout.Table) { tb[2] = layout.Next(2) }, 2, "cycle"},
		{"BadFirst", func(layout.Table) {}, 1, "first cluster out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := newTestFS(t, 25)
			require.NoError(t, fsys.Create("a"))
			tt.mutate(fsys.table)

			_, err := fsys.walkChain("a", tt.first)
			var cc *ErrCorruptChain
			require.True(t, errors.As(err, &cc), "got %v", err)
			assert.Equal(t, tt.reason, cc.Reason)
			assert.Contains(t, err.Error(), `"a"`)
		})
	}
}
