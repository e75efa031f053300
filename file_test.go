package clusterfs

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/hupe1980/clusterfs/blockdev"
	"github.com/hupe1980/clusterfs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestFile(t *testing.T, fsys *FS, name string) *File {
	t.Helper()
	f, err := fsys.OpenFile(name)
	require.NoError(t, err)
	return f
}

func TestFile_WriteRead(t *testing.T) {
	rng := testutil.NewRNG(4711)

	tests := []struct {
		name string
		size int
	}{
		{"Empty", 0},
		{"Small", 17},
		{"OneBlock", BlockSize},
		{"OneCluster", 2 * BlockSize},
		{"Unaligned", 3*BlockSize + 123},
		{"ManyClusters", 9*BlockSize + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := newTestFS(t, 40)
			f := openTestFile(t, fsys, "data")
			payload := rng.Bytes(tt.size)

			n, err := f.Write(payload)
			require.NoError(t, err)
			assert.Equal(t, tt.size, n)
			assert.Equal(t, int64(tt.size), f.Size())
			assert.Equal(t, int64(tt.size), f.Tell())

			_, err = f.Seek(0, io.SeekStart)
			require.NoError(t, err)
			got, err := io.ReadAll(f)
			require.NoError(t, err)
			assert.Equal(t, payload, got)

			fi, err := f.Stat()
			require.NoError(t, err)
			assert.Equal(t, fsys.Superblock().ClustersFor(int64(tt.size)), fi.Clusters())
		})
	}
}

func TestFile_OverwriteInPlace(t *testing.T) {
	fsys := newTestFS(t, 25)
	f := openTestFile(t, fsys, "f")

	_, err := f.Write(bytes.Repeat([]byte("a"), 2000))
	require.NoError(t, err)

	_, err = f.Seek(700, io.SeekStart)
	require.NoError(t, err)
	_, err = f.Write(bytes.Repeat([]byte("b"), 400))
	require.NoError(t, err)
	assert.Equal(t, int64(2000), f.Size())
	assert.Equal(t, int64(1100), f.Tell())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	got, err := io.ReadAll(f)
	require.NoError(t, err)

	want := bytes.Repeat([]byte("a"), 2000)
	copy(want[700:], bytes.Repeat([]byte("b"), 400))
	assert.Equal(t, want, got)
}

func TestFile_WriteExtendsFromCursor(t *testing.T) {
	fsys := newTestFS(t, 25)
	f := openTestFile(t, fsys, "f")

	_, err := f.Write([]byte("0123456789"))
	require.NoError(t, err)
	_, err = f.Seek(-4, io.SeekEnd)
	require.NoError(t, err)
	_, err = f.Write([]byte("abcdefgh"))
	require.NoError(t, err)
	assert.Equal(t, int64(14), f.Size())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "012345abcdefgh", string(got))
}

func TestFile_ReadFollowsChain(t *testing.T) {
	fsys := newTestFS(t, 25)

	a := openTestFile(t, fsys, "a")
	require.NoError(t, fsys.Create("b")) // takes cluster 3, so a continues at 4

	payload := testutil.NewRNG(1).Bytes(1500)
	_, err := a.Write(payload)
	require.NoError(t, err)

	fi, err := a.Stat()
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 4}, fi.Chain)

	_, err = a.Seek(0, io.SeekStart)
	require.NoError(t, err)
	got, err := io.ReadAll(a)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// b is untouched.
	b := openTestFile(t, fsys, "b")
	n, err := b.Read(make([]byte, 10))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFile_ReadAtEOF(t *testing.T) {
	fsys := newTestFS(t, 25)
	f := openTestFile(t, fsys, "f")

	_, err := f.Write([]byte("abc"))
	require.NoError(t, err)

	n, err := f.Read(make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)

	_, err = f.Seek(1, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, 10)
	n, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "bc", string(buf[:n]))
	assert.Equal(t, int64(3), f.Tell())

	n, err = f.Read(nil)
	assert.Equal(t, 0, n)
	assert.NoError(t, err)
}

func TestFile_Seek(t *testing.T) {
	fsys := newTestFS(t, 25)
	f := openTestFile(t, fsys, "f")
	require.NoError(t, f.Truncate(100))

	tests := []struct {
		name    string
		offset  int64
		whence  int
		want    int64
		wantErr bool
	}{
		{"Start", 10, io.SeekStart, 10, false},
		{"Current", 5, io.SeekCurrent, 15, false},
		{"End", -20, io.SeekEnd, 80, false},
		{"AtSize", 100, io.SeekStart, 100, false},
		{"PastSize", 101, io.SeekStart, 100, true},
		{"Negative", -1, io.SeekStart, 100, true},
		{"PastEnd", 1, io.SeekEnd, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, err := f.Seek(tt.offset, tt.whence)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSeekOutOfRange)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, pos)
			assert.Equal(t, tt.want, f.Tell())
		})
	}

	_, err := f.Seek(0, 42)
	assert.Error(t, err)
}

func TestFile_Truncate(t *testing.T) {
	fsys := newTestFS(t, 25)
	f := openTestFile(t, fsys, "f")

	require.NoError(t, f.Truncate(3000))
	fi, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(3000), fi.Size)
	assert.Equal(t, 3, fi.Clusters())

	_, err = f.Seek(2500, io.SeekStart)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(1000))
	assert.Equal(t, int64(1000), f.Tell(), "cursor clamps to new size")

	fi, err = f.Stat()
	require.NoError(t, err)
	assert.Equal(t, 1, fi.Clusters())

	require.NoError(t, f.Truncate(0))
	fi, err = f.Stat()
	require.NoError(t, err)
	assert.Equal(t, 1, fi.Clusters(), "a file keeps one cluster")
	assert.Equal(t, int64(0), f.Tell())

	assert.ErrorIs(t, f.Truncate(-1), ErrInvalidSize)
	assert.ErrorIs(t, f.Truncate(1<<31), ErrInvalidSize)
}

func TestFile_TruncateNoFreeClusterLeavesTableUntouched(t *testing.T) {
	fsys := newTestFS(t, 25)
	f := openTestFile(t, fsys, "f")
	require.NoError(t, f.Truncate(4096))

	before := fsys.AllocationTable()
	err := f.Truncate(20 * 1024)
	assert.ErrorIs(t, err, ErrNoFreeCluster)
	assert.Equal(t, before, fsys.AllocationTable())
	assert.Equal(t, int64(4096), f.Size())

	_, err = f.Seek(4096, io.SeekStart)
	require.NoError(t, err)
	_, err = f.Write(make([]byte, 20*1024))
	assert.ErrorIs(t, err, ErrNoFreeCluster)
	assert.Equal(t, int64(4096), f.Tell())
}

func TestFile_GrowReadsZeros(t *testing.T) {
	fsys := newTestFS(t, 25)
	f := openTestFile(t, fsys, "f")

	_, err := f.Write(bytes.Repeat([]byte{'x'}, 100))
	require.NoError(t, err)
	require.NoError(t, f.Truncate(10))
	require.NoError(t, f.Truncate(1500))

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Len(t, got, 1500)
	assert.Equal(t, bytes.Repeat([]byte{'x'}, 10), got[:10])
	assert.Equal(t, make([]byte, 1490), got[10:])
}

func TestFile_TransientOpen(t *testing.T) {
	fsys := newTestFS(t, 25)
	f := openTestFile(t, fsys, "f")
	require.NoError(t, fsys.Close())

	_, err := f.Write([]byte("while closed"))
	require.NoError(t, err)
	assert.False(t, fsys.IsOpen())

	require.NoError(t, f.Truncate(5))
	assert.False(t, fsys.IsOpen())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, 5)
	_, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "while", string(buf))
	assert.False(t, fsys.IsOpen())
}

func TestFile_Closed(t *testing.T) {
	fsys := newTestFS(t, 25)
	f := openTestFile(t, fsys, "f")
	require.NoError(t, f.Close())

	assert.ErrorIs(t, f.Close(), ErrFileClosed)
	_, err := f.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrFileClosed)
	_, err = f.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrFileClosed)
	_, err = f.Seek(0, io.SeekStart)
	assert.ErrorIs(t, err, ErrFileClosed)
	assert.ErrorIs(t, f.Truncate(1), ErrFileClosed)
	_, err = f.Stat()
	assert.ErrorIs(t, err, ErrFileClosed)
	assert.ErrorIs(t, fsys.ChangeSize(f, 1), ErrFileClosed)
}

func TestFile_ResizeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		n, m int64
	}{
		{"ShrinkToFew", 5000, 100},
		{"ShrinkToZero", 5000, 0},
		{"ExactMultiple", 2048, 1024},
		{"ExactMultipleToZero", 3072, 0},
		{"GrowInBetween", 1025, 4096},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := newTestFS(t, 40)
			f := openTestFile(t, fsys, "f")

			require.NoError(t, f.Truncate(tt.n))
			first, err := f.Stat()
			require.NoError(t, err)
			free := fsys.Usage().FreeClusters

			require.NoError(t, f.Truncate(tt.m))
			require.NoError(t, f.Truncate(tt.n))
			again, err := f.Stat()
			require.NoError(t, err)

			assert.Equal(t, fsys.Superblock().ClustersFor(tt.n), first.Clusters())
			assert.Equal(t, first.Clusters(), again.Clusters())
			assert.Equal(t, tt.n, again.Size)
			assert.Equal(t, free, fsys.Usage().FreeClusters)
		})
	}
}

func TestFile_EntrySizeBeyondChain(t *testing.T) {
	t.Run("OnDisk", func(t *testing.T) {
		for _, size := range []int32{5000, -5} {
			store := blockdev.NewMemoryStore(25)
			fsys, err := Mount(store)
			require.NoError(t, err)
			require.NoError(t, fsys.Create("a"))
			require.NoError(t, fsys.Close())

			require.NoError(t, store.Open())
			dir, err := store.ReadBlock(2)
			require.NoError(t, err)
			binary.LittleEndian.PutUint32(dir[15:], uint32(size))
			require.NoError(t, store.WriteBlock(2, dir))

			fsys, err = Mount(store)
			require.NoError(t, err)

			_, err = fsys.OpenFile("a")
			var cc *ErrCorruptChain
			require.ErrorAs(t, err, &cc, "size %d", size)
			assert.Equal(t, "a", cc.File)
			assert.Empty(t, fsys.files)
		}
	})

	t.Run("OpenHandle", func(t *testing.T) {
		fsys := newTestFS(t, 25)
		f := openTestFile(t, fsys, "a")

		fsys.mu.Lock()
		fsys.dir[fsys.dir.Lookup("a")].Size = 5000
		f.size = 5000
		fsys.mu.Unlock()

		var cc *ErrCorruptChain
		_, err := f.Read(make([]byte, 5000))
		assert.ErrorAs(t, err, &cc)
		_, err = f.Write([]byte("x"))
		assert.ErrorAs(t, err, &cc)
		assert.ErrorAs(t, f.Truncate(10), &cc)
	})
}
