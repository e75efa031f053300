package fs

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseFileSystem(t *testing.T, fsys FileSystem, dir string) {
	t.Helper()

	require.NoError(t, fsys.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, "volume.img")
	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	require.NoError(t, f.Truncate(1024))

	n, err := f.WriteAt([]byte("hello"), 512)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	// WriteAt must not move the sequential offset.
	_, err = f.Write([]byte("head"))
	require.NoError(t, err)

	buf := make([]byte, 5)
	_, err = f.ReadAt(buf, 512)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	_, err = f.ReadAt(buf[:4], 0)
	require.NoError(t, err)
	assert.Equal(t, "head", string(buf[:4]))

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(1024), info.Size())

	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	entries, err := fsys.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "volume.img", entries[0].Name())

	renamed := filepath.Join(dir, "renamed.img")
	require.NoError(t, fsys.Rename(path, renamed))
	_, err = fsys.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, fsys.Remove(renamed))
	_, err = fsys.Stat(renamed)
	assert.True(t, os.IsNotExist(err))
}

func TestLocalFS(t *testing.T) {
	exerciseFileSystem(t, LocalFS{}, filepath.Join(t.TempDir(), "sub"))
}

func TestBillyMemFS(t *testing.T) {
	exerciseFileSystem(t, NewMemFS(), "/sub")
}

func TestBillyOSFS(t *testing.T) {
	exerciseFileSystem(t, NewOSFS(t.TempDir()), "sub")
}

func TestOSFile(t *testing.T) {
	f, err := Default.OpenFile(filepath.Join(t.TempDir(), "x"), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer f.Close()

	_, ok := OSFile(f)
	assert.True(t, ok)

	mf, err := NewMemFS().OpenFile("x", os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer mf.Close()

	_, ok = OSFile(mf)
	assert.False(t, ok)
}

func TestFaultyFS(t *testing.T) {
	ffs := NewFaultyFS(NewMemFS())
	ffs.AddRule("bad", Fault{FailAfterBytes: 8, FailOnSync: true, FailOnTruncate: true})

	f, err := ffs.OpenFile("bad.img", os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	_, err = f.WriteAt([]byte("12345678"), 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("9"), 8)
	assert.ErrorIs(t, err, ErrInjected)
	_, err = f.Write([]byte("9"))
	assert.ErrorIs(t, err, ErrInjected)
	assert.ErrorIs(t, f.Sync(), ErrInjected)
	assert.ErrorIs(t, f.Truncate(0), ErrInjected)
	require.NoError(t, f.Close())

	good, err := ffs.OpenFile("good.img", os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = good.Write(make([]byte, 4096))
	require.NoError(t, err)

	_, err = good.Seek(0, io.SeekStart)
	require.NoError(t, err)
	require.NoError(t, good.Close())
}

func TestFaultyFS_CloseFault(t *testing.T) {
	ffs := NewFaultyFS(NewMemFS())
	custom := assert.AnError
	ffs.AddRule("c", Fault{FailAfterBytes: -1, FailOnClose: true, Err: custom})

	f, err := ffs.OpenFile("c.img", os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	assert.ErrorIs(t, f.Close(), custom)
}
