package storage

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func newMemDisk(t *testing.T) (*DiskManager, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	dm := NewDiskManager(fs, "/data")
	t.Cleanup(func() { _ = dm.Close() })
	return dm, fs
}

func TestDiskManager_ReadPastEOF_ZeroFilled(t *testing.T) {
	dm, _ := newMemDisk(t)

	fid, err := dm.OpenFile("users.tbl")
	require.NoError(t, err)

	buf := make([]byte, PageSize)
	buf[0] = 0xff
	require.NoError(t, dm.ReadPage(fid, 7, buf))
	require.Equal(t, make([]byte, PageSize), buf)
}

func TestDiskManager_ReadBeyondWrittenPages(t *testing.T) {
	fss := map[string]afero.Fs{
		"mem": afero.NewMemMapFs(),
		"os":  afero.NewBasePathFs(afero.NewOsFs(), t.TempDir()),
	}
	for name, fs := range fss {
		t.Run(name, func(t *testing.T) {
			dm := NewDiskManager(fs, "/data")
			t.Cleanup(func() { _ = dm.Close() })

			fid, err := dm.OpenFile("orders.tbl")
			require.NoError(t, err)
			require.NoError(t, dm.WritePage(fid, 0, make([]byte, PageSize)))

			buf := make([]byte, PageSize)
			for _, pid := range []PageID{1, 2, 40} {
				buf[PageHeaderSize] = 0xaa
				require.NoError(t, dm.ReadPage(fid, pid, buf), "page %d", pid)
				require.Equal(t, make([]byte, PageSize), buf)
			}
		})
	}
}

func TestDiskManager_WriteThenRead(t *testing.T) {
	dm, _ := newMemDisk(t)

	fid, err := dm.OpenFile("users.tbl")
	require.NoError(t, err)

	src := make([]byte, PageSize)
	copy(src[PageHeaderSize:], "hello page")
	require.NoError(t, dm.WritePage(fid, 3, src))

	// checksum sealed into the caller's buffer
	p, err := NewPage(src, fid, 3)
	require.NoError(t, err)
	require.NotZero(t, p.Checksum())

	dst := make([]byte, PageSize)
	require.NoError(t, dm.ReadPage(fid, 3, dst))
	require.Equal(t, src, dst)

	n, err := dm.NumPages(fid)
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestDiskManager_DetectsCorruption(t *testing.T) {
	dm, fs := newMemDisk(t)

	fid, err := dm.OpenFile("users.tbl")
	require.NoError(t, err)

	src := make([]byte, PageSize)
	copy(src[PageHeaderSize:], "payload")
	require.NoError(t, dm.WritePage(fid, 0, src))

	raw, err := afero.ReadFile(fs, "/data/users.tbl")
	require.NoError(t, err)
	raw[PageHeaderSize+1] ^= 0x01
	require.NoError(t, afero.WriteFile(fs, "/data/users.tbl", raw, FileMode0644))

	dst := make([]byte, PageSize)
	err = dm.ReadPage(fid, 0, dst)
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestDiskManager_OpenSameNameTwice(t *testing.T) {
	dm, _ := newMemDisk(t)

	a, err := dm.OpenFile("a.tbl")
	require.NoError(t, err)
	b, err := dm.OpenFile("b.tbl")
	require.NoError(t, err)
	again, err := dm.OpenFile("a.tbl")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.Equal(t, a, again)

	name, err := dm.FileName(b)
	require.NoError(t, err)
	require.Equal(t, "b.tbl", name)
}

func TestDiskManager_ClosedFile(t *testing.T) {
	dm, _ := newMemDisk(t)

	fid, err := dm.OpenFile("a.tbl")
	require.NoError(t, err)
	require.NoError(t, dm.CloseFile(fid))

	buf := make([]byte, PageSize)
	require.ErrorIs(t, dm.ReadPage(fid, 0, buf), ErrFileNotOpen)
	require.ErrorIs(t, dm.WritePage(fid, 0, buf), ErrFileNotOpen)
	require.ErrorIs(t, dm.CloseFile(fid), ErrFileNotOpen)
}

func TestDiskManager_WrongBufferSize(t *testing.T) {
	dm, _ := newMemDisk(t)

	fid, err := dm.OpenFile("a.tbl")
	require.NoError(t, err)

	require.ErrorIs(t, dm.ReadPage(fid, 0, make([]byte, 10)), ErrWrongSize)
	require.ErrorIs(t, dm.WritePage(fid, 0, make([]byte, PageSize+1)), ErrWrongSize)
}

func TestDiskManager_DestroyFile(t *testing.T) {
	dm, fs := newMemDisk(t)

	fid, err := dm.OpenFile("gone.tbl")
	require.NoError(t, err)
	require.NoError(t, dm.WritePage(fid, 0, make([]byte, PageSize)))

	require.NoError(t, dm.DestroyFile("gone.tbl"))

	exists, err := afero.Exists(fs, "/data/gone.tbl")
	require.NoError(t, err)
	require.False(t, exists)

	_, err = dm.FileName(fid)
	require.ErrorIs(t, err, ErrFileNotOpen)

	require.NoError(t, dm.DestroyFile("never-created.tbl"))
}

func TestDiskManager_OSFilesystem_Persists(t *testing.T) {
	dir := t.TempDir()

	dm := NewOSDiskManager(dir)
	fid, err := dm.OpenFile("users.tbl")
	require.NoError(t, err)

	src := make([]byte, PageSize)
	src[PageSize-1] = 42
	require.NoError(t, dm.WritePage(fid, 1, src))
	require.NoError(t, dm.Close())

	_, err = dm.OpenFile("users.tbl")
	require.ErrorIs(t, err, ErrDiskClosed)

	dm2 := NewOSDiskManager(dir)
	defer dm2.Close()
	fid2, err := dm2.OpenFile("users.tbl")
	require.NoError(t, err)

	dst := make([]byte, PageSize)
	require.NoError(t, dm2.ReadPage(fid2, 1, dst))
	require.Equal(t, byte(42), dst[PageSize-1])
	require.FileExists(t, filepath.Join(dir, "users.tbl"))
}
