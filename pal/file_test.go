package pal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/govetachun/pagingdb/errs"
	"github.com/govetachun/pagingdb/page"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, minBytes int) *File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.dat")
	f, err := Open(path, minBytes)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestOpenCreatesFileOfMinimumSize(t *testing.T) {
	f := openTemp(t, 128*1024)
	require.Equal(t, 128*1024, f.Size())
}

func TestGetPageOutOfRangeFails(t *testing.T) {
	f := openTemp(t, 16*page.Size) // 16 pages, matches spec S4

	_, err := f.GetPage(100, 1)
	require.Error(t, err)

	var se *errs.Error
	require.ErrorAs(t, err, &se)
	require.Equal(t, errs.InvalidArgument, se.Kind)
}

func TestGetPageWithinRangeReturnsZeroedBytes(t *testing.T) {
	f := openTemp(t, 16*page.Size)

	addr, err := f.GetPage(0, 1)
	require.NoError(t, err)
	require.Len(t, addr, page.Size)
	for _, b := range addr {
		require.Zero(t, b)
	}
}

func TestGetPageMultiPageRunGrowsFileWhenNeeded(t *testing.T) {
	f := openTemp(t, page.Size) // only page 0 exists for real

	addr, err := f.GetPage(0, 3)
	require.NoError(t, err)
	require.Len(t, addr, 3*page.Size)
	require.GreaterOrEqual(t, f.Size(), 3*page.Size)
}

func TestWritePageThenGetPageRoundTrips(t *testing.T) {
	f := openTemp(t, page.Size)

	buf := make([]byte, page.Size)
	copy(buf, []byte("Hello Gavran\x00"))

	require.NoError(t, f.WritePage(0, buf, page.Size))

	addr, err := f.GetPage(0, 1)
	require.NoError(t, err)
	require.Equal(t, buf, []byte(addr))
}

func TestWritePageExtendsFileForOverflowRun(t *testing.T) {
	f := openTemp(t, page.Size)

	overflow := uint32(20000) // matches spec S6: 3 pages
	buf := make([]byte, page.ByteSize(overflow))
	for i := range buf {
		buf[i] = 0xAB
	}

	require.NoError(t, f.WritePage(0, buf, overflow))
	require.GreaterOrEqual(t, f.Size(), 3*page.Size)

	addr, err := f.GetPage(0, 3)
	require.NoError(t, err)
	require.Equal(t, buf, []byte(addr))
}

func TestReopenSeesPreviouslyWrittenBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.dat")

	f, err := Open(path, page.Size)
	require.NoError(t, err)
	// pad to a full page for WritePage's exact-length write.
	full := make([]byte, page.Size)
	copy(full, []byte("persisted"))
	require.NoError(t, f.WritePage(0, full, page.Size))
	require.NoError(t, f.Close())

	f2, err := Open(path, 0)
	require.NoError(t, err)
	defer f2.Close()

	addr, err := f2.GetPage(0, 1)
	require.NoError(t, err)
	require.Equal(t, full, []byte(addr))
}

func TestEnsureMinimumSizeIsIdempotent(t *testing.T) {
	f := openTemp(t, page.Size)
	before := f.Size()
	require.NoError(t, f.EnsureMinimumSize(before)) // smaller-or-equal: no-op
	require.Equal(t, before, f.Size())
}

func TestOpenOnExistingFilePreservesSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.dat")
	require.NoError(t, os.WriteFile(path, make([]byte, 3*page.Size), 0644))

	f, err := Open(path, 0)
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, 3*page.Size, f.Size())
}
