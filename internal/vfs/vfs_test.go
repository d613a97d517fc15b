package vfs_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/ostafen/aircard/internal/fat"
	"github.com/ostafen/aircard/internal/vfs"
)

// fakeFS serves a static tree keyed by first cluster. Cluster 0 is the
// root directory.
type fakeFS struct {
	dirs     map[uint32][]fat.DirEntry
	contents map[uint32][]byte

	listCalls int
}

func (f *fakeFS) ListPath(ctx context.Context, path string) ([]fat.DirEntry, error) {
	f.listCalls++
	return f.dirs[0], nil
}

func (f *fakeFS) ListDir(ctx context.Context, entry fat.DirEntry) ([]fat.DirEntry, error) {
	f.listCalls++
	return f.dirs[entry.FirstCluster], nil
}

func (f *fakeFS) FileContent(ctx context.Context, entry fat.DirEntry) ([]byte, error) {
	return f.contents[entry.FirstCluster], nil
}

func (f *fakeFS) WriteContent(ctx context.Context, entry fat.DirEntry, w io.Writer) (int64, error) {
	n, err := w.Write(f.contents[entry.FirstCluster])
	return int64(n), err
}

func (f *fakeFS) NamesEqual(a, b string) bool { return fat.NamesEqual(a, b) }

func testTree() *fakeFS {
	return &fakeFS{
		dirs: map[uint32][]fat.DirEntry{
			0: {
				{Name: "DCIM", IsDir: true, FirstCluster: 3},
				{Name: "readme.txt", Size: 5, FirstCluster: 4,
					Modified: time.Date(2021, 5, 5, 12, 0, 0, 0, time.UTC)},
			},
			3: {
				{Name: "IMG_0001.JPG", Size: 9, FirstCluster: 5},
			},
		},
		contents: map[uint32][]byte{
			4: []byte("hello"),
			5: []byte("jpegbytes"),
		},
	}
}

func TestDirectory_ListCaching(t *testing.T) {
	fs := testTree()
	root := vfs.Root(fs)

	nodes, err := root.List(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	require.Equal(t, 1, fs.listCalls)

	// Second list is served from the cache.
	_, err = root.List(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, fs.listCalls)

	// refresh=true invalidates it.
	_, err = root.List(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, 2, fs.listCalls)
}

func TestDirectory_Lookups(t *testing.T) {
	root := vfs.Root(testTree())

	dir, err := root.GetDirectory(context.Background(), "dcim")
	require.NoError(t, err)
	require.Equal(t, "DCIM", dir.Name())
	require.Equal(t, "/DCIM", dir.Path())

	file, err := dir.GetFile(context.Background(), "img_0001.jpg")
	require.NoError(t, err)
	require.Equal(t, "IMG_0001.JPG", file.Name())
	require.Equal(t, "/DCIM/IMG_0001.JPG", file.Path())

	_, err = root.GetFile(context.Background(), "missing.txt")
	require.ErrorIs(t, err, vfs.ErrFileNotFound)

	// A file name does not resolve as a directory and vice versa.
	_, err = root.GetDirectory(context.Background(), "readme.txt")
	require.ErrorIs(t, err, vfs.ErrDirectoryNotFound)

	_, err = root.GetFile(context.Background(), "DCIM")
	require.ErrorIs(t, err, vfs.ErrFileNotFound)
}

func TestOpenPath(t *testing.T) {
	dir, err := vfs.OpenPath(context.Background(), testTree(), "/DCIM")
	require.NoError(t, err)
	require.Equal(t, "DCIM", dir.Name())

	root, err := vfs.OpenPath(context.Background(), testTree(), "/")
	require.NoError(t, err)
	require.Equal(t, "/", root.Name())
}

func TestFile_Content(t *testing.T) {
	root := vfs.Root(testTree())

	file, err := root.GetFile(context.Background(), "readme.txt")
	require.NoError(t, err)

	content, err := file.Content(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), content)
	require.Equal(t, uint32(5), file.Size())
	require.Equal(t, time.Date(2021, 5, 5, 12, 0, 0, 0, time.UTC), file.ModTime())
}

func TestFile_Download(t *testing.T) {
	root := vfs.Root(testTree())

	file, err := root.GetFile(context.Background(), "readme.txt")
	require.NoError(t, err)

	mem := afero.NewMemMapFs()
	n, err := file.Download(context.Background(), mem, "out/readme.txt")
	require.NoError(t, err)
	require.Equal(t, int64(5), n)

	data, err := afero.ReadFile(mem, "out/readme.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
}
