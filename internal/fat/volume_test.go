package fat

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/ostafen/aircard/internal/disk"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// imageDevice serves a raw in-memory disk image sector by sector and
// records the count of every read it sees.
type imageDevice struct {
	data  []byte
	reads []uint16
}

func (d *imageDevice) ReadBlocks(ctx context.Context, lba uint32, count uint16) ([]byte, error) {
	d.reads = append(d.reads, count)

	off := int(lba) * disk.SectorSize
	end := off + int(count)*disk.SectorSize
	if end > len(d.data) {
		return nil, fmt.Errorf("read past end of image: lba %d count %d", lba, count)
	}
	return append([]byte(nil), d.data[off:end]...), nil
}

type imageGeometry struct {
	partStart         uint32
	sectorsPerCluster uint8
	totalSectors      uint32
}

// buildImage lays out a minimal FAT32 volume: 32 reserved sectors, two
// one-sector FATs, data from volume sector 34, root directory at cluster 2.
func buildImage(geo imageGeometry, fatEntries map[uint32]uint32, clusters map[uint32][]byte) *imageDevice {
	img := make([]byte, int(geo.partStart+geo.totalSectors)*disk.SectorSize)

	boot := make([]byte, 512)
	binary.LittleEndian.PutUint16(boot[11:13], 512)
	boot[13] = geo.sectorsPerCluster
	binary.LittleEndian.PutUint16(boot[14:16], 32)
	boot[16] = 2
	binary.LittleEndian.PutUint32(boot[32:36], geo.totalSectors)
	binary.LittleEndian.PutUint32(boot[36:40], 1)
	binary.LittleEndian.PutUint32(boot[44:48], 2)
	copy(boot[71:82], "AIRCARD    ")
	copy(boot[82:90], "FAT32   ")
	binary.LittleEndian.PutUint16(boot[510:512], 0xAA55)
	copy(img[int(geo.partStart)*disk.SectorSize:], boot)

	fatSector := make([]byte, 512)
	binary.LittleEndian.PutUint32(fatSector[0:], 0x0FFFFFF8)
	binary.LittleEndian.PutUint32(fatSector[4:], 0xFFFFFFFF)
	for cluster, next := range fatEntries {
		binary.LittleEndian.PutUint32(fatSector[cluster*4:], next)
	}
	copy(img[int(geo.partStart+32)*disk.SectorSize:], fatSector)
	copy(img[int(geo.partStart+33)*disk.SectorSize:], fatSector)

	firstDataSector := geo.partStart + 34
	for cluster, data := range clusters {
		sector := firstDataSector + (cluster-2)*uint32(geo.sectorsPerCluster)
		copy(img[int(sector)*disk.SectorSize:], data)
	}
	return &imageDevice{data: img}
}

func fill(b byte, n int) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func testVolume(t *testing.T) (*Volume, *imageDevice) {
	t.Helper()

	rootHead := concat(
		lfnEntry(0x41, "longname.jpg"),
		shortEntry("LONGNA~1JPG", 0x20, 0, 0),
		shortEntry("DATA    BIN", 0x20, 3, 1436),
		shortEntry("SUB        ", 0x10, 6, 0),
	)
	for i := 0; i < 12; i++ {
		free := shortEntry("GONE    TXT", 0x20, 0, 0)
		free[0] = entryFree
		rootHead = append(rootHead, free...)
	}

	dev := buildImage(
		imageGeometry{partStart: 8, sectorsPerCluster: 1, totalSectors: 40},
		map[uint32]uint32{
			2: 7, // root directory spans two clusters
			3: 4,
			4: 5,
			5: 0x0FFFFFFF,
			6: 0x0FFFFFFF,
			7: 0x0FFFFFFF,
		},
		map[uint32][]byte{
			2: rootHead,
			3: fill('A', 512),
			4: fill('B', 512),
			5: fill('C', 512),
			6: concat(shortEntry("NESTED  TXT", 0x20, 0, 0), endEntry()),
			7: concat(shortEntry("TAIL    TXT", 0x20, 0, 0), endEntry()),
		},
	)

	vol, err := Mount(context.Background(), dev,
		disk.Partition{Type: disk.FSTypeFAT32, StartLBA: 8, Sectors: 40},
		discardLogger())
	require.NoError(t, err)
	return vol, dev
}

func TestMount(t *testing.T) {
	vol, _ := testVolume(t)

	require.Equal(t, "AIRCARD", vol.Boot().Label())
	require.Equal(t, "FAT32", vol.Boot().TypeLabel())
	require.Equal(t, uint32(512), vol.ClusterBytes())
	require.Equal(t, uint32(34), vol.firstDataSector)
	require.Equal(t, uint32(34), vol.firstSectorOfCluster(2))
}

func TestListPath_Root(t *testing.T) {
	vol, _ := testVolume(t)

	entries, err := vol.ListPath(context.Background(), "/")
	require.NoError(t, err)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	// TAIL.TXT lives in the root directory's second cluster.
	require.Equal(t, []string{"longname.jpg", "DATA.BIN", "SUB", "TAIL.TXT"}, names)
}

func TestListPath_Subdirectory(t *testing.T) {
	vol, _ := testVolume(t)

	for _, path := range []string{"SUB", "/SUB", "/sub/", "sub"} {
		entries, err := vol.ListPath(context.Background(), path)
		require.NoError(t, err, path)
		require.Len(t, entries, 1)
		require.Equal(t, "NESTED.TXT", entries[0].Name)
	}
}

func TestListPath_NotFound(t *testing.T) {
	vol, _ := testVolume(t)

	_, err := vol.ListPath(context.Background(), "/nope")
	require.ErrorIs(t, err, ErrDirectoryNotFound)

	// A file name is not a directory.
	_, err = vol.ListPath(context.Background(), "/DATA.BIN")
	require.ErrorIs(t, err, ErrDirectoryNotFound)
}

func TestFileContent(t *testing.T) {
	vol, _ := testVolume(t)

	entries, err := vol.ListPath(context.Background(), "/")
	require.NoError(t, err)

	var file DirEntry
	for _, e := range entries {
		if e.Name == "DATA.BIN" {
			file = e
		}
	}
	require.Equal(t, uint32(1436), file.Size)

	content, err := vol.FileContent(context.Background(), file)
	require.NoError(t, err)

	want := concat(fill('A', 512), fill('B', 512), fill('C', 412))
	require.Equal(t, want, content)
}

func TestWriteContent_StopsAtSize(t *testing.T) {
	vol, dev := testVolume(t)

	var buf bytes.Buffer
	n, err := vol.WriteContent(context.Background(), DirEntry{FirstCluster: 3, Size: 700}, &buf)
	require.NoError(t, err)
	require.Equal(t, int64(700), n)
	require.Equal(t, concat(fill('A', 512), fill('B', 188)), buf.Bytes())

	for _, count := range dev.reads {
		require.LessOrEqual(t, count, uint16(disk.MaxBlocksPerRead))
	}
}

func TestReadBatching(t *testing.T) {
	// 16 sectors per cluster forces every cluster read to split into a
	// 14-sector and a 2-sector request.
	dev := buildImage(
		imageGeometry{partStart: 0, sectorsPerCluster: 16, totalSectors: 64},
		map[uint32]uint32{2: 0x0FFFFFFF},
		map[uint32][]byte{2: fill('X', 16 * 512)},
	)

	vol, err := Mount(context.Background(), dev,
		disk.Partition{Type: disk.FSTypeFAT32, StartLBA: 0, Sectors: 64},
		discardLogger())
	require.NoError(t, err)

	dev.reads = nil
	content, err := vol.FileContent(context.Background(), DirEntry{FirstCluster: 2, Size: 16 * 512})
	require.NoError(t, err)
	require.Equal(t, fill('X', 16*512), content)

	require.Equal(t, []uint16{14, 2}, dev.reads[:2])
	for _, count := range dev.reads {
		require.LessOrEqual(t, count, uint16(disk.MaxBlocksPerRead))
	}
}
