// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package fat reads FAT32 volumes over a sector-granular block device.
package fat

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ostafen/aircard/internal/disk"
)

// Cluster values at or past this mark terminate a FAT chain.
const endOfChain = 0x0FFFFFF8

// ErrDirectoryNotFound reports a missing path segment during traversal.
var ErrDirectoryNotFound = errors.New("directory not found")

// Volume is a mounted FAT32 filesystem on one partition of a block
// device. Reads are issued sequentially, so higher layers observe an
// in-order block stream.
type Volume struct {
	dev  disk.BlockDevice
	log  *slog.Logger
	part disk.Partition

	boot              *BootSector
	sectorSize        uint32
	sectorsPerCluster uint32
	reservedSectors   uint32
	firstDataSector   uint32 // relative to the volume start
	rootCluster       uint32
}

// Mount reads and validates the partition's boot sector and returns a
// ready volume.
func Mount(ctx context.Context, dev disk.BlockDevice, part disk.Partition, log *slog.Logger) (*Volume, error) {
	sector, err := dev.ReadBlocks(ctx, part.StartLBA, 1)
	if err != nil {
		return nil, fmt.Errorf("reading boot sector: %w", err)
	}

	boot, err := ParseBootSector(sector)
	if err != nil {
		return nil, err
	}

	v := &Volume{
		dev:               dev,
		log:               log,
		part:              part,
		boot:              boot,
		sectorSize:        uint32(boot.SectorSize),
		sectorsPerCluster: uint32(boot.SectorsPerCluster),
		reservedSectors:   uint32(boot.ReservedSectors),
		firstDataSector:   boot.FirstDataSector(),
		rootCluster:       boot.RootCluster,
	}
	v.diagnose()
	return v, nil
}

// diagnose logs boot sector oddities without refusing the mount; cards in
// the field ship volumes formatted by all kinds of tools.
func (v *Volume) diagnose() {
	if v.boot.Marker != 0xAA55 {
		v.log.Warn("boot sector signature mismatch", "marker", fmt.Sprintf("0x%04X", v.boot.Marker))
	}
	if v.boot.RootEntryCount != 0 {
		v.log.Warn("nonzero root entry count on a FAT32 volume", "count", v.boot.RootEntryCount)
	}
	if v.sectorSize != disk.SectorSize {
		v.log.Warn("sector size differs from the device block size", "sectorSize", v.sectorSize)
	}
	if v.sectorSize*v.sectorsPerCluster > 32*1024 {
		v.log.Warn("cluster size exceeds 32K, volume may not be portable",
			"clusterBytes", v.sectorSize*v.sectorsPerCluster)
	}

	clusters := (v.boot.FATSize32 - v.firstDataSector) / v.sectorsPerCluster
	switch {
	case clusters < 4085:
		v.log.Warn("volume classifies as FAT12", "clusters", clusters)
	case clusters < 65525:
		v.log.Warn("volume classifies as FAT16", "clusters", clusters)
	}
}

// Boot exposes the parsed boot sector for informational output.
func (v *Volume) Boot() *BootSector { return v.boot }

// Partition returns the partition the volume was mounted on.
func (v *Volume) Partition() disk.Partition { return v.part }

// ClusterBytes returns the size of one cluster in bytes.
func (v *Volume) ClusterBytes() uint32 { return v.sectorSize * v.sectorsPerCluster }

// readSectors reads count sectors starting at sector (relative to the
// volume), splitting the transfer into reads the device accepts and
// concatenating the buffers in order.
func (v *Volume) readSectors(ctx context.Context, sector, count uint32) ([]byte, error) {
	out := make([]byte, 0, count*disk.SectorSize)
	for count > 0 {
		n := count
		if n > disk.MaxBlocksPerRead {
			n = disk.MaxBlocksPerRead
		}

		data, err := v.dev.ReadBlocks(ctx, v.part.StartLBA+sector, uint16(n))
		if err != nil {
			return nil, err
		}
		out = append(out, data...)

		sector += n
		count -= n
	}
	return out, nil
}

// firstSectorOfCluster translates a cluster number to its first sector,
// relative to the volume start.
func (v *Volume) firstSectorOfCluster(cluster uint32) uint32 {
	return (cluster-2)*v.sectorsPerCluster + v.firstDataSector
}

func (v *Volume) readCluster(ctx context.Context, cluster uint32) ([]byte, error) {
	return v.readSectors(ctx, v.firstSectorOfCluster(cluster), v.sectorsPerCluster)
}

// nextCluster looks up the FAT entry for cluster and returns the chain's
// next cluster number.
func (v *Volume) nextCluster(ctx context.Context, cluster uint32) (uint32, error) {
	fatOffset := cluster * 4
	fatSector := fatOffset / v.sectorSize
	within := fatOffset % v.sectorSize

	sector, err := v.readSectors(ctx, v.reservedSectors+fatSector, 1)
	if err != nil {
		return 0, fmt.Errorf("reading FAT sector %d: %w", fatSector, err)
	}
	if int(within)+4 > len(sector) {
		return 0, fmt.Errorf("FAT entry for cluster %d outside sector", cluster)
	}
	return binary.LittleEndian.Uint32(sector[within:]) & 0x0FFFFFFF, nil
}

// walkChain visits every cluster of the chain starting at start, stopping
// at the end-of-chain mark or when fn asks to.
func (v *Volume) walkChain(ctx context.Context, start uint32, fn func(data []byte) (bool, error)) error {
	for cluster := start; cluster >= 2 && cluster < endOfChain; {
		data, err := v.readCluster(ctx, cluster)
		if err != nil {
			return err
		}

		cont, err := fn(data)
		if err != nil || !cont {
			return err
		}

		cluster, err = v.nextCluster(ctx, cluster)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteContent streams the file content of entry to w, following the FAT
// chain and truncating the final cluster to the entry size.
func (v *Volume) WriteContent(ctx context.Context, entry DirEntry, w io.Writer) (int64, error) {
	var written int64

	remaining := int64(entry.Size)
	err := v.walkChain(ctx, entry.FirstCluster, func(data []byte) (bool, error) {
		if remaining <= 0 {
			return false, nil
		}

		take := int64(len(data))
		if take > remaining {
			take = remaining
		}

		n, err := w.Write(data[:take])
		written += int64(n)
		if err != nil {
			return false, err
		}

		remaining -= take
		return remaining > 0, nil
	})
	return written, err
}

// FileContent returns the entire content of entry.
func (v *Volume) FileContent(ctx context.Context, entry DirEntry) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(entry.Size))

	if _, err := v.WriteContent(ctx, entry, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ListDir lists the directory entry's children.
func (v *Volume) ListDir(ctx context.Context, entry DirEntry) ([]DirEntry, error) {
	return v.listDirAt(ctx, entry.FirstCluster)
}

// ListPath resolves a "/"-separated path from the root directory and
// lists the directory it names. Empty segments are skipped, so "/",
// "DCIM" and "/DCIM/" all behave.
func (v *Volume) ListPath(ctx context.Context, path string) ([]DirEntry, error) {
	cluster := v.rootCluster

	for _, segment := range strings.Split(strings.ToUpper(path), "/") {
		if segment == "" {
			continue
		}

		entries, err := v.listDirAt(ctx, cluster)
		if err != nil {
			return nil, err
		}

		next, ok := findDir(entries, segment)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrDirectoryNotFound, segment)
		}
		cluster = next
	}
	return v.listDirAt(ctx, cluster)
}

func findDir(entries []DirEntry, name string) (uint32, bool) {
	for _, e := range entries {
		if e.IsDir && NamesEqual(e.Name, name) {
			return e.FirstCluster, true
		}
	}
	return 0, false
}

// listDirAt parses directory entries across the whole cluster chain. A
// first cluster below 2 (".." entries pointing at the root store 0) means
// the root directory.
func (v *Volume) listDirAt(ctx context.Context, cluster uint32) ([]DirEntry, error) {
	if cluster < 2 {
		cluster = v.rootCluster
	}

	var p dirParser
	err := v.walkChain(ctx, cluster, func(data []byte) (bool, error) {
		if err := p.feed(data); err != nil {
			return false, err
		}
		return !p.done, nil
	})
	if err != nil {
		return nil, err
	}
	return p.entries, nil
}

// NamesEqual reports whether two names refer to the same entry. Part of
// the filesystem adapter surface.
func (v *Volume) NamesEqual(a, b string) bool {
	return NamesEqual(a, b)
}
