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
package fat

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// BootSectorSize is the size of the FAT boot sector (BIOS Parameter Block).
const BootSectorSize = 512

// BootSector maps the first sector of a FAT32 partition. Fields follow the
// on-disk little-endian layout so the whole struct is read with one
// binary.Read.
type BootSector struct {
	Jump              [3]byte  // 0x00 boot strap short or near jump
	OEMName           [8]byte  // 0x03
	SectorSize        uint16   // 0x0B bytes per logical sector
	SectorsPerCluster uint8    // 0x0D
	ReservedSectors   uint16   // 0x0E
	NumFATs           uint8    // 0x10
	RootEntryCount    uint16   // 0x11 root directory entries, 0 on FAT32
	TotalSectors16    uint16   // 0x13
	Media             uint8    // 0x15
	FATSize16         uint16   // 0x16 sectors per FAT, 0 on FAT32
	SectorsPerTrack   uint16   // 0x18
	Heads             uint16   // 0x1A
	HiddenSectors     uint32   // 0x1C
	TotalSectors32    uint32   // 0x20

	// FAT32-only fields.
	FATSize32   uint32   // 0x24 sectors per FAT
	Flags       uint16   // 0x28
	Version     uint16   // 0x2A
	RootCluster uint32   // 0x2C first cluster of the root directory
	InfoSector  uint16   // 0x30
	BackupBoot  uint16   // 0x32
	Reserved    [12]byte // 0x34
	DriveNumber uint8    // 0x40
	Reserved1   uint8    // 0x41
	BootSig     uint8    // 0x42
	VolumeID    uint32   // 0x43
	VolumeLabel [11]byte // 0x47
	FSTypeLabel [8]byte  // 0x52

	BootCode [420]byte // 0x5A
	Marker   uint16    // 0x1FE boot sector signature (0xAA55)
}

// ParseBootSector decodes a 512-byte boot sector and validates the fields
// the reader depends on.
func ParseBootSector(data []byte) (*BootSector, error) {
	if len(data) < BootSectorSize {
		return nil, fmt.Errorf("boot sector of %d bytes, expected %d", len(data), BootSectorSize)
	}

	var bs BootSector
	if err := binary.Read(bytes.NewReader(data[:BootSectorSize]), binary.LittleEndian, &bs); err != nil {
		return nil, fmt.Errorf("decoding boot sector: %w", err)
	}

	switch bs.SectorSize {
	case 512, 1024, 2048, 4096:
	default:
		return nil, fmt.Errorf("invalid sector size %d", bs.SectorSize)
	}

	spc := bs.SectorsPerCluster
	if spc == 0 || spc&(spc-1) != 0 {
		return nil, fmt.Errorf("invalid sectors per cluster %d", spc)
	}

	if bs.ReservedSectors == 0 {
		return nil, fmt.Errorf("invalid reserved sector count")
	}
	return &bs, nil
}

// Label returns the volume label with trailing padding removed.
func (bs *BootSector) Label() string {
	return strings.TrimRight(string(bs.VolumeLabel[:]), " \x00")
}

// TypeLabel returns the informational filesystem type string with trailing
// padding removed (the field "FAT32   " yields "FAT32"). The FAT type is determined by cluster count, never by this field.
func (bs *BootSector) TypeLabel() string {
	return strings.TrimRight(string(bs.FSTypeLabel[:]), " \x00")
}

// FirstDataSector returns the sector of cluster 2 relative to the volume
// start.
func (bs *BootSector) FirstDataSector() uint32 {
	rootDirSectors := (uint32(bs.RootEntryCount)*32 + uint32(bs.SectorSize) - 1) / uint32(bs.SectorSize)
	return uint32(bs.ReservedSectors) + uint32(bs.NumFATs)*bs.FATSize32 + rootDirSectors
}
