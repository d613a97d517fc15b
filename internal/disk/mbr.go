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

// Package disk locates partitions on the card's raw block device.
package disk

import (
	"context"
	"encoding/binary"
	"fmt"
)

const (
	mbrSize            = 512
	partitionTableOff  = 446
	partitionEntrySize = 16
	mbrSignatureOffset = 0x1FE
)

// MBR partition type ids the client recognizes.
const (
	typeEmpty       = 0x00
	typeExtendedCHS = 0x05
	typeNTFSExFAT   = 0x07
	typeFAT32CHS    = 0x0B
	typeFAT32LBA    = 0x0C
	typeExtendedLBA = 0x0F
	typeLinux       = 0x83
)

// mbrEntry is one 16-byte slot of the partition table. Multi-byte fields
// are little-endian on disk.
type mbrEntry struct {
	BootIndicator uint8
	StartCHS      [3]byte
	PartitionType uint8
	EndCHS        [3]byte
	StartLBA      [4]byte
	TotalSectors  [4]byte
}

func (e *mbrEntry) readStartLBA() uint32 {
	return binary.LittleEndian.Uint32(e.StartLBA[:])
}

func (e *mbrEntry) readTotalSectors() uint32 {
	return binary.LittleEndian.Uint32(e.TotalSectors[:])
}

func fsTypeOf(id uint8) FSType {
	switch id {
	case typeFAT32CHS, typeFAT32LBA:
		return FSTypeFAT32
	case typeNTFSExFAT:
		return FSTypeNTFS
	case typeLinux:
		return FSTypeLinux
	case typeExtendedCHS, typeExtendedLBA:
		return FSTypeExtended
	default:
		return FSTypeUnknown
	}
}

// ReadPartitionTable reads LBA 0 from dev and returns the populated
// partition slots in table order.
func ReadPartitionTable(ctx context.Context, dev BlockDevice) ([]Partition, error) {
	sector, err := dev.ReadBlocks(ctx, 0, 1)
	if err != nil {
		return nil, fmt.Errorf("reading MBR: %w", err)
	}
	return ParseMBR(sector)
}

// ParseMBR parses a 512-byte master boot record into the non-empty
// partitions of its table, preserving table order.
func ParseMBR(data []byte) ([]Partition, error) {
	if len(data) < mbrSize {
		return nil, fmt.Errorf("MBR of %d bytes, expected %d", len(data), mbrSize)
	}

	if sig := binary.LittleEndian.Uint16(data[mbrSignatureOffset:]); sig != 0xAA55 {
		return nil, fmt.Errorf("invalid MBR signature: expected 0xAA55, got 0x%04X", sig)
	}

	var partitions []Partition
	for i := 0; i < 4; i++ {
		off := partitionTableOff + i*partitionEntrySize
		raw := data[off : off+partitionEntrySize]

		var e mbrEntry
		e.BootIndicator = raw[0]
		copy(e.StartCHS[:], raw[1:4])
		e.PartitionType = raw[4]
		copy(e.EndCHS[:], raw[5:8])
		copy(e.StartLBA[:], raw[8:12])
		copy(e.TotalSectors[:], raw[12:16])

		if e.PartitionType == typeEmpty {
			continue
		}

		partitions = append(partitions, Partition{
			Index:    i,
			Type:     fsTypeOf(e.PartitionType),
			TypeID:   e.PartitionType,
			StartLBA: e.readStartLBA(),
			Sectors:  e.readTotalSectors(),
		})
	}
	return partitions, nil
}
