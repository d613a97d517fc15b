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
package card

import (
	"context"

	"github.com/ostafen/aircard/internal/disk"
	"github.com/ostafen/aircard/internal/fat"
)

// Partitions reads the card's partition table.
func (c *Card) Partitions(ctx context.Context) ([]disk.Partition, error) {
	return disk.ReadPartitionTable(ctx, c)
}

// FileSystem mounts the FAT32 volume on the given partition index.
func (c *Card) FileSystem(ctx context.Context, partition int) (*fat.Volume, error) {
	partitions, err := c.Partitions(ctx)
	if err != nil {
		return nil, err
	}
	if partition >= len(partitions) {
		return nil, disk.ErrPartitionOutOfRange
	}

	p := partitions[partition]
	if p.Type != disk.FSTypeFAT32 {
		return nil, &disk.UnsupportedFileSystemError{Detected: p.Type}
	}
	return fat.Mount(ctx, c, p, c.log)
}
