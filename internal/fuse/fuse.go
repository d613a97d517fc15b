//go:build linux
// +build linux

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
package fuse

import (
	"context"
	"os"
	"sync"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/ostafen/aircard/internal/vfs"
)

// CardFS exposes the card's FAT tree as a read-only FUSE filesystem.
type CardFS struct {
	root *vfs.Directory
}

func (c *CardFS) Root() (fs.Node, error) {
	return &Dir{dir: c.root}, nil
}

// Dir implements fs.Node and fs.HandleReadDirAller over a card directory.
type Dir struct {
	dir *vfs.Directory
}

func (*Dir) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = os.ModeDir | 0555
	return nil
}

func (d *Dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	nodes, err := d.dir.List(ctx, false)
	if err != nil {
		return nil, err
	}

	for _, n := range nodes {
		if n.Name() != name {
			continue
		}
		switch v := n.(type) {
		case *vfs.Directory:
			return &Dir{dir: v}, nil
		case *vfs.File:
			return &File{file: v}, nil
		}
	}
	return nil, fuse.ENOENT
}

func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	nodes, err := d.dir.List(ctx, false)
	if err != nil {
		return nil, err
	}

	dirEntries := make([]fuse.Dirent, len(nodes))
	for i, n := range nodes {
		typ := fuse.DT_File
		if n.IsDir() {
			typ = fuse.DT_Dir
		}
		dirEntries[i] = fuse.Dirent{
			Inode: uint64(i),
			Name:  n.Name(),
			Type:  typ,
		}
	}
	return dirEntries, nil
}

// File implements fs.Node and fs.HandleReader. The content is fetched
// from the card once and served from memory afterwards; random-access
// page reads over UDP would pay a full chain walk each.
type File struct {
	file *vfs.File

	mtx     sync.Mutex
	content []byte
	fetched bool
}

func (f *File) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = 0444
	a.Size = uint64(f.file.Size())
	a.Mtime = f.file.ModTime()
	a.Ctime = f.file.Created()
	return nil
}

func (f *File) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	content, err := f.fetch(ctx)
	if err != nil {
		return err
	}

	offset := req.Offset
	if offset >= int64(len(content)) {
		resp.Data = []byte{}
		return nil
	}

	end := offset + int64(req.Size)
	if end > int64(len(content)) {
		end = int64(len(content))
	}
	resp.Data = content[offset:end]
	return nil
}

func (f *File) fetch(ctx context.Context) ([]byte, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	if !f.fetched {
		content, err := f.file.Content(ctx)
		if err != nil {
			return nil, err
		}
		f.content = content
		f.fetched = true
	}
	return f.content, nil
}
