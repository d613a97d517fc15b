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
package vfs

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/ostafen/aircard/internal/fat"
)

// Directory is a lazy handle on one directory of the volume. The child
// list is cached on first use and refreshed on demand.
type Directory struct {
	fs    FileSystem
	path  string
	entry fat.DirEntry
	root  bool

	cached []Node
}

// Root returns the volume's root directory.
func Root(fs FileSystem) *Directory {
	return &Directory{fs: fs, path: "/", root: true}
}

// OpenPath resolves a "/"-separated path to a Directory handle, listing
// one level at a time.
func OpenPath(ctx context.Context, fs FileSystem, p string) (*Directory, error) {
	dir := Root(fs)
	for _, segment := range splitPath(p) {
		next, err := dir.GetDirectory(ctx, segment)
		if err != nil {
			return nil, err
		}
		dir = next
	}
	return dir, nil
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (d *Directory) Name() string {
	if d.root {
		return "/"
	}
	return d.entry.Name
}

func (d *Directory) Path() string        { return d.path }
func (d *Directory) IsDir() bool         { return true }
func (d *Directory) Entry() fat.DirEntry { return d.entry }

// List returns the directory's children, wrapped as Directory and File
// nodes. The result is cached per handle; refresh forces a new listing.
func (d *Directory) List(ctx context.Context, refresh bool) ([]Node, error) {
	if d.cached != nil && !refresh {
		return d.cached, nil
	}

	var (
		entries []fat.DirEntry
		err     error
	)
	if d.root {
		entries, err = d.fs.ListPath(ctx, "/")
	} else {
		entries, err = d.fs.ListDir(ctx, d.entry)
	}
	if err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(entries))
	for _, e := range entries {
		if e.IsDir {
			nodes = append(nodes, &Directory{
				fs:    d.fs,
				path:  path.Join(d.path, e.Name),
				entry: e,
			})
		} else {
			nodes = append(nodes, &File{
				fs:    d.fs,
				path:  path.Join(d.path, e.Name),
				entry: e,
			})
		}
	}
	d.cached = nodes
	return nodes, nil
}

// GetFile finds a child file by name, case-insensitively.
func (d *Directory) GetFile(ctx context.Context, name string) (*File, error) {
	nodes, err := d.List(ctx, false)
	if err != nil {
		return nil, err
	}

	for _, n := range nodes {
		if f, ok := n.(*File); ok && d.fs.NamesEqual(f.Name(), name) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrFileNotFound, name)
}

// GetDirectory finds a child directory by name, case-insensitively.
func (d *Directory) GetDirectory(ctx context.Context, name string) (*Directory, error) {
	nodes, err := d.List(ctx, false)
	if err != nil {
		return nil, err
	}

	for _, n := range nodes {
		if sub, ok := n.(*Directory); ok && d.fs.NamesEqual(sub.Name(), name) {
			return sub, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrDirectoryNotFound, name)
}
