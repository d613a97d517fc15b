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

// Package vfs provides a lazy directory/file tree over a mounted volume.
package vfs

import (
	"context"
	"errors"
	"io"

	"github.com/ostafen/aircard/internal/fat"
)

// ErrFileNotFound reports a missing file during a name lookup.
var ErrFileNotFound = errors.New("file not found")

// ErrDirectoryNotFound mirrors the volume-level sentinel so callers need
// only this package for lookups.
var ErrDirectoryNotFound = fat.ErrDirectoryNotFound

// FileSystem is the capability set a volume exposes to the tree. It
// exists to keep Directory and File mockable; *fat.Volume implements it.
type FileSystem interface {
	ListPath(ctx context.Context, path string) ([]fat.DirEntry, error)
	ListDir(ctx context.Context, entry fat.DirEntry) ([]fat.DirEntry, error)
	FileContent(ctx context.Context, entry fat.DirEntry) ([]byte, error)
	WriteContent(ctx context.Context, entry fat.DirEntry, w io.Writer) (int64, error)
	NamesEqual(a, b string) bool
}

// Node is a child of a Directory: either a *Directory or a *File.
type Node interface {
	Name() string
	IsDir() bool
	Entry() fat.DirEntry
}
