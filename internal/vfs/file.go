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
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/ostafen/aircard/internal/fat"
)

// File is a handle on one file of the volume.
type File struct {
	fs    FileSystem
	path  string
	entry fat.DirEntry
}

func (f *File) Name() string        { return f.entry.Name }
func (f *File) Path() string        { return f.path }
func (f *File) IsDir() bool         { return false }
func (f *File) Entry() fat.DirEntry { return f.entry }
func (f *File) Size() uint32        { return f.entry.Size }
func (f *File) ModTime() time.Time  { return f.entry.Modified }
func (f *File) Created() time.Time  { return f.entry.Created }

// Content fetches the whole file from the card.
func (f *File) Content(ctx context.Context) ([]byte, error) {
	return f.fs.FileContent(ctx, f.entry)
}

// WriteTo streams the file content to w.
func (f *File) WriteTo(ctx context.Context, w io.Writer) (int64, error) {
	return f.fs.WriteContent(ctx, f.entry, w)
}

// Download fetches the file and writes it to localPath on dst, creating
// parent directories as needed. It returns the number of bytes written.
func (f *File) Download(ctx context.Context, dst afero.Fs, localPath string) (int64, error) {
	if dir := filepath.Dir(localPath); dir != "." {
		if err := dst.MkdirAll(dir, 0755); err != nil {
			return 0, err
		}
	}

	out, err := dst.Create(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file %q: %w", localPath, err)
	}
	defer out.Close()

	w := bufio.NewWriterSize(out, 1024*1024)

	n, err := f.WriteTo(ctx, w)
	if err != nil {
		return n, err
	}
	return n, w.Flush()
}
