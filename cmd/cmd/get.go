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
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ostafen/aircard/internal/vfs"
	"github.com/ostafen/aircard/pkg/pbar"
)

func DefineGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "get <ip> <remote-path> [local-path]",
		Short:        "Download a file from the card",
		Args:         cobra.RangeArgs(2, 3),
		SilenceUsage: true,
		RunE:         RunGet,
	}

	cmd.Flags().IntP("partition", "p", 0, "partition index to mount")
	return cmd
}

func RunGet(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	tr, c, err := connect(cfg, log, args[0])
	if err != nil {
		return err
	}
	defer tr.Close()
	defer c.Close()

	partition, _ := cmd.Flags().GetInt("partition")
	vol, err := c.FileSystem(cmd.Context(), partition)
	if err != nil {
		return err
	}

	remotePath := args[1]
	remoteDir := path.Dir(remotePath)
	if remoteDir == "." {
		remoteDir = "/"
	}

	dir, err := vfs.OpenPath(cmd.Context(), vol, remoteDir)
	if err != nil {
		return err
	}

	file, err := dir.GetFile(cmd.Context(), path.Base(remotePath))
	if err != nil {
		return err
	}

	localPath := file.Name()
	if len(args) == 3 {
		localPath = args[2]
	}

	if dir := filepath.Dir(localPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	out, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer out.Close()

	fmt.Printf("[INFO] Downloading %s (%d bytes) to %s\n", file.Path(), file.Size(), localPath)

	bar := pbar.NewProgressBarState(int64(file.Size()))
	w := bufio.NewWriterSize(out, 1024*1024)

	n, err := file.WriteTo(cmd.Context(), bar.Writer(w))
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	bar.Finish()

	fmt.Printf("[INFO] Wrote %d bytes\n", n)
	return nil
}
