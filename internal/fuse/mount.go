//go:build !linux
// +build !linux

package fuse

import (
	"fmt"

	"github.com/ostafen/aircard/internal/vfs"
)

func Mount(mountpoint string, root *vfs.Directory) error {
	return fmt.Errorf("FUSE mount is only supported on Linux")
}
