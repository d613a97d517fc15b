package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ostafen/aircard/internal/vfs"
	"github.com/ostafen/aircard/internal/watch"
)

func DefineWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "watch <ip> [path]",
		Short:        "Watch a card directory for new, modified and removed files",
		Args:         cobra.RangeArgs(1, 2),
		SilenceUsage: true,
		RunE:         RunWatch,
	}

	cmd.Flags().IntP("partition", "p", 0, "partition index to mount")
	cmd.Flags().DurationP("interval", "i", 0, "polling interval")
	return cmd
}

func RunWatch(cmd *cobra.Command, args []string) error {
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

	path := "/"
	if len(args) == 2 {
		path = args[1]
	}

	dir, err := vfs.OpenPath(cmd.Context(), vol, path)
	if err != nil {
		return err
	}

	interval, _ := cmd.Flags().GetDuration("interval")
	if interval == 0 {
		interval = cfg.WatchInterval
	}

	w := watch.New(dir, log, watch.Config{
		Interval: interval,
		Callbacks: watch.Callbacks{
			OnNewFile: func(f *vfs.File) {
				fmt.Printf("[NEW] %s (%d bytes)\n", f.Path(), f.Size())
			},
			OnFileModified: func(f *vfs.File) {
				fmt.Printf("[MOD] %s (%d bytes)\n", f.Path(), f.Size())
			},
			OnFileRemoved: func(f *vfs.File) {
				fmt.Printf("[DEL] %s\n", f.Path())
			},
		},
	})
	if err := w.Start(cmd.Context()); err != nil {
		return err
	}
	defer w.Close()

	fmt.Printf("[INFO] Watching %s every %s, press Ctrl-C to stop...\n", dir.Path(), interval)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	<-sigc
	return nil
}
