package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ostafen/aircard/pkg/util/format"
)

func DefineLsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ls <ip> [path]",
		Short:        "List a directory on the card",
		Args:         cobra.RangeArgs(1, 2),
		SilenceUsage: true,
		RunE:         RunLs,
	}

	cmd.Flags().IntP("partition", "p", 0, "partition index to mount")
	return cmd
}

func RunLs(cmd *cobra.Command, args []string) error {
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

	entries, err := vol.ListPath(cmd.Context(), path)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDir {
			fmt.Printf("d %10s  %s  %s\n", "-", e.Modified.Format("2006-01-02 15:04:05"), e.Name)
		} else {
			fmt.Printf("- %10s  %s  %s\n",
				format.FormatBytes(int64(e.Size)), e.Modified.Format("2006-01-02 15:04:05"), e.Name)
		}
	}
	return nil
}
