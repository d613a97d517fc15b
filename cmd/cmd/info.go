package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ostafen/aircard/internal/disk"
	"github.com/ostafen/aircard/internal/fat"
	"github.com/ostafen/aircard/pkg/util/format"
)

func DefineInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "info <ip>",
		Short:        "Show the card's partition table and volume details",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunInfo,
	}
}

func RunInfo(cmd *cobra.Command, args []string) error {
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

	partitions, err := c.Partitions(cmd.Context())
	if err != nil {
		return err
	}
	if len(partitions) == 0 {
		return errors.New("no partitions found")
	}

	for _, p := range partitions {
		fmt.Printf("[INFO] Partition %d: %s, start LBA %d, %s\n",
			p.Index, p.Type, p.StartLBA, format.FormatBytes(int64(p.Sectors)*disk.SectorSize))

		if p.Type != disk.FSTypeFAT32 {
			continue
		}

		vol, err := fat.Mount(cmd.Context(), c, p, log)
		if err != nil {
			log.Warn("mounting volume failed", "partition", p.Index, "err", err)
			continue
		}

		boot := vol.Boot()
		fmt.Printf("[INFO]   Label: \t%q\n", boot.Label())
		fmt.Printf("[INFO]   Type: \t%s\n", boot.TypeLabel())
		fmt.Printf("[INFO]   Cluster: \t%s\n", format.FormatBytes(int64(vol.ClusterBytes())))
		fmt.Printf("[INFO]   Root cluster: \t%d\n", boot.RootCluster)
	}
	return nil
}
