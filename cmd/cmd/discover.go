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
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/ostafen/aircard/internal/card"
	"github.com/ostafen/aircard/internal/transport"
	"github.com/ostafen/aircard/pkg/util/format"
)

func DefineDiscoverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "discover",
		Short:        "Probe the local network for cards",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         RunDiscover,
	}

	cmd.Flags().DurationP("duration", "d", 30*time.Second, "how long to listen for cards")
	return cmd
}

func RunDiscover(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	tr, err := transport.Listen(log)
	if err != nil {
		return err
	}
	defer tr.Close()

	fmt.Printf("[INFO] Probing %s, press Ctrl-C to stop...\n", cfg.BroadcastAddr)

	d, err := card.NewDiscovery(tr, log, cfg.BroadcastAddr, cardConfig(cfg), func(c *card.Card) {
		info := c.Info
		fmt.Printf("[INFO] Found %s card %s  mac %s  fw %s  %s  apMode=%v  %q\n",
			info.Type, info.IP, info.MAC, info.Version,
			format.FormatBytes(int64(info.Capacity)*512), info.APMode, info.Subver)
	})
	if err != nil {
		return err
	}
	defer d.Close()

	d.Start(cfg.ProbeInterval)

	duration, _ := cmd.Flags().GetDuration("duration")

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	select {
	case <-time.After(duration):
	case <-sigc:
	}

	fmt.Printf("[INFO] Discovery finished, %d card(s) found\n", len(d.Cards()))
	return nil
}
