package cmd

import (
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/ostafen/aircard/internal/card"
	"github.com/ostafen/aircard/internal/config"
	"github.com/ostafen/aircard/internal/env"
	"github.com/ostafen/aircard/internal/logger"
	"github.com/ostafen/aircard/internal/transport"
)

const AppName = env.AppName

func Execute() error {
	rootCmd := &cobra.Command{
		Use:   AppName,
		Short: AppName + " - WiFi SD/CF card client",
	}

	rootCmd.PersistentFlags().String("config", "", "path to the config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().String("broadcast", "", "discovery broadcast address")
	rootCmd.PersistentFlags().String("username", "", "card username")
	rootCmd.PersistentFlags().String("password", "", "card password")
	rootCmd.PersistentFlags().Duration("timeout", 0, "block read timeout")

	rootCmd.AddCommand(
		DefineDiscoverCommand(),
		DefineInfoCommand(),
		DefineLsCommand(),
		DefineGetCommand(),
		DefineWatchCommand(),
		DefineMountCommand(),
	)

	return rootCmd.Execute()
}

// setup loads the configuration, applies flag overrides and builds the
// logger every command shares.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("broadcast"); v != "" {
		cfg.BroadcastAddr = v
	}
	if v, _ := cmd.Flags().GetString("username"); v != "" {
		cfg.Username = v
	}
	if v, _ := cmd.Flags().GetString("password"); v != "" {
		cfg.Password = v
	}
	if v, _ := cmd.Flags().GetDuration("timeout"); v != 0 {
		cfg.ReadTimeout = v
	}

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.LogLevel))
	return cfg, log, nil
}

func cardConfig(cfg *config.Config) card.Config {
	return card.Config{
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  cfg.ReadTimeout,
	}
}

// connect binds the host UDP port and attaches a card handle for ipStr.
// The caller closes both.
func connect(cfg *config.Config, log *slog.Logger, ipStr string) (*transport.Transport, *card.Card, error) {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return nil, nil, fmt.Errorf("invalid card address %q", ipStr)
	}

	tr, err := transport.Listen(log)
	if err != nil {
		return nil, nil, fmt.Errorf("binding receive socket: %w", err)
	}

	return tr, card.New(tr, log, ip, cardConfig(cfg)), nil
}
