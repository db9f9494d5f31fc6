package main

import (
	"os"

	"ezi-bridge/config"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ezi",
	Short: "Front-end to host call bridge",
	Long: `ezi - run and talk to an Ezi host.

The host answers namespaced calls (windowm, tray, terminal, version,
filesystem) from front-ends over TCP frames, WebSocket or Redis Streams.
Settings come from ezi.yaml, EZI_* environment variables and flags, in
increasing priority.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		lvl, _ := cmd.Flags().GetString("log-level")
		level, err := zerolog.ParseLevel(lvl)
		if err != nil {
			return errors.Wrapf(err, "log level %q", lvl)
		}
		zerolog.SetGlobalLevel(level)
		if pretty, _ := cmd.Flags().GetBool("pretty-log"); pretty {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to ezi.yaml (defaults apply when empty)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty-log", false, "Human readable logs on stderr")
	rootCmd.PersistentFlags().String("transport", "", "Bridge transport: tcp, ws, redis or memory")
	rootCmd.PersistentFlags().String("address", "", "Bridge address")
	rootCmd.PersistentFlags().String("codec", "", "Envelope codec: json or binary")
}

// loadConfig reads --config and applies the persistent bridge flags over it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("transport") {
		cfg.Bridge.Transport, _ = flags.GetString("transport")
	}
	if flags.Changed("address") {
		cfg.Bridge.Address, _ = flags.GetString("address")
	}
	if flags.Changed("codec") {
		cfg.Bridge.Codec, _ = flags.GetString("codec")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid flags")
	}
	return cfg, nil
}
