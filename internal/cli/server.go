package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Smeet2005/PHISHSCAN/internal/server"
	"github.com/Smeet2005/PHISHSCAN/pkg/observability"
)

func newServerCmd(version string) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the phishscan server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := loadLocalConfig(configPath)
			if err != nil {
				return err
			}
			logger, closer, err := observability.NewLogger(observability.LogOptions{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Output: cfg.Logging.Output,
			})
			if err != nil {
				return err
			}
			defer closer.Close()
			slog.SetDefault(logger)

			server.Version = version
			s, err := server.New(cfg, logger)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to server config YAML (default: ./config.yml, ./config.yaml, or /etc/phishscan/config.yaml)")
	return cmd
}
