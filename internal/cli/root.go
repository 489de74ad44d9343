package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Smeet2005/PHISHSCAN/internal/client"
)

const defaultServer = "http://127.0.0.1:8787"

func NewRoot(version string) *cobra.Command {
	cfg := &clientConfig{}
	cmd := &cobra.Command{
		Use:           "phishscan",
		Short:         "phishscan: URL risk classification",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version
	cmd.SetVersionTemplate("phishscan {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfg.serverAddr, "server", getenvDefault("PHISHSCAN_SERVER", defaultServer), "phishscan server base URL")
	cmd.PersistentFlags().StringVar(&cfg.apiKey, "api-key", getenvDefault("PHISHSCAN_API_KEY", ""), "API key (sent as X-API-Key)")

	cmd.AddCommand(newServerCmd(version))
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newFeedCmd())
	cmd.AddCommand(newSettingsCmd())
	cmd.AddCommand(newVersionCmd(version))

	return cmd
}

type clientConfig struct {
	serverAddr string
	apiKey     string
}

func getClientConfig(cmd *cobra.Command) *clientConfig {
	serverAddr, _ := cmd.Root().PersistentFlags().GetString("server")
	apiKey, _ := cmd.Root().PersistentFlags().GetString("api-key")
	if serverAddr == "" {
		serverAddr = defaultServer
	}
	return &clientConfig{serverAddr: serverAddr, apiKey: apiKey}
}

func newClient(cmd *cobra.Command) *client.Client {
	cfg := getClientConfig(cmd)
	return client.New(cfg.serverAddr, cfg.apiKey)
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the phishscan version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("phishscan %s\n", version)
		},
	}
}
