// Package cli defines the cobra command tree for the portfolio server and
// its comment feed client.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/folio/portfolio/client"
	"github.com/folio/portfolio/config"
)

var (
	flagConfig string
	flagServer string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "portfolio",
		Short:         "Portfolio site server and comment feed client",
		Long:          "Serves the portfolio page and its comment API, provisions the database, and follows or posts comments from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: config/config.json or ./config.json)")
	root.PersistentFlags().StringVar(&flagServer, "server", "", "comment API base URL (default: comments.server_url)")

	root.AddCommand(
		newServeCmd(),
		newSetupCmd(),
		newWatchCmd(),
		newPostCmd(),
		newSnapshotCmd(),
	)

	return root
}

func loadConfig() (config.AppConfig, error) {
	return config.Load(flagConfig)
}

// newAPIClient creates a client for the --server flag or the configured URL.
func newAPIClient(cfg config.AppConfig) *client.Client {
	url := flagServer
	if url == "" {
		url = cfg.ServerURL
	}
	return client.New(url)
}
