package cli

import (
	"github.com/spf13/cobra"

	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

func newFeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Inspect or refresh the threat feed",
	}
	cmd.AddCommand(newFeedStatusCmd())
	cmd.AddCommand(newFeedRefreshCmd())
	return cmd
}

func newFeedStatusCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the threat feed snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newClient(cmd).FeedStatus(cmd.Context())
			if err != nil {
				return err
			}
			return renderFeed(cmd, st, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	return cmd
}

func newFeedRefreshCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch every configured feed now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newClient(cmd).RefreshFeed(cmd.Context())
			if err != nil {
				return err
			}
			return renderFeed(cmd, st, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	return cmd
}

func renderFeed(cmd *cobra.Command, st types.FeedStatus, jsonOut bool) error {
	if jsonOut {
		return printJSON(cmd, st)
	}
	printFeedStatus(cmd.OutOrStdout(), st)
	return nil
}
