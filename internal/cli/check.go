package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Smeet2005/PHISHSCAN/internal/detect"
	"github.com/Smeet2005/PHISHSCAN/internal/server"
	"github.com/Smeet2005/PHISHSCAN/pkg/observability"
	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

type localOptions struct {
	local      bool
	configPath string
}

func (o *localOptions) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.local, "local", false, "Run the detection pipeline in-process instead of asking the server")
	cmd.Flags().StringVar(&o.configPath, "config", "", "Config file for --local (default: discovered like the server)")
}

// open builds the pipeline in-process. Logs go to stderr at warn level so
// they do not mix with command output.
func (o *localOptions) open() (*server.Components, error) {
	cfg, err := loadLocalConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(observability.NewHandler(os.Stderr, observability.LogOptions{Level: "warn"}))
	return server.BuildComponents(cfg, logger)
}

func newCheckCmd() *cobra.Command {
	var (
		lo      localOptions
		base    string
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "check URL...",
		Short: "Classify one or more URLs",
		Long:  "Classify URLs as malicious or safe. Exits with status 2 when any URL is malicious.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var results []types.ScanResult
			if lo.local {
				comps, err := lo.open()
				if err != nil {
					return err
				}
				defer comps.Close()
				pass := detect.NewPass()
				for _, u := range args {
					res := types.ScanResult{URL: u, Kind: types.CandidateLink}
					if v, ok := comps.Orchestrator.Classify(ctx, pass, u, base); ok {
						res.Verdict = &v
					} else {
						res.Skipped = true
					}
					results = append(results, res)
				}
			} else {
				resp, err := newClient(cmd).ClassifyBatch(ctx, args, base)
				if err != nil {
					return err
				}
				results = resp.Results
			}

			if jsonOut {
				if err := printJSON(cmd, results); err != nil {
					return err
				}
			} else {
				for _, res := range results {
					printResult(cmd.OutOrStdout(), res)
				}
			}
			for _, res := range results {
				if res.Verdict != nil && res.Verdict.Malicious {
					return &ExitError{code: exitMaliciousFound}
				}
			}
			return nil
		},
	}
	lo.register(cmd)
	cmd.Flags().StringVar(&base, "base", "", "Base URL for resolving relative URLs")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print results as JSON")
	return cmd
}
