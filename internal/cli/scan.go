package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

const maxPageBytes = 4 << 20

func newScanCmd() *cobra.Command {
	var (
		lo      localOptions
		pageURL string
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "scan FILE|URL|-",
		Short: "Scan the links and forms of an HTML page",
		Long:  "Scan every link and form target of an HTML page read from a file, stdin (-) or fetched from an http(s) URL. Exits with status 2 when a threat is found.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			html, src, err := readPage(ctx, cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if pageURL == "" {
				pageURL = src
			}
			req := types.ScanRequest{PageURL: pageURL, HTML: html}

			var snap types.Snapshot
			if lo.local {
				comps, err := lo.open()
				if err != nil {
					return err
				}
				defer comps.Close()
				snap, err = comps.Scanner.Scan(ctx, req, nil)
				if err != nil {
					return err
				}
			} else {
				snap, err = newClient(cmd).Scan(ctx, req)
				if err != nil {
					return err
				}
			}

			if jsonOut {
				if err := printJSON(cmd, snap); err != nil {
					return err
				}
			} else {
				printSnapshot(cmd.OutOrStdout(), snap)
			}
			if len(snap.Found) > 0 {
				return &ExitError{code: exitMaliciousFound}
			}
			return nil
		},
	}
	lo.register(cmd)
	cmd.Flags().StringVar(&pageURL, "page-url", "", "URL the page was loaded from, used to resolve relative links")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the snapshot as JSON")
	return cmd
}

// readPage returns the HTML named by arg and, for fetched pages, the URL it
// came from.
func readPage(ctx context.Context, stdin io.Reader, arg string) (string, string, error) {
	switch {
	case arg == "-":
		b, err := io.ReadAll(io.LimitReader(stdin, maxPageBytes))
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), "", nil
	case strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://"):
		return fetchPage(ctx, arg)
	default:
		f, err := os.Open(arg)
		if err != nil {
			return "", "", err
		}
		defer f.Close()
		b, err := io.ReadAll(io.LimitReader(f, maxPageBytes))
		if err != nil {
			return "", "", fmt.Errorf("read %s: %w", arg, err)
		}
		return string(b), "", nil
	}
}

func fetchPage(ctx context.Context, u string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("fetch page: %s", resp.Status)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", "", fmt.Errorf("fetch page: %w", err)
	}
	return string(b), resp.Request.URL.String(), nil
}
