package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

var (
	red    = color.New(color.FgRed, color.Bold)
	green  = color.New(color.FgGreen, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	faint  = color.New(color.Faint)
)

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

func printResult(w io.Writer, res types.ScanResult) {
	if res.Skipped || res.Verdict == nil {
		yellow.Fprint(w, "SKIPPED  ")
		fmt.Fprintf(w, "%s (already checked)\n", res.URL)
		return
	}
	v := res.Verdict
	switch {
	case v.Malicious:
		red.Fprint(w, "MALICIOUS")
	case v.Error != "":
		yellow.Fprint(w, "UNKNOWN  ")
	default:
		green.Fprint(w, "SAFE     ")
	}
	fmt.Fprintf(w, " %s\n", res.URL)
	fmt.Fprintf(w, "          %s ", v.Reason)
	if v.Domain != "" {
		faint.Fprintf(w, "[source=%s risk=%d domain=%s]\n", v.Source, v.RiskScore, v.Domain)
	} else {
		faint.Fprintf(w, "[source=%s risk=%d]\n", v.Source, v.RiskScore)
	}
	if v.ResolvedURL != "" {
		faint.Fprintf(w, "          resolved to %s\n", v.ResolvedURL)
	}
	if v.Evidence != nil && v.Evidence.Total > 0 {
		faint.Fprintf(w, "          %d/%d engines flagged\n", v.Evidence.Positives, v.Evidence.Total)
	}
}

func printSnapshot(w io.Writer, snap types.Snapshot) {
	fmt.Fprintf(w, "scan %s: %d checked\n", snap.ID, snap.TotalScanned)
	for _, f := range snap.Found {
		red.Fprintf(w, "  ! %-4s ", f.Kind)
		fmt.Fprintf(w, "%s: %s\n", f.URL, f.Reason)
	}
	if len(snap.Found) == 0 {
		green.Fprintln(w, "  no threats found")
	}
	if n := len(snap.Clean); n > 0 {
		faint.Fprintf(w, "  %d link(s) confirmed clean by a reputation service\n", n)
	}
	if snap.RateLimited {
		yellow.Fprintln(w, "  a reputation service was rate limited; some links were only checked locally")
	}
}

func printFeedStatus(w io.Writer, st types.FeedStatus) {
	fmt.Fprintf(w, "entries:    %d\n", st.Size)
	if st.FetchedAt.IsZero() {
		fmt.Fprintln(w, "fetched at: never")
	} else {
		fmt.Fprintf(w, "fetched at: %s\n", st.FetchedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(w, "ttl:        %s\n", st.TTL)
	if st.Stale {
		yellow.Fprintln(w, "stale:      yes")
	}
	if st.Fallback {
		yellow.Fprintln(w, "using the built-in fallback set")
	}
}

func printSettings(w io.Writer, s types.Settings) {
	state := green.Sprint("enabled")
	if !s.Enabled {
		state = red.Sprint("disabled")
	}
	fmt.Fprintf(w, "scanning:  %s\n", state)
	fmt.Fprintf(w, "language:  %s\n", s.Language)
	fmt.Fprintf(w, "safe mode: %t\n", s.SafeMode)
}
