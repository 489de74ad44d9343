package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change scanner settings",
	}
	cmd.AddCommand(newSettingsGetCmd())
	cmd.AddCommand(newSettingsSetCmd())
	return cmd
}

func newSettingsGetCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newClient(cmd).GetSettings(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd, s)
			}
			printSettings(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	return cmd
}

func newSettingsSetCmd() *cobra.Command {
	var (
		enabled  bool
		safeMode bool
		language string
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change settings; only the flags given are updated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch types.SettingsPatch
			if cmd.Flags().Changed("enabled") {
				patch.Enabled = &enabled
			}
			if cmd.Flags().Changed("safe-mode") {
				patch.SafeMode = &safeMode
			}
			if cmd.Flags().Changed("language") {
				lang := types.Language(language)
				if !lang.Valid() {
					return fmt.Errorf("invalid language %q (want en, hi or gu)", language)
				}
				patch.Language = &lang
			}
			if patch == (types.SettingsPatch{}) {
				return fmt.Errorf("nothing to change: pass --enabled, --language or --safe-mode")
			}
			s, err := newClient(cmd).PutSettings(cmd.Context(), patch)
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().BoolVar(&enabled, "enabled", true, "Turn page scanning on or off")
	cmd.Flags().BoolVar(&safeMode, "safe-mode", false, "Turn safe mode on or off")
	cmd.Flags().StringVar(&language, "language", "", "Interface language: en, hi or gu")
	return cmd
}
