package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/geoproxy/internal/allowlist"
)

func newValidateCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and print the resolved allow-list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			table, err := allowlist.FromConfig(cfg.AllowList)
			if err != nil {
				return fmt.Errorf("invalid allow-list: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "configuration is valid")
			for _, key := range table.Keys() {
				entry, _ := table.Lookup(key)
				fmt.Fprintf(out, "  %-12s %s (%s)\n", key, entry.BaseURL, entry.CacheControl())
			}
			return nil
		},
	}
}
