package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"strictparent/internal/driver"
)

const cacheApp = "strictparent"

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the verdict cache used by check --disk-cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "dir",
		Short: "Print the cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache, err := driver.OpenDiskCache(cacheApp)
			if err != nil {
				return fmt.Errorf("failed to open cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cache.Dir())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Remove every cached verdict",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache, err := driver.OpenDiskCache(cacheApp)
			if err != nil {
				return fmt.Errorf("failed to open cache: %w", err)
			}
			if err := cache.DropAll(); err != nil {
				return fmt.Errorf("failed to clean cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleaned %s\n", cache.Dir())
			return nil
		},
	})
	return cmd
}
