package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and prune the local cache",
}

var cacheDirCmd = &cobra.Command{
	Use:   "dir",
	Short: "Print the cache root directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), AV.Manager.Store().Root())
		return nil
	},
}

var cacheRmCmd = &cobra.Command{
	Use:   "rm <kind> <uuid>",
	Short: "Remove one artifact from the local cache",
	Long:  `Delete a cache entry. The remote copy is untouched, the next download fetches it again.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, id, err := parseTarget(args)
		if err != nil {
			return err
		}

		store := AV.Manager.Store()
		dir, err := store.Path(currentNamespace(), kind, id)
		if err != nil {
			return err
		}

		// 与 Upload/Download 使用同一把锁
		unlock, err := store.Lock(dir)
		if err != nil {
			return err
		}
		defer unlock()

		if err := store.Remove(dir); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", dir)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheDirCmd, cacheRmCmd)
	rootCmd.AddCommand(cacheCmd)
}
