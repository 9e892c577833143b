package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	runtime "github.com/chazu/tulip/lib/runtime"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the compiled-script cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached units, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		units, err := c.Units()
		if err != nil {
			return err
		}
		for _, u := range units {
			fmt.Fprintln(cmd.OutOrStdout(), u)
		}
		fmt.Fprintln(cmd.OutOrStdout(), styles.Help.Render(fmt.Sprintf("%d cached in %s", len(units), c.Path())))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached image",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		n, err := c.Count()
		if err != nil {
			return err
		}
		if err := c.Clear(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached units\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func openCache(cmd *cobra.Command) (*runtime.ScriptCache, error) {
	path := runtimeConfig(cmd).CacheDB
	if path == "" {
		return nil, errors.New("no cache configured (use --cache-db, TULIP_CACHE_DB or runtime.cache-db in tulip.toml)")
	}
	return runtime.OpenScriptCache(path)
}
