package main

import (
	"fmt"
	goruntime "runtime"

	"github.com/spf13/cobra"

	runtime "github.com/chazu/tulip/lib/runtime"
	"github.com/chazu/tulip/vm"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tulip version %s\n", runtime.Version)
		fmt.Fprintln(cmd.OutOrStdout(), styles.Help.Render(
			fmt.Sprintf("image format %d, %s %s/%s", vm.ImageVersion, goruntime.Version(), goruntime.GOOS, goruntime.GOARCH)))
	},
}
