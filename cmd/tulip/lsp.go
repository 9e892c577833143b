package main

import (
	"io"

	"github.com/spf13/cobra"

	runtime "github.com/chazu/tulip/lib/runtime"
	"github.com/chazu/tulip/server"
)

var lspAddress string

var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Start the TulipScript language server",
	Long: `Start a Language Server Protocol server for editors.

By default the server speaks over stdio. With --tcp it listens on the given
address and serves one editor connection.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Natives only; scripts never run here.
		rt, err := runtime.New(&runtime.Config{Stdout: io.Discard})
		if err != nil {
			return err
		}
		defer rt.Close()

		s := server.NewLSP(rt, runtime.Version)
		if lspAddress != "" {
			log.Infof("language server listening on %s", lspAddress)
			return s.RunTCP(lspAddress)
		}
		return s.Run()
	},
}

func init() {
	lspCmd.Flags().StringVar(&lspAddress, "tcp", "", "listen on a TCP address instead of stdio")
}
