package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	runtime "github.com/chazu/tulip/lib/runtime"
	"github.com/chazu/tulip/manifest"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("tulip.cli")

var (
	verbose    int
	logFile    string
	cacheDB    string
	maxFrames  int
	trace      bool
	noManifest bool

	project *manifest.Manifest
)

// exitError carries a process exit status out of a command.
type exitError struct {
	status runtime.Status
}

func (e *exitError) Error() string {
	return e.status.String()
}

var rootCmd = &cobra.Command{
	Use:   "tulip [script [args...]]",
	Short: "TulipScript interpreter",
	Long: `tulip runs TulipScript programs.

With a script argument it executes the file and exits with the script's
status. Without arguments it starts an interactive REPL; lines are collected
until every '{' is closed.

Settings are read from the nearest tulip.toml; flags override them.`,
	Version:           runtime.Version,
	Args:              cobra.ArbitraryArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return withRuntime(cmd, args, func() error {
				return newREPL(runtime.Global(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()).Run()
			})
		}
		return runScript(cmd, args[0], args)
	},
}

var runCmd = &cobra.Command{
	Use:   "run [script [args...]]",
	Short: "Run a script, or the project entry from tulip.toml",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return runScript(cmd, args[0], args)
		}
		if project == nil {
			return errors.New("no script given and no tulip.toml found")
		}
		entry := project.EntryPath()
		return runScript(cmd, entry, []string{entry})
	},
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return int(ee.status)
	}
	fmt.Fprintln(os.Stderr, styles.Error.Render("Error: "+err.Error()))
	return 1
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "log verbosity (repeat for more)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&cacheDB, "cache-db", "", "compiled-script cache database")
	rootCmd.PersistentFlags().IntVar(&maxFrames, "max-frames", 0, "call depth limit (0 for the default)")
	rootCmd.PersistentFlags().BoolVar(&trace, "trace", false, "print a disassembly of every compiled unit to stderr")
	rootCmd.PersistentFlags().BoolVar(&noManifest, "no-manifest", false, "ignore tulip.toml")

	// Script arguments belong to the script.
	rootCmd.Flags().SetInterspersed(false)
	runCmd.Flags().SetInterspersed(false)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(lspCmd)
	rootCmd.AddCommand(cacheCmd)
}

// setup loads tulip.toml and configures logging.
func setup(cmd *cobra.Command, args []string) error {
	project = nil
	if !noManifest {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		if project, err = manifest.FindAndLoad(wd); err != nil {
			return err
		}
	}

	verbosity := verbose
	path := logFile
	if project != nil {
		if !cmd.Flags().Changed("verbose") {
			verbosity = project.Log.Verbosity
		}
		if path == "" {
			path = project.LogFilePath()
		}
	}
	if path == "" {
		commonlog.Configure(verbosity, nil)
	} else {
		commonlog.Configure(verbosity, &path)
	}

	if project != nil {
		log.Debugf("using %s from %s", manifest.FileName, project.Dir)
	}
	return nil
}

// runtimeConfig merges defaults, tulip.toml and flags.
func runtimeConfig(cmd *cobra.Command) *runtime.Config {
	cfg := runtime.DefaultConfig()
	cfg.Stdout = cmd.OutOrStdout()

	if project != nil {
		cfg.MaxFrames = project.Runtime.MaxFrames
		if db := project.CacheDBPath(); db != "" {
			cfg.CacheDB = db
		}
		if project.Runtime.Trace {
			cfg.Trace = cmd.ErrOrStderr()
		}
	}

	if maxFrames > 0 {
		cfg.MaxFrames = maxFrames
	}
	if cacheDB != "" {
		cfg.CacheDB = cacheDB
	}
	if trace {
		cfg.Trace = cmd.ErrOrStderr()
	}
	return cfg
}

// withRuntime runs fn with the process-wide runtime initialized.
func withRuntime(cmd *cobra.Command, args []string, fn func() error) error {
	if err := runtime.Init(args, runtimeConfig(cmd)); err != nil {
		return err
	}
	defer runtime.Free()
	return fn()
}

func runScript(cmd *cobra.Command, path string, args []string) error {
	return withRuntime(cmd, args, func() error {
		out := runtime.RunFile(path)
		if !out.OK() {
			reportFailure(cmd.ErrOrStderr(), out)
			return &exitError{status: out.Status}
		}
		return nil
	})
}
