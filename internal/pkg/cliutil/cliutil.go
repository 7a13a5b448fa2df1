// Package cliutil adapts the teacher's cobra bootstrap (mantle/cli) to
// this module: wiring a --log-level persistent flag to capnslog and
// running the command tree. The multicall-entrypoint and version
// subcommand pieces of the original don't apply to a single-binary CLI
// and are left out.
package cliutil

import (
	"os"

	"github.com/coreos/pkg/capnslog"
	"github.com/spf13/cobra"
)

var (
	logDebug   bool
	logVerbose bool
	logLevel   = capnslog.NOTICE

	plog = capnslog.NewPackageLogger("github.com/depotctl/depotctl", "cli")
)

// Execute wires shared logging flags onto root and runs it. It does not return.
func Execute(root *cobra.Command) {
	root.PersistentFlags().Var(&logLevel, "log-level", "Set global log level.")
	root.PersistentFlags().BoolVarP(&logVerbose, "verbose", "v", false, "Alias for --log-level=INFO")
	root.PersistentFlags().BoolVarP(&logDebug, "debug", "d", false, "Alias for --log-level=DEBUG")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		startLogging(cmd)
		return nil
	}

	if err := root.Execute(); err != nil {
		plog.Fatal(err)
	}
	os.Exit(0)
}

func startLogging(cmd *cobra.Command) {
	switch {
	case logDebug:
		logLevel = capnslog.DEBUG
	case logVerbose:
		logLevel = capnslog.INFO
	}
	capnslog.SetFormatter(capnslog.NewStringFormatter(cmd.OutOrStderr()))
	capnslog.SetGlobalLogLevel(logLevel)
}
