// Command depotctl is a thin CLI surface around the installation
// directory manager. Argument parsing and help rendering are the
// out-of-scope external collaborator named in the spec; this binary
// exists so the engine is exercised as a program, not just a library.
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/depotctl/depotctl/internal/pkg/cliutil"
	"github.com/depotctl/depotctl/pkg/install"
	"github.com/depotctl/depotctl/pkg/progress"
	"github.com/depotctl/depotctl/pkg/ref"
)

var (
	systemScope bool
	systemBase  string
	remoteName  string
)

var root = &cobra.Command{
	Use:   "depotctl",
	Short: "Manage sandboxed application deployments",
}

func currentInstallation() *install.Installation {
	if systemScope {
		return install.System(systemBase)
	}
	return install.User()
}

var deployCmd = &cobra.Command{
	Use:   "deploy <ref> [checksum]",
	Short: "Pull and deploy a ref, updating its active deployment",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := ref.Parse(args[0])
		if err != nil {
			return err
		}
		var checksum string
		if len(args) == 2 {
			checksum = args[1]
		}

		engine, err := currentInstallation().Engine(ctx)
		if err != nil {
			return err
		}
		got, err := engine.Deploy(ctx, r, checksum, remoteName, progress.NewConsole())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deployed %s at %s\n", r, got)
		return nil
	},
}

var undeployCmd = &cobra.Command{
	Use:   "undeploy <ref> <checksum>",
	Short: "Remove one deployed checksum of a ref",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := ref.Parse(args[0])
		if err != nil {
			return err
		}
		engine, err := currentInstallation().Engine(cmd.Context())
		if err != nil {
			return err
		}
		return engine.Undeploy(r, args[1], false)
	},
}

var listCmd = &cobra.Command{
	Use:   "list [app|runtime]",
	Short: "List deployed refs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := ref.App
		if len(args) == 1 {
			kind = ref.Kind(args[0])
		}
		engine, err := currentInstallation().Engine(cmd.Context())
		if err != nil {
			return err
		}
		refs, err := engine.ListRefs(kind)
		if err != nil {
			return err
		}
		for _, r := range refs {
			fmt.Fprintln(cmd.OutOrStdout(), r)
		}
		return nil
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove unreferenced objects from the repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := currentInstallation().Engine(cmd.Context())
		if err != nil {
			return err
		}
		result, err := engine.Prune(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pruned %d/%d objects, %d bytes freed\n",
			result.PrunedObjects, result.TotalObjects, result.FreedBytes)
		return nil
	},
}

func init() {
	root.PersistentFlags().BoolVar(&systemScope, "system", false, "operate on the system-wide installation")
	root.PersistentFlags().StringVar(&systemBase, "system-base", "/var/lib/depotctl", "system installation base directory")
	deployCmd.Flags().StringVar(&remoteName, "remote", "", "remote to pull from (defaults to the deployment's origin)")

	root.AddCommand(deployCmd, undeployCmd, listCmd, pruneCmd)
}

func main() {
	cliutil.Execute(root)
}
