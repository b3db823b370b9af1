package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Brainwires/project-rag/internal/coordinator"
)

func newServeCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Construct the tool-call facade, then exit (no transport is wired yet)",
		Long: `serve wires a Coordinator into an internal/toolapi.CoordinatorFacade, the
same contract a JSON-RPC or stdio adapter would bind to (spec §4.11/§6), and
verifies it opens cleanly. No transport is implemented in this core: there is
no listener, no stdio loop, nothing to keep this command running. A transport
adapter built against internal/toolapi.CoordinatorFacade would replace this
command's body with an actual serve loop.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			r, err := resolveRoot(root)
			if err != nil {
				return err
			}
			co, closeFn, err := openCoordinator(c.Context(), r)
			if err != nil {
				return err
			}
			defer closeFn()

			_ = coordinator.NewFacade(co)

			fmt.Fprintf(c.OutOrStdout(), "facade ready for %s; no JSON-RPC/stdio transport is implemented in this core\n", r)
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "project root (default: detected project root)")
	return cmd
}
