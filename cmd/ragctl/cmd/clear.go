package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newClearCmd() *cobra.Command {
	var root string
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every chunk from the lexical and vector stores",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			r, err := resolveRoot(root)
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("refusing to clear %s without --yes", r)
			}

			co, closeFn, err := openCoordinator(c.Context(), r)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := co.ClearAll(c.Context(), r); err != nil {
				return fmt.Errorf("clear failed: %w", err)
			}
			fmt.Fprintf(c.OutOrStdout(), "cleared index for %s\n", r)
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "project root (default: detected project root)")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the destructive clear")
	return cmd
}
