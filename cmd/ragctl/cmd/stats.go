package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Report lexical and vector index sizes for a project",
		Args:  cobra.NoArgs,
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

			stats := co.Stats()
			fmt.Fprintf(c.OutOrStdout(), "lexical documents: %d\n", stats.BM25Stats.DocumentCount)
			fmt.Fprintf(c.OutOrStdout(), "lexical terms:     %d\n", stats.BM25Stats.TermCount)
			fmt.Fprintf(c.OutOrStdout(), "vector count:      %d\n", stats.VectorCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "project root (default: detected project root)")
	return cmd
}
