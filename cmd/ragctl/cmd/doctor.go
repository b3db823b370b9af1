package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	var root string
	var repair bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check cross-store consistency between the lexical and vector stores",
		Long: `Reports chunk ids present in only one of the lexical index and vector
store (spec §4.7.5). With --repair, deletes the orphaned ids from whichever
store still holds them.`,
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

			report, err := co.CheckConsistency(c.Context())
			if err != nil {
				return fmt.Errorf("consistency check failed: %w", err)
			}

			fmt.Fprintf(c.OutOrStdout(), "checked %d ids in %s\n", report.Checked, report.Duration)
			fmt.Fprintf(c.OutOrStdout(), "orphan vector (missing lexical): %d\n", len(report.OrphanVector))
			fmt.Fprintf(c.OutOrStdout(), "orphan lexical (missing vector): %d\n", len(report.OrphanLexical))

			if repair && (len(report.OrphanVector) > 0 || len(report.OrphanLexical) > 0) {
				if err := co.RepairConsistency(c.Context(), report); err != nil {
					return fmt.Errorf("repair failed: %w", err)
				}
				fmt.Fprintln(c.OutOrStdout(), "repaired")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "project root (default: detected project root)")
	cmd.Flags().BoolVar(&repair, "repair", false, "delete orphaned ids from whichever store still holds them")
	return cmd
}
