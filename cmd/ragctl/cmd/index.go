package cmd

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Brainwires/project-rag/internal/coordinator"
)

func newIndexCmd() *cobra.Command {
	var force bool
	var include []string
	var exclude []string

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a project directory for hybrid search",
		Long: `Walks the given directory (defaulting to the current project root),
chunks every indexable file, embeds the chunks, and upserts them into the
lexical and vector stores. Runs full indexing the first time a root is seen
and incremental indexing (new/modified/deleted file classification against
the cached file hashes) on every subsequent run, unless --force is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var arg string
			if len(args) == 1 {
				arg = args[0]
			}
			root, err := resolveRoot(arg)
			if err != nil {
				return err
			}

			bar := progressbar.NewOptions(-1,
				progressbar.OptionSetDescription(fmt.Sprintf("indexing %s", root)),
				progressbar.OptionSpinnerType(14),
				progressbar.OptionSetWriter(c.OutOrStdout()),
			)
			defer bar.Finish()

			co, closeFn, err := openCoordinator(c.Context(), root)
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := co.Index(c.Context(), root, coordinator.IndexOptions{
				Force:           force,
				IncludePatterns: include,
				ExcludePatterns: exclude,
			})
			if err != nil {
				return fmt.Errorf("indexing failed: %w", err)
			}

			fmt.Fprintf(c.OutOrStdout(), "mode=%s files=%d chunks=%d new=%d modified=%d unchanged=%d deleted=%d duration=%s\n",
				result.Mode, result.Files, result.Chunks, result.New, result.Modified, result.Unchanged, result.Deleted, result.Duration)
			for _, e := range result.Errors {
				fmt.Fprintf(c.ErrOrStderr(), "warning: %s\n", e)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "discard the cached hashes and run full indexing")
	cmd.Flags().StringSliceVar(&include, "include", nil, "override configured include patterns")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "override configured exclude patterns")

	return cmd
}
