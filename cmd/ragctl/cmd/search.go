package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Brainwires/project-rag/internal/search"
)

func newSearchCmd() *cobra.Command {
	var root string
	var limit int
	var minScore float64
	var bm25Only bool
	var vectorOnly bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid search query against an indexed project",
		Args:  cobra.ExactArgs(1),
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

			results, err := co.Query(c.Context(), args[0], search.SearchOptions{
				Limit:      limit,
				MinScore:   minScore,
				BM25Only:   bm25Only,
				VectorOnly: vectorOnly,
			})
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			if len(results) == 0 {
				fmt.Fprintln(c.OutOrStdout(), "no results")
				return nil
			}
			for i, res := range results {
				fmt.Fprintf(c.OutOrStdout(), "%2d. %s:%d-%d  score=%.4f  bm25=%.4f  vec=%.4f\n",
					i+1, res.Chunk.RelativePath, res.Chunk.StartLine, res.Chunk.EndLine,
					res.Score, res.BM25Score, res.VecScore)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "project root (default: detected project root)")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of results")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum dense score; falls back through the score ladder if empty")
	cmd.Flags().BoolVar(&bm25Only, "bm25-only", false, "keyword-only search, skipping the vector store")
	cmd.Flags().BoolVar(&vectorOnly, "vector-only", false, "semantic-only search, skipping the lexical index")

	return cmd
}
