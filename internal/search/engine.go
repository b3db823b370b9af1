package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Brainwires/project-rag/internal/embed"
	"github.com/Brainwires/project-rag/internal/store"
)

// MinScoreLadder is the fallback sequence of thresholds tried, in order,
// when a caller-supplied MinScore filters out every result (spec §4.7.4
// step 6). The ladder is tried against the raw dense score only.
var MinScoreLadder = []float64{0.7, 0.6, 0.5, 0.4, 0.3}

// Engine implements the hybrid query: embed the query, search the vector
// store and lexical index in parallel, fuse with RRF, then apply filters
// and the min-score ladder.
type Engine struct {
	bm25     store.BM25Index
	vector   store.VectorStore
	embedder embed.Embedder
	config   EngineConfig
	fusion   *RRFFusion
	mu       sync.RWMutex
}

// Ensure Engine implements SearchEngine interface.
var _ SearchEngine = (*Engine)(nil)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Qwen3QueryInstruction is the instruction prefix for Qwen3 embedding queries.
// Per Qwen3 documentation: queries require instruction prefix for optimal retrieval.
// Documents are embedded without instruction; queries need task-specific prefix.
// See: https://huggingface.co/Qwen/Qwen3-Embedding-0.6B
const Qwen3QueryInstruction = "Instruct: Given a code search query, retrieve relevant code snippets that answer the query\nQuery:"

// formatQueryForEmbedding formats a query with Qwen3 instruction prefix.
func formatQueryForEmbedding(query string) string {
	return Qwen3QueryInstruction + query
}

// minInnerK is the floor applied to the per-side search depth so fusion has
// enough candidates to rank from even when the caller asked for a small k
// (spec §4.7.4 step 2: kInner = max(k, 50)).
const minInnerK = 50

// NewEngine creates a new hybrid search engine with the given dependencies.
// Returns an error if any required dependency is nil.
func NewEngine(
	bm25 store.BM25Index,
	vector store.VectorStore,
	embedder embed.Embedder,
	config EngineConfig,
) (*Engine, error) {
	if bm25 == nil {
		return nil, fmt.Errorf("%w: bm25 index is required", ErrNilDependency)
	}
	if vector == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	return &Engine{
		bm25:     bm25,
		vector:   vector,
		embedder: embedder,
		config:   config,
		fusion:   NewRRFFusionWithK(config.RRFConstant),
	}, nil
}

// Search executes the hybrid query described by spec §4.7.4: embed the
// query, search both stores in parallel, fuse with RRF, filter, and apply
// the min-score ladder.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	opts = e.applyDefaults(opts)
	kInner := opts.Limit
	if !opts.VectorOnly {
		if kInner < minInnerK {
			kInner = minInnerK
		}
	}

	if opts.BM25Only {
		bm25Results, err := e.bm25.Search(ctx, query, kInner)
		if err != nil {
			return nil, fmt.Errorf("BM25 search failed: %w", err)
		}
		return e.finish(ctx, bm25Results, nil, query, opts)
	}

	var bm25Results []*store.BM25Result
	var vecResults []*store.VectorResult
	var err error
	if opts.VectorOnly {
		vecResults, err = e.vectorSearch(ctx, query, kInner)
	} else {
		bm25Results, vecResults, err = e.parallelSearch(ctx, query, kInner)
	}

	if isDimensionMismatch(err) {
		slog.Warn("vector dimension mismatch, falling back to lexical-only search",
			slog.String("error", err.Error()))
		bm25Results, err = e.bm25.Search(ctx, query, kInner)
		if err != nil {
			return nil, fmt.Errorf("BM25 search failed (semantic disabled): %w", err)
		}
		return e.finish(ctx, bm25Results, nil, query, opts)
	}
	if err != nil && bm25Results == nil && vecResults == nil {
		return nil, err
	}

	return e.finish(ctx, bm25Results, vecResults, query, opts)
}

// isDimensionMismatch reports whether err is (or wraps) store.ErrDimensionMismatch.
func isDimensionMismatch(err error) bool {
	var dimErr store.ErrDimensionMismatch
	return errors.As(err, &dimErr)
}

// finish fuses, enriches, filters, and applies the min-score ladder to a
// pair of raw result lists, producing the final ranked output.
func (e *Engine) finish(ctx context.Context, bm25Results []*store.BM25Result, vecResults []*store.VectorResult, query string, opts SearchOptions) ([]*SearchResult, error) {
	fused := e.fusion.Fuse(bm25Results, vecResults, *opts.Weights)

	enriched, err := e.enrichResults(ctx, fused)
	if err != nil {
		return nil, err
	}

	filtered := ApplyFilters(enriched, opts)
	filtered = e.applyMinScore(filtered, opts)

	if len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}

	e.attachExplainData(filtered, query, opts, len(bm25Results), len(vecResults))

	return filtered, nil
}

// applyMinScore filters on dense score (not combined score, to stay
// backward-compatible with pure-vector callers) and, if that empties the
// list, walks MinScoreLadder until results appear or the ladder runs out
// (spec §4.7.4 step 6).
func (e *Engine) applyMinScore(results []*SearchResult, opts SearchOptions) []*SearchResult {
	if opts.MinScore <= 0 {
		return results
	}

	byMinScore := func(threshold float64) []*SearchResult {
		out := make([]*SearchResult, 0, len(results))
		for _, r := range results {
			if r.VecScore >= threshold {
				out = append(out, r)
			}
		}
		return out
	}

	if filtered := byMinScore(opts.MinScore); len(filtered) > 0 {
		return filtered
	}

	for _, threshold := range MinScoreLadder {
		if threshold >= opts.MinScore {
			continue
		}
		if filtered := byMinScore(threshold); len(filtered) > 0 {
			slog.Debug("min_score ladder fallback", slog.Float64("requested", opts.MinScore), slog.Float64("used", threshold))
			return filtered
		}
	}

	return results[:0]
}

// attachExplainData populates ExplainData on the first result when opts.Explain is true.
func (e *Engine) attachExplainData(results []*SearchResult, query string, opts SearchOptions, bm25Count, vecCount int) {
	if !opts.Explain || len(results) == 0 {
		return
	}
	results[0].Explain = &ExplainData{
		Query:             query,
		BM25ResultCount:   bm25Count,
		VectorResultCount: vecCount,
		Weights:           *opts.Weights,
		RRFConstant:       e.config.RRFConstant,
		BM25Only:          opts.BM25Only,
	}
}

// Index adds chunks to both the lexical index and the vector store.
func (e *Engine) Index(ctx context.Context, chunks []*store.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	docs := make([]*store.Document, len(chunks))
	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		docs[i] = &store.Document{ID: c.ID, Content: c.Content, Chunk: c}
		texts[i] = c.Content
		ids[i] = c.ID
	}

	embeddings, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("generate embeddings: %w", err)
	}

	if err := e.vector.Add(ctx, ids, embeddings); err != nil {
		return fmt.Errorf("add vectors: %w", err)
	}

	if err := e.bm25.Index(ctx, docs); err != nil {
		return fmt.Errorf("index lexical: %w", err)
	}

	return nil
}

// Delete removes chunks from both indices. Vector deletion runs first so a
// crash between the two leaves the system detectably inconsistent rather
// than silently dropping lexical-only orphans (spec §4.7.3).
func (e *Engine) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.vector.Delete(ctx, chunkIDs); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := e.bm25.Delete(ctx, chunkIDs); err != nil {
		return fmt.Errorf("delete lexical: %w", err)
	}
	return nil
}

// Stats returns engine statistics.
func (e *Engine) Stats() *EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &EngineStats{
		BM25Stats:   e.bm25.Stats(),
		VectorCount: e.vector.Count(),
	}
}

// Close releases all resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if err := e.bm25.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.vector.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// applyDefaults fills in default values for search options.
func (e *Engine) applyDefaults(opts SearchOptions) SearchOptions {
	if opts.Limit <= 0 {
		opts.Limit = e.config.DefaultLimit
	}
	if opts.Limit > e.config.MaxLimit {
		opts.Limit = e.config.MaxLimit
	}
	if opts.Filter == "" {
		opts.Filter = "all"
	}
	if opts.Weights == nil {
		w := e.config.DefaultWeights
		opts.Weights = &w
	}
	return opts
}

// vectorSearch embeds the query and searches the vector store alone.
func (e *Engine) vectorSearch(ctx context.Context, query string, limit int) ([]*store.VectorResult, error) {
	embedding, err := e.embedder.Embed(ctx, formatQueryForEmbedding(query))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return e.vector.Search(ctx, embedding, limit)
}

// parallelSearch executes BM25 and vector searches concurrently, returning
// partial results if one side fails (graceful degradation).
func (e *Engine) parallelSearch(ctx context.Context, query string, limit int) (
	bm25Results []*store.BM25Result,
	vecResults []*store.VectorResult,
	err error,
) {
	g, gctx := errgroup.WithContext(ctx)

	var bm25Err, vecErr error

	g.Go(func() error {
		var searchErr error
		bm25Results, searchErr = e.bm25.Search(gctx, query, limit)
		if searchErr != nil {
			bm25Err = searchErr
		}
		return nil
	})

	g.Go(func() error {
		embedding, embedErr := e.embedder.Embed(gctx, formatQueryForEmbedding(query))
		if embedErr != nil {
			vecErr = embedErr
			return nil
		}
		var searchErr error
		vecResults, searchErr = e.vector.Search(gctx, embedding, limit)
		if searchErr != nil {
			vecErr = searchErr
		}
		return nil
	})

	if waitErr := g.Wait(); waitErr != nil {
		return nil, nil, waitErr
	}

	if bm25Err != nil && vecErr != nil {
		return nil, nil, errors.Join(bm25Err, vecErr)
	}
	if isDimensionMismatch(vecErr) {
		return bm25Results, nil, vecErr
	}
	if bm25Err != nil {
		err = bm25Err
	} else if vecErr != nil {
		err = vecErr
	}

	return bm25Results, vecResults, err
}

// enrichResults fetches full chunk data using batch retrieval from the
// lexical index, which is also the chunk document store.
func (e *Engine) enrichResults(ctx context.Context, fused []*FusedResult) ([]*SearchResult, error) {
	if len(fused) == 0 {
		return nil, nil
	}

	ids := make([]string, len(fused))
	byID := make(map[string]*FusedResult, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
		byID[f.ChunkID] = f
	}

	chunks, err := e.bm25.GetChunks(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]*SearchResult, 0, len(chunks))
	for _, f := range fused {
		chunk, ok := chunks[f.ChunkID]
		if !ok {
			continue
		}
		results = append(results, &SearchResult{
			Chunk:        chunk,
			Score:        f.RRFScore,
			BM25Score:    f.BM25Score,
			VecScore:     f.VecScore,
			BM25Rank:     f.BM25Rank,
			VecRank:      f.VecRank,
			InBothLists:  f.InBothLists,
			Highlights:   e.calculateHighlights(chunk.Content, f.MatchedTerms),
			MatchedTerms: f.MatchedTerms,
		})
	}

	return results, nil
}

// calculateHighlights finds text ranges for matched terms.
func (e *Engine) calculateHighlights(content string, matchedTerms []string) []Range {
	if len(matchedTerms) == 0 || len(content) == 0 {
		return []Range{}
	}

	const maxMatchesPerTerm = 10
	highlights := make([]Range, 0, len(matchedTerms)*3)
	lowerContent := strings.ToLower(content)

	for _, term := range matchedTerms {
		if len(term) == 0 {
			continue
		}
		lowerTerm := strings.ToLower(term)
		start := 0
		matchCount := 0
		for matchCount < maxMatchesPerTerm {
			idx := strings.Index(lowerContent[start:], lowerTerm)
			if idx == -1 {
				break
			}
			absStart := start + idx
			highlights = append(highlights, Range{Start: absStart, End: absStart + len(term)})
			start = absStart + len(term)
			matchCount++
		}
	}

	if len(highlights) > 1 {
		sort.Slice(highlights, func(i, j int) bool {
			return highlights[i].Start < highlights[j].Start
		})
	}

	return highlights
}
