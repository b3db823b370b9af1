package coordinator

import (
	"context"
	"time"

	"github.com/Brainwires/project-rag/internal/search"
	"github.com/Brainwires/project-rag/internal/toolapi"
)

// Facade adapts Coordinator to toolapi.CoordinatorFacade, the contract a
// future JSON-RPC transport adapter would bind to (spec §4.11/§6). No
// transport is implemented here; this type exists so the contract is
// exercised end to end by something other than the transport itself.
type Facade struct {
	co *Coordinator
}

// NewFacade wraps co as a toolapi.CoordinatorFacade.
func NewFacade(co *Coordinator) *Facade {
	return &Facade{co: co}
}

var _ toolapi.CoordinatorFacade = (*Facade)(nil)

func (f *Facade) IndexCodebase(ctx context.Context, req toolapi.IndexCodebaseRequest) (toolapi.IndexCodebaseResponse, error) {
	result, err := f.co.Index(ctx, req.Path, IndexOptions{
		IncludePatterns: req.IncludePatterns,
		ExcludePatterns: req.ExcludePatterns,
	})
	resp := toolapi.IndexCodebaseResponse{
		FilesIndexed:        result.Files,
		ChunksCreated:       result.Chunks,
		EmbeddingsGenerated: result.Chunks,
		DurationMs:          result.Duration.Milliseconds(),
		Errors:              result.Errors,
		Mode:                string(result.Mode),
	}
	return resp, err
}

func (f *Facade) QueryCodebase(ctx context.Context, req toolapi.QueryCodebaseRequest) (toolapi.QueryCodebaseResponse, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 10
	}
	minScore := req.MinScore
	if req.MinScore == 0 {
		minScore = 0.7
	}

	start := time.Now()
	results, err := f.co.Query(ctx, req.Query, search.SearchOptions{
		Limit:      limit,
		MinScore:   minScore,
		VectorOnly: !req.Hybrid,
	})
	if err != nil {
		return toolapi.QueryCodebaseResponse{}, err
	}

	return toolapi.QueryCodebaseResponse{
		Results:    toToolAPIResults(results),
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

func (f *Facade) SearchByFilters(ctx context.Context, req toolapi.SearchByFiltersRequest) (toolapi.QueryCodebaseResponse, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 10
	}

	start := time.Now()
	results, err := f.co.Query(ctx, req.Query, search.SearchOptions{
		Limit:    limit,
		MinScore: req.MinScore,
		Scopes:   req.PathPatterns,
	})
	if err != nil {
		return toolapi.QueryCodebaseResponse{}, err
	}

	if len(req.Languages) > 0 {
		wanted := make(map[string]bool, len(req.Languages))
		for _, l := range req.Languages {
			wanted[l] = true
		}
		filtered := results[:0]
		for _, r := range results {
			if wanted[r.Chunk.Language] {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}

	return toolapi.QueryCodebaseResponse{
		Results:    toToolAPIResults(results),
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

func (f *Facade) GetStatistics(ctx context.Context, project string) (toolapi.GetStatisticsResponse, error) {
	stats := f.co.Stats()

	ids, err := f.co.bm25.AllIDs()
	if err != nil {
		return toolapi.GetStatisticsResponse{}, err
	}
	chunks, err := f.co.bm25.GetChunks(ctx, ids)
	if err != nil {
		return toolapi.GetStatisticsResponse{}, err
	}

	breakdown := make(map[string]int)
	files := make(map[string]bool)
	for _, c := range chunks {
		if c == nil {
			continue
		}
		if project != "" && c.Project != project {
			continue
		}
		breakdown[c.Language]++
		files[c.FilePath] = true
	}

	return toolapi.GetStatisticsResponse{
		TotalFiles:        len(files),
		TotalChunks:       stats.BM25Stats.DocumentCount,
		LanguageBreakdown: breakdown,
	}, nil
}

func (f *Facade) ClearIndex(ctx context.Context, project string) (toolapi.ClearIndexResponse, error) {
	if err := f.co.ClearAll(ctx, project); err != nil {
		return toolapi.ClearIndexResponse{Success: false, Message: err.Error()}, err
	}
	return toolapi.ClearIndexResponse{Success: true, Message: "index cleared"}, nil
}

func toToolAPIResults(results []*search.SearchResult) []toolapi.SearchResult {
	out := make([]toolapi.SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, toolapi.SearchResult{
			ChunkID:       r.Chunk.ID,
			FilePath:      r.Chunk.RelativePath,
			StartLine:     r.Chunk.StartLine,
			EndLine:       r.Chunk.EndLine,
			Language:      r.Chunk.Language,
			Content:       r.Chunk.Content,
			VectorScore:   r.VecScore,
			KeywordScore:  r.BM25Score,
			CombinedScore: r.Score,
		})
	}
	return out
}
