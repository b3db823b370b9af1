// Package toolapi defines the request/response DTOs and the facade
// interface matching spec §6's tool surface. No JSON-RPC transport lives
// here: this package exists so a future transport adapter (e.g. wrapping
// github.com/modelcontextprotocol/go-sdk) can be written against a stable,
// already-tested contract without re-deriving it from the Coordinator's
// internal shapes.
package toolapi

import "context"

// IndexCodebaseRequest mirrors the IndexCodebase tool call.
type IndexCodebaseRequest struct {
	Path            string   `json:"path"`
	IncludePatterns []string `json:"includePatterns,omitempty"`
	ExcludePatterns []string `json:"excludePatterns,omitempty"`
	MaxFileSize     int64    `json:"maxFileSize,omitempty"`
}

// IndexCodebaseResponse mirrors the IndexCodebase tool result.
type IndexCodebaseResponse struct {
	FilesIndexed        int      `json:"filesIndexed"`
	ChunksCreated       int      `json:"chunksCreated"`
	EmbeddingsGenerated int      `json:"embeddingsGenerated"`
	DurationMs          int64    `json:"durationMs"`
	Errors              []string `json:"errors,omitempty"`
	Mode                string   `json:"mode"`
}

// QueryCodebaseRequest mirrors the QueryCodebase tool call.
type QueryCodebaseRequest struct {
	Query    string  `json:"query"`
	Limit    int     `json:"limit,omitempty"`
	MinScore float64 `json:"minScore,omitempty"`
	Hybrid   bool    `json:"hybrid"`
	Project  string  `json:"project,omitempty"`
}

// QueryCodebaseResponse mirrors the QueryCodebase tool result.
type QueryCodebaseResponse struct {
	Results    []SearchResult `json:"results"`
	DurationMs int64          `json:"durationMs"`
}

// SearchByFiltersRequest mirrors the SearchByFilters tool call.
type SearchByFiltersRequest struct {
	Query          string   `json:"query"`
	Limit          int      `json:"limit,omitempty"`
	MinScore       float64  `json:"minScore,omitempty"`
	FileExtensions []string `json:"fileExtensions,omitempty"`
	Languages      []string `json:"languages,omitempty"`
	PathPatterns   []string `json:"pathPatterns,omitempty"`
	Project        string   `json:"project,omitempty"`
}

// SearchResult mirrors spec §6's SearchResult shape, flattened from the
// core's richer internal/search.SearchResult.
type SearchResult struct {
	ChunkID       string  `json:"chunkId"`
	FilePath      string  `json:"filePath"`
	StartLine     int     `json:"startLine"`
	EndLine       int     `json:"endLine"`
	Language      string  `json:"language"`
	Content       string  `json:"content"`
	VectorScore   float64 `json:"vectorScore"`
	KeywordScore  float64 `json:"keywordScore"`
	CombinedScore float64 `json:"combinedScore"`
}

// GetStatisticsResponse mirrors the GetStatistics tool result.
type GetStatisticsResponse struct {
	TotalFiles        int            `json:"totalFiles"`
	TotalChunks       int            `json:"totalChunks"`
	LanguageBreakdown map[string]int `json:"languageBreakdown"`
}

// ClearIndexResponse mirrors the ClearIndex tool result.
type ClearIndexResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CoordinatorFacade is the contract a JSON-RPC transport adapter binds its
// wire methods to. internal/coordinator.Facade implements it over a
// Coordinator, including GetStatistics's language breakdown, which it
// computes from the lexical index's stored chunks.
type CoordinatorFacade interface {
	IndexCodebase(ctx context.Context, req IndexCodebaseRequest) (IndexCodebaseResponse, error)
	QueryCodebase(ctx context.Context, req QueryCodebaseRequest) (QueryCodebaseResponse, error)
	SearchByFilters(ctx context.Context, req SearchByFiltersRequest) (QueryCodebaseResponse, error)
	GetStatistics(ctx context.Context, project string) (GetStatisticsResponse, error)
	ClearIndex(ctx context.Context, project string) (ClearIndexResponse, error)
}
