// Package coordinator owns the indexing pipeline: the per-root lock
// protocol (spec §5), smart full/incremental dispatch (§4.7.1-§4.7.3), the
// hybrid query entrypoint (§4.7.4, delegated to internal/search), and
// cross-store consistency checking (§4.7.5).
package coordinator

import (
	"time"

	"github.com/Brainwires/project-rag/internal/config"
)

// IndexMode reports which pipeline actually ran.
type IndexMode string

const (
	ModeFull        IndexMode = "full"
	ModeIncremental IndexMode = "incremental"
)

// IndexOptions configures a single Index call.
type IndexOptions struct {
	// IncludePatterns/ExcludePatterns override config defaults when set.
	IncludePatterns []string
	ExcludePatterns []string

	// Force skips the smart-mode dispatch and always runs full indexing,
	// discarding the existing hash-cache entry for root first.
	Force bool
}

// IndexResult is the outcome of an Index call, broadcast verbatim to any
// waiters subscribed to the same root's in-flight operation.
type IndexResult struct {
	Root      string
	Mode      IndexMode
	Files     int
	Chunks    int
	New       int
	Modified  int
	Unchanged int
	Deleted   int
	Duration  time.Duration
	Errors    []string
	Err       error
}

// InconsistencyKind names which side of a chunk id pairing is missing, for
// CheckConsistency's report. OrphanVector and MissingLexical describe the
// same set of ids (present in the vector store, absent from the lexical
// index) from two complementary vantage points, as do OrphanLexical and
// MissingVector; the report carries all four names because spec §4.7.5
// names all four, but only two disjoint id sets exist with two stores.
type InconsistencyKind string

const (
	KindOrphanVector   InconsistencyKind = "orphan_vector"
	KindOrphanLexical  InconsistencyKind = "orphan_lexical"
	KindMissingVector  InconsistencyKind = "missing_vector"
	KindMissingLexical InconsistencyKind = "missing_lexical"
)

// ConsistencyReport is the result of CheckConsistency.
type ConsistencyReport struct {
	Checked        int
	OrphanVector   []string // present in vector, absent from lexical
	OrphanLexical  []string // present in lexical, absent from vector
	MissingVector  []string // == OrphanLexical
	MissingLexical []string // == OrphanVector
	Duration       time.Duration
}

// Config bundles the tunables the Coordinator reads from internal/config.
// Chunk size/overlap live on SearchConfig in the teacher's schema (they are
// BM25/chunking tuning knobs under the same "search" config key), not a
// dedicated chunk config struct.
type Config struct {
	Paths       config.PathsConfig
	Search      config.SearchConfig
	Performance config.PerformanceConfig
}
