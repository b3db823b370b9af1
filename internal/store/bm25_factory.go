package store

import (
	"fmt"
	"path/filepath"
)

// NewBM25IndexWithBackend creates the lexical index at basePath+".bleve".
// The backend argument is accepted for config-file compatibility but only
// "bleve" (or empty, defaulting to it) is supported: Bleve's single-writer
// BoltDB model is what the writer-lock-with-staleness contract (spec §4.5)
// is built against.
func NewBM25IndexWithBackend(basePath string, config BM25Config, backend string) (BM25Index, error) {
	switch backend {
	case "bleve", "":
		var path string
		if basePath != "" {
			path = basePath + ".bleve"
		}
		return NewBleveBM25Index(path, config)
	default:
		return nil, fmt.Errorf("unknown BM25 backend: %s (only \"bleve\" is supported)", backend)
	}
}

// GetBM25IndexPath returns the full path to the BM25 index directory.
func GetBM25IndexPath(dataDir string) string {
	return filepath.Join(dataDir, "bm25.bleve")
}
