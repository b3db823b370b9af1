package coordinator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Brainwires/project-rag/internal/chunk"
	"github.com/Brainwires/project-rag/internal/embed"
	"github.com/Brainwires/project-rag/internal/hashcache"
	"github.com/Brainwires/project-rag/internal/scanner"
	"github.com/Brainwires/project-rag/internal/search"
	"github.com/Brainwires/project-rag/internal/store"
)

// Coordinator owns a project's indexing lifecycle: the per-root lock
// protocol, smart full/incremental dispatch, the hybrid query entrypoint,
// and cross-store consistency checking. One Coordinator serves every root
// passed to Index/Query during the process lifetime; the lock table keys
// on the canonicalized root, so concurrent roots never contend with each
// other.
type Coordinator struct {
	locks     *lockTable
	hashCache *hashcache.Cache
	scanner   *scanner.Scanner

	codeChunker     chunk.Chunker
	markdownChunker chunk.Chunker

	bm25     store.BM25Index
	vector   store.VectorStore
	embedder embed.Embedder
	engine   *search.Engine

	dataDir string
	cfg     Config
}

// New builds a Coordinator from already-opened stores. dataDir is where the
// lexical index and vector store persist their on-disk snapshots (spec
// §4.7.2 step 6's "upsert both stores" writes here).
func New(bm25 store.BM25Index, vector store.VectorStore, embedder embed.Embedder, hashCache *hashcache.Cache, dataDir string, cfg Config) (*Coordinator, error) {
	if bm25 == nil || vector == nil || embedder == nil || hashCache == nil {
		return nil, fmt.Errorf("coordinator: bm25, vector, embedder, and hashCache are required")
	}

	sc, err := scanner.New()
	if err != nil {
		return nil, fmt.Errorf("coordinator: failed to create scanner: %w", err)
	}

	engineCfg := search.DefaultConfig()
	if cfg.Search.RRFConstant > 0 {
		engineCfg.RRFConstant = cfg.Search.RRFConstant
	}
	if cfg.Search.MaxResults > 0 {
		engineCfg.MaxLimit = cfg.Search.MaxResults
	}
	if cfg.Search.BM25Weight > 0 || cfg.Search.SemanticWeight > 0 {
		engineCfg.DefaultWeights = search.Weights{BM25: cfg.Search.BM25Weight, Semantic: cfg.Search.SemanticWeight}
	}

	engine, err := search.NewEngine(bm25, vector, embedder, engineCfg)
	if err != nil {
		return nil, fmt.Errorf("coordinator: failed to create search engine: %w", err)
	}

	return &Coordinator{
		locks:           newLockTable(),
		hashCache:       hashCache,
		scanner:         sc,
		codeChunker:     chunk.NewCodeChunker(),
		markdownChunker: chunk.NewMarkdownChunker(),
		bm25:            bm25,
		vector:          vector,
		embedder:        embedder,
		engine:          engine,
		dataDir:         dataDir,
		cfg:             cfg,
	}, nil
}

// Query delegates to the hybrid search engine (spec §4.7.4). It exists on
// Coordinator rather than requiring callers to reach into the engine
// directly so that cmd/ragctl only ever depends on one indexing/search
// facade.
func (c *Coordinator) Query(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
	return c.engine.Search(ctx, query, opts)
}

// Stats reports lexical and vector store sizes for the shared stores this
// Coordinator was built with.
func (c *Coordinator) Stats() *search.EngineStats {
	return c.engine.Stats()
}

// ClearAll deletes every chunk id in either store (cmd/ragctl's `clear`)
// and drops the hash cache entry for root so the next Index call runs full.
func (c *Coordinator) ClearAll(ctx context.Context, root string) error {
	canonical, err := canonicalizeRoot(root)
	if err != nil {
		return err
	}

	ids, err := c.bm25.AllIDs()
	if err != nil {
		return err
	}
	ids = append(ids, c.vector.AllIDs()...)
	if len(ids) > 0 {
		if err := c.vector.Delete(ctx, ids); err != nil {
			return err
		}
		if err := c.bm25.Delete(ctx, ids); err != nil {
			return err
		}
	}
	if err := c.persist(); err != nil {
		return err
	}
	return c.hashCache.Remove(ctx, canonical)
}

// Index runs spec §4.7.1's smart dispatch: full indexing when the root has
// no hash-cache entry yet (or Force is set), incremental indexing
// otherwise. The per-root lock is acquired first; a concurrent caller on
// the same root waits for and receives the in-flight operation's result
// instead of racing it.
func (c *Coordinator) Index(ctx context.Context, root string, opts IndexOptions) (IndexResult, error) {
	acq, err := c.locks.tryAcquire(root)
	if err != nil {
		return IndexResult{}, err
	}
	if acq.guard == nil {
		select {
		case r := <-acq.waiter:
			return r, r.Err
		case <-ctx.Done():
			return IndexResult{}, ctx.Err()
		}
	}
	guard := acq.guard
	defer guard.Release()

	start := time.Now()

	if opts.Force {
		_ = c.hashCache.Remove(ctx, guard.root)
	}

	existing, err := c.hashCache.GetAll(ctx, guard.root)
	if err != nil {
		result := IndexResult{Root: guard.root, Err: err, Duration: time.Since(start)}
		guard.Complete(result)
		return result, err
	}

	var result IndexResult
	if len(existing) == 0 {
		result, err = c.runFull(ctx, guard.root, opts)
	} else {
		result, err = c.runIncremental(ctx, guard.root, opts, existing)
	}
	result.Duration = time.Since(start)
	guard.Complete(result)
	return result, err
}

// runFull implements spec §4.7.2: walk the whole tree, chunk and embed
// every file, replace both stores' contents for this root's chunk ids, and
// rewrite the hash cache from scratch.
func (c *Coordinator) runFull(ctx context.Context, root string, opts IndexOptions) (IndexResult, error) {
	result := IndexResult{Root: root, Mode: ModeFull}

	scanResults, err := c.walk(ctx, root, opts)
	if err != nil {
		result.Err = err
		return result, err
	}

	hashes := make(map[string]string, len(scanResults))
	var allChunks []*store.Chunk
	for _, f := range scanResults {
		content, err := os.ReadFile(f.AbsPath)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", f.Path, err))
			continue
		}
		hashes[f.Path] = sha256Hex(content)

		chunks, err := c.chunkFile(ctx, f, content)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", f.Path, err))
			continue
		}
		allChunks = append(allChunks, toStoreChunks(root, f.Path, chunks)...)
	}
	result.Files = len(scanResults)
	result.Chunks = len(allChunks)
	result.New = len(allChunks)

	if err := c.engine.Index(ctx, allChunks); err != nil {
		result.Err = err
		return result, err
	}

	if err := c.persist(); err != nil {
		result.Err = err
		return result, err
	}

	if err := c.hashCache.Update(ctx, root, hashes); err != nil {
		result.Err = err
		return result, err
	}

	return result, nil
}

// runIncremental implements spec §4.7.3: classify every scanned file
// against the cached hashes as new/modified/unchanged/deleted, then touch
// only what changed. Deletions are applied vector store first, lexical
// index second, matching the fixed order the spec requires.
func (c *Coordinator) runIncremental(ctx context.Context, root string, opts IndexOptions, cached map[string]string) (IndexResult, error) {
	result := IndexResult{Root: root, Mode: ModeIncremental}

	scanResults, err := c.walk(ctx, root, opts)
	if err != nil {
		result.Err = err
		return result, err
	}

	seen := make(map[string]bool, len(scanResults))
	newHashes := make(map[string]string, len(cached))
	for k, v := range cached {
		newHashes[k] = v
	}

	var changedChunks []*store.Chunk
	var deletedFiles []string
	var modifiedFiles []string

	for _, f := range scanResults {
		seen[f.Path] = true
		content, err := os.ReadFile(f.AbsPath)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", f.Path, err))
			continue
		}
		hash := sha256Hex(content)
		prior, existed := cached[f.Path]

		switch {
		case !existed:
			result.New++
		case prior == hash:
			result.Unchanged++
			continue
		default:
			result.Modified++
			modifiedFiles = append(modifiedFiles, f.Path)
		}

		chunks, err := c.chunkFile(ctx, f, content)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", f.Path, err))
			continue
		}
		changedChunks = append(changedChunks, toStoreChunks(root, f.Path, chunks)...)
		newHashes[f.Path] = hash
	}

	for path := range cached {
		if !seen[path] {
			deletedFiles = append(deletedFiles, path)
			delete(newHashes, path)
			result.Deleted++
		}
	}

	// Old chunks of deleted and modified files are removed before the
	// modified files' new chunks are inserted.
	staleFiles := append(deletedFiles, modifiedFiles...)
	if len(staleFiles) > 0 {
		ids, err := c.idsForFiles(ctx, staleFiles)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
		} else if len(ids) > 0 {
			if err := c.vector.Delete(ctx, ids); err != nil {
				result.Err = err
				return result, err
			}
			if err := c.bm25.Delete(ctx, ids); err != nil {
				result.Err = err
				return result, err
			}
		}
	}

	if len(changedChunks) > 0 {
		if err := c.engine.Index(ctx, changedChunks); err != nil {
			result.Err = err
			return result, err
		}
	}
	result.Chunks = len(changedChunks)

	if err := c.persist(); err != nil {
		result.Err = err
		return result, err
	}
	if err := c.hashCache.Update(ctx, root, newHashes); err != nil {
		result.Err = err
		return result, err
	}

	return result, nil
}

// idsForFiles looks up the chunk ids belonging to a set of relative file
// paths by walking the lexical index's stored documents. The lexical index
// is the only store that carries FilePath metadata (the vector store is a
// pure id->vector map), so deletions must always originate here regardless
// of which store is touched first.
func (c *Coordinator) idsForFiles(ctx context.Context, paths []string) ([]string, error) {
	wanted := make(map[string]bool, len(paths))
	for _, p := range paths {
		wanted[p] = true
	}

	allIDs, err := c.bm25.AllIDs()
	if err != nil {
		return nil, err
	}
	chunks, err := c.bm25.GetChunks(ctx, allIDs)
	if err != nil {
		return nil, err
	}

	var ids []string
	for id, ch := range chunks {
		if ch != nil && wanted[ch.RelativePath] {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (c *Coordinator) walk(ctx context.Context, root string, opts IndexOptions) ([]*scanner.FileInfo, error) {
	include := opts.IncludePatterns
	if include == nil {
		include = c.cfg.Paths.Include
	}
	exclude := opts.ExcludePatterns
	if exclude == nil {
		exclude = c.cfg.Paths.Exclude
	}

	workers := c.cfg.Performance.IndexWorkers
	ch, err := c.scanner.Scan(ctx, &scanner.ScanOptions{
		RootDir:          root,
		IncludePatterns:  include,
		ExcludePatterns:  exclude,
		RespectGitignore: true,
		Workers:          workers,
	})
	if err != nil {
		return nil, err
	}

	var files []*scanner.FileInfo
	for r := range ch {
		if r.Error != nil {
			continue
		}
		files = append(files, r.File)
	}
	return files, nil
}

func (c *Coordinator) chunkFile(ctx context.Context, f *scanner.FileInfo, content []byte) ([]*chunk.Chunk, error) {
	input := &chunk.FileInput{Path: f.Path, Content: content, Language: f.Language}
	switch f.ContentType {
	case scanner.ContentTypeMarkdown:
		return c.markdownChunker.Chunk(ctx, input)
	default:
		return c.codeChunker.Chunk(ctx, input)
	}
}

func (c *Coordinator) persist() error {
	if c.dataDir == "" {
		return nil
	}
	if err := c.bm25.Save(filepath.Join(c.dataDir, "bm25")); err != nil {
		return fmt.Errorf("failed to save lexical index: %w", err)
	}
	if err := c.vector.Save(filepath.Join(c.dataDir, "vectors.hnsw")); err != nil {
		return fmt.Errorf("failed to save vector store: %w", err)
	}
	return nil
}

// toStoreChunks converts chunker output to the store's chunk shape, the
// lone representation persisted in the lexical index's stored fields (the
// vector store keeps only ids and embeddings).
func toStoreChunks(root, relPath string, chunks []*chunk.Chunk) []*store.Chunk {
	out := make([]*store.Chunk, 0, len(chunks))
	ext := filepath.Ext(relPath)
	if len(ext) > 0 {
		ext = ext[1:]
	}
	for _, ch := range chunks {
		var symbols []*store.Symbol
		for _, s := range ch.Symbols {
			symbols = append(symbols, &store.Symbol{
				Name:       s.Name,
				Type:       store.SymbolType(s.Type),
				StartLine:  s.StartLine,
				EndLine:    s.EndLine,
				Signature:  s.Signature,
				DocComment: s.DocComment,
			})
		}
		out = append(out, &store.Chunk{
			ID:           ch.ID,
			Project:      root,
			FilePath:     filepath.Join(root, relPath),
			RelativePath: relPath,
			Content:      ch.Content,
			RawContent:   ch.RawContent,
			Context:      ch.Context,
			ContentType:  store.ContentType(ch.ContentType),
			Language:     ch.Language,
			Extension:    ext,
			StartLine:    ch.StartLine,
			EndLine:      ch.EndLine,
			Symbols:      symbols,
			Metadata:     ch.Metadata,
			IndexedAt:    time.Now(),
		})
	}
	return out
}

func sha256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// Close releases the underlying stores through the search engine; the
// embedder is not closed.
func (c *Coordinator) Close() error {
	var firstErr error
	if err := c.engine.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
