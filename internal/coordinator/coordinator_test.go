package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brainwires/project-rag/internal/hashcache"
	"github.com/Brainwires/project-rag/internal/store"
)

// memBM25 is an in-memory fake store.BM25Index that actually retains
// documents, so coordinator pipeline tests can assert on what ended up
// indexed rather than on call counts alone.
type memBM25 struct {
	docs map[string]*store.Chunk
}

func newMemBM25() *memBM25 { return &memBM25{docs: make(map[string]*store.Chunk)} }

func (m *memBM25) Index(ctx context.Context, docs []*store.Document) error {
	for _, d := range docs {
		m.docs[d.ID] = d.Chunk
	}
	return nil
}
func (m *memBM25) Search(ctx context.Context, query string, limit int) ([]*store.BM25Result, error) {
	return nil, nil
}
func (m *memBM25) Delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		delete(m.docs, id)
	}
	return nil
}
func (m *memBM25) AllIDs() ([]string, error) {
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	return ids, nil
}
func (m *memBM25) GetChunk(ctx context.Context, id string) (*store.Chunk, error) {
	return m.docs[id], nil
}
func (m *memBM25) GetChunks(ctx context.Context, ids []string) (map[string]*store.Chunk, error) {
	out := make(map[string]*store.Chunk)
	for _, id := range ids {
		if c, ok := m.docs[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}
func (m *memBM25) Stats() *store.IndexStats { return &store.IndexStats{DocumentCount: len(m.docs)} }
func (m *memBM25) Save(path string) error   { return nil }
func (m *memBM25) Load(path string) error   { return nil }
func (m *memBM25) Close() error             { return nil }

// memVector is an in-memory fake store.VectorStore.
type memVector struct {
	ids map[string]bool
}

func newMemVector() *memVector { return &memVector{ids: make(map[string]bool)} }

func (v *memVector) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	for _, id := range ids {
		v.ids[id] = true
	}
	return nil
}
func (v *memVector) Search(ctx context.Context, query []float32, k int) ([]*store.VectorResult, error) {
	return nil, nil
}
func (v *memVector) Delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		delete(v.ids, id)
	}
	return nil
}
func (v *memVector) AllIDs() []string {
	ids := make([]string, 0, len(v.ids))
	for id := range v.ids {
		ids = append(ids, id)
	}
	return ids
}
func (v *memVector) Contains(id string) bool { return v.ids[id] }
func (v *memVector) Count() int              { return len(v.ids) }
func (v *memVector) Save(path string) error  { return nil }
func (v *memVector) Load(path string) error  { return nil }
func (v *memVector) Close() error            { return nil }

// fakeEmbedder returns a fixed-dimension zero vector for every input.
type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, f.dims), nil
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dims)
	}
	return out, nil
}
func (f *fakeEmbedder) Dimensions() int                    { return f.dims }
func (f *fakeEmbedder) ModelName() string                  { return "fake" }
func (f *fakeEmbedder) Available(ctx context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                       { return nil }
func (f *fakeEmbedder) SetBatchIndex(idx int)              {}
func (f *fakeEmbedder) SetFinalBatch(isFinal bool)         {}

func newTestCoordinator(t *testing.T) (*Coordinator, *memBM25, *memVector) {
	t.Helper()
	bm25 := newMemBM25()
	vec := newMemVector()
	cache, err := hashcache.Open(filepath.Join(t.TempDir(), "hashcache.yaml"))
	require.NoError(t, err)

	c, err := New(bm25, vec, &fakeEmbedder{dims: 4}, cache, t.TempDir(), Config{})
	require.NoError(t, err)
	return c, bm25, vec
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCoordinator_Index_FirstRunIsFull(t *testing.T) {
	c, bm25, vec := newTestCoordinator(t)
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")

	result, err := c.Index(context.Background(), root, IndexOptions{})
	require.NoError(t, err)
	assert.Equal(t, ModeFull, result.Mode)
	assert.Equal(t, 1, result.Files)
	assert.NotZero(t, result.Chunks)
	assert.NotEmpty(t, bm25.docs)
	assert.NotEmpty(t, vec.ids)
}

func TestCoordinator_Index_SecondRunIsIncrementalAndUnchanged(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")

	_, err := c.Index(context.Background(), root, IndexOptions{})
	require.NoError(t, err)

	result, err := c.Index(context.Background(), root, IndexOptions{})
	require.NoError(t, err)
	assert.Equal(t, ModeIncremental, result.Mode)
	assert.Equal(t, 1, result.Unchanged)
	assert.Zero(t, result.New)
	assert.Zero(t, result.Modified)
}

func TestCoordinator_Index_ModifiedFileReindexes(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")

	_, err := c.Index(context.Background(), root, IndexOptions{})
	require.NoError(t, err)

	writeFile(t, root, "main.go", "package main\n\nfunc main() { println(\"hi\") }\n")

	result, err := c.Index(context.Background(), root, IndexOptions{})
	require.NoError(t, err)
	assert.Equal(t, ModeIncremental, result.Mode)
	assert.Equal(t, 1, result.Modified)
}

func TestCoordinator_Index_DeletedFileRemovesFromBothStores(t *testing.T) {
	c, bm25, vec := newTestCoordinator(t)
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")

	_, err := c.Index(context.Background(), root, IndexOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, bm25.docs)

	require.NoError(t, os.Remove(filepath.Join(root, "main.go")))

	result, err := c.Index(context.Background(), root, IndexOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)
	assert.Empty(t, bm25.docs)
	assert.Empty(t, vec.ids)
}

func TestCoordinator_Index_ForceRerunsFull(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")

	_, err := c.Index(context.Background(), root, IndexOptions{})
	require.NoError(t, err)

	result, err := c.Index(context.Background(), root, IndexOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, ModeFull, result.Mode)
}

func TestCoordinator_CheckConsistency_DetectsOrphans(t *testing.T) {
	c, bm25, vec := newTestCoordinator(t)
	bm25.docs["only-in-lexical"] = &store.Chunk{ID: "only-in-lexical"}
	vec.ids["only-in-vector"] = true

	report, err := c.CheckConsistency(context.Background())
	require.NoError(t, err)
	assert.Contains(t, report.OrphanLexical, "only-in-lexical")
	assert.Contains(t, report.MissingVector, "only-in-lexical")
	assert.Contains(t, report.OrphanVector, "only-in-vector")
	assert.Contains(t, report.MissingLexical, "only-in-vector")
}

func TestCoordinator_RepairConsistency_DeletesOrphans(t *testing.T) {
	c, bm25, vec := newTestCoordinator(t)
	bm25.docs["orphan"] = &store.Chunk{ID: "orphan"}

	report, err := c.CheckConsistency(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.RepairConsistency(context.Background(), report))
	assert.NotContains(t, bm25.docs, "orphan")
}
