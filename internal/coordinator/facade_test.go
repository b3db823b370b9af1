package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brainwires/project-rag/internal/toolapi"
)

func TestFacade_IndexAndQueryRoundTrip(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	facade := NewFacade(c)
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")

	idxResp, err := facade.IndexCodebase(context.Background(), toolapi.IndexCodebaseRequest{Path: root})
	require.NoError(t, err)
	assert.Equal(t, "full", idxResp.Mode)
	assert.Equal(t, 1, idxResp.FilesIndexed)

	queryResp, err := facade.QueryCodebase(context.Background(), toolapi.QueryCodebaseRequest{Query: "main", Hybrid: true})
	require.NoError(t, err)
	assert.NotNil(t, queryResp.Results)
}

func TestFacade_ClearIndex(t *testing.T) {
	c, bm25, _ := newTestCoordinator(t)
	facade := NewFacade(c)
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")

	_, err := facade.IndexCodebase(context.Background(), toolapi.IndexCodebaseRequest{Path: root})
	require.NoError(t, err)
	require.NotEmpty(t, bm25.docs)

	resp, err := facade.ClearIndex(context.Background(), root)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Empty(t, bm25.docs)
}
