package cmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Brainwires/project-rag/internal/config"
	"github.com/Brainwires/project-rag/internal/coordinator"
	"github.com/Brainwires/project-rag/internal/embed"
	"github.com/Brainwires/project-rag/internal/hashcache"
	"github.com/Brainwires/project-rag/internal/store"
)

// xdgDataHome returns $XDG_DATA_HOME, falling back to ~/.local/share.
func xdgDataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".local", "share")
	}
	return filepath.Join(home, ".local", "share")
}

// instanceID derives a stable, filesystem-safe identifier for a project
// root so that $XDG_DATA_HOME/project-rag/{vector,lexical}/<instance>
// never collides across distinct projects (spec §6's persisted state
// layout).
func instanceID(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Base(abs) + "-" + hex.EncodeToString(sum[:])[:12]
}

// openCoordinator wires the vector store, lexical index, embedder, and hash
// cache for root and returns a ready Coordinator plus a close function. It
// is the single construction path shared by every subcommand that touches
// an index.
func openCoordinator(ctx context.Context, root string) (*coordinator.Coordinator, func() error, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	instance := instanceID(root)
	dataDir := filepath.Join(xdgDataHome(), "project-rag")
	lexicalPath := filepath.Join(dataDir, "lexical", instance)
	vectorPath := filepath.Join(dataDir, "vector", instance, "vectors.hnsw")

	bm25Cfg := store.DefaultBM25Config()
	bm25, err := store.NewBleveBM25Index(lexicalPath, bm25Cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open lexical index: %w", err)
	}

	embedder, err := embed.NewDefaultEmbedder(ctx)
	if err != nil {
		bm25.Close()
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	vectorCfg := store.DefaultVectorStoreConfig(embedder.Dimensions())
	vector, err := store.NewHNSWStore(vectorCfg)
	if err != nil {
		bm25.Close()
		embedder.Close()
		return nil, nil, fmt.Errorf("failed to create vector store: %w", err)
	}
	if _, statErr := os.Stat(vectorPath); statErr == nil {
		if err := vector.Load(vectorPath); err != nil {
			bm25.Close()
			embedder.Close()
			return nil, nil, fmt.Errorf("failed to load vector store: %w", err)
		}
	}

	cache, err := hashcache.Open(hashcache.DefaultPath())
	if err != nil {
		bm25.Close()
		embedder.Close()
		return nil, nil, fmt.Errorf("failed to open hash cache: %w", err)
	}

	coordCfg := coordinator.Config{
		Paths:       cfg.Paths,
		Search:      cfg.Search,
		Performance: cfg.Performance,
	}

	co, err := coordinator.New(bm25, vector, embedder, cache, filepath.Join(dataDir, "vector", instance), coordCfg)
	if err != nil {
		bm25.Close()
		embedder.Close()
		vector.Close()
		return nil, nil, err
	}

	closeFn := func() error {
		err1 := co.Close()
		err2 := bm25.Close()
		err3 := vector.Close()
		if err1 != nil {
			return err1
		}
		if err2 != nil {
			return err2
		}
		return err3
	}

	return co, closeFn, nil
}

// resolveRoot returns arg if non-empty, otherwise the current working
// directory walked up to the nearest project root.
func resolveRoot(arg string) (string, error) {
	if arg != "" {
		return filepath.Abs(arg)
	}
	root, err := config.FindProjectRoot(".")
	if err != nil {
		return os.Getwd()
	}
	return root, nil
}
