// Package store is the versioned document store behind the contributor
// registry. A Store is a session: open it at run start, stage writes, then
// commit them together.
package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/pkg/config"
	"github.com/alimgiray/sentinel/pkg/database"
)

// Store is keyed document storage with batched commits.
type Store interface {
	// Refresh pulls the latest remote state.
	Refresh(ctx context.Context) error
	// Keys lists every stored document.
	Keys(ctx context.Context) ([]string, error)
	// Read returns a document or models.ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)
	// Write stages a document for the next Commit.
	Write(ctx context.Context, key string, data []byte) error
	// Commit publishes every staged write under one message. It reports
	// false when nothing was staged.
	Commit(ctx context.Context, message string) (bool, error)
	Close() error
}

// Open builds the backend selected in the registry config.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch strings.ToLower(cfg.Registry.Backend) {
	case "", "git":
		return OpenGit(ctx, GitOptions{
			URL:         cfg.Registry.URL,
			Token:       cfg.Registry.Token,
			Dir:         cfg.Registry.Dir,
			AuthorName:  cfg.Registry.AuthorName,
			AuthorEmail: cfg.Registry.AuthorEmail,
		})
	case "sqlite":
		db, err := database.Open(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open registry database: %w", err)
		}
		return NewSQLite(db), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: unknown registry backend %q", models.ErrValidation, cfg.Registry.Backend)
	}
}

func checkKey(key string) error {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: invalid document key %q", models.ErrValidation, key)
	}
	return nil
}
