package store

import (
	"context"

	"aigist/internal/models"
)

// GistMirror is the write side of the local gist cache.
type GistMirror interface {
	UpsertGist(ctx context.Context, g *models.Gist) error
}

var _ GistMirror = (*SQLiteStore)(nil)
