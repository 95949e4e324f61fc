package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aigist/internal/models"
	sqlm "aigist/internal/storage/sqlite"
)

// SQLiteStore is the local gist mirror. It is write-only from the
// service's point of view: rows are replaced after each successful
// remote create or update and never read back into a response.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sqlm.Open(path)
	if err != nil {
		return nil, err
	}
	if err := (sqlm.Manager{}).UpToLatest(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// DB exposes underlying *sql.DB for startup checks and tests.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Check verifies the database answers and the gists table exists.
func (s *SQLiteStore) Check(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping: %w", err)
	}
	ok, err := sqlm.HasTable(ctx, s.db, "gists")
	if err != nil {
		return fmt.Errorf("sqlite schema: %w", err)
	}
	if !ok {
		return errors.New("the 'gists' table does not exist")
	}
	return nil
}

// UpsertGist writes or replaces the row keyed by g.ID.
func (s *SQLiteStore) UpsertGist(ctx context.Context, g *models.Gist) error {
	if g == nil || g.ID == "" {
		return errors.New("gist id required")
	}
	files := g.Files
	if files == nil {
		files = map[string]models.GistFile{}
	}
	fb, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("encode files: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO gists(id,description,public,files,html_url,created_at,updated_at,mirrored_at)
        VALUES(?,?,?,?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET
            description=excluded.description,
            public=excluded.public,
            files=excluded.files,
            html_url=excluded.html_url,
            created_at=excluded.created_at,
            updated_at=excluded.updated_at,
            mirrored_at=excluded.mirrored_at`,
		g.ID, g.Description, boolToInt(g.Public), string(fb), g.HTMLURL,
		formatTime(g.CreatedAt), formatTime(g.UpdatedAt), s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert gist %s: %w", g.ID, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
