// Package gistsync performs remote gist mutations and mirrors the result
// into the local store.
package gistsync

import (
	"context"
	"fmt"
	"strings"

	"aigist/internal/gist"
	mylog "aigist/internal/log"
	"aigist/internal/models"
	"aigist/internal/store"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 30
	MaxPerPage     = 100
)

// Remote is the subset of the GitHub client used here.
type Remote interface {
	Create(ctx context.Context, description string, public bool, files map[string]string) (*models.Gist, error)
	Update(ctx context.Context, id string, description *string, files map[string]string) (*models.Gist, error)
	Get(ctx context.Context, id string) (*models.Gist, error)
	List(ctx context.Context, opts gist.ListOptions) ([]models.Gist, error)
}

// ValidationError reports a malformed or missing request field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

// MirrorError means the remote call succeeded but the local copy was not written.
type MirrorError struct {
	GistID string
	Err    error
}

func (e *MirrorError) Error() string { return fmt.Sprintf("mirror gist %s: %v", e.GistID, e.Err) }
func (e *MirrorError) Unwrap() error { return e.Err }

type Service struct {
	remote Remote
	mirror store.GistMirror
	log    *mylog.Logger
}

func New(remote Remote, mirror store.GistMirror, lg *mylog.Logger) *Service {
	if lg == nil {
		lg = mylog.Discard()
	}
	return &Service{remote: remote, mirror: mirror, log: lg}
}

// Create validates the payload, creates the gist upstream and mirrors it.
func (s *Service) Create(ctx context.Context, description string, public bool, files map[string]string) (*models.Gist, error) {
	if len(files) == 0 {
		return nil, &ValidationError{Field: "files", Msg: "at least one file is required"}
	}
	if err := ValidateFiles(files); err != nil {
		return nil, err
	}
	g, err := s.remote.Create(ctx, description, public, files)
	if err != nil {
		return nil, err
	}
	if err := s.mirrorGist(ctx, g); err != nil {
		return nil, err
	}
	s.log.Info("gist.created", "gist_id", g.ID, "files", len(files), "public", public)
	return g, nil
}

// Update validates the payload, updates the gist upstream and replaces its mirror row.
func (s *Service) Update(ctx context.Context, id string, description *string, files map[string]string) (*models.Gist, error) {
	if err := ValidateFiles(files); err != nil {
		return nil, err
	}
	g, err := s.remote.Update(ctx, id, description, files)
	if err != nil {
		return nil, err
	}
	if err := s.mirrorGist(ctx, g); err != nil {
		return nil, err
	}
	s.log.Info("gist.updated", "gist_id", g.ID, "files", len(files))
	return g, nil
}

// Get reads a gist from the remote host. The mirror is never consulted.
func (s *Service) Get(ctx context.Context, id string) (*models.Gist, error) {
	return s.remote.Get(ctx, id)
}

// List validates paging and returns the upstream page as-is.
func (s *Service) List(ctx context.Context, opts gist.ListOptions) ([]models.Gist, error) {
	if err := ValidateListOptions(opts); err != nil {
		return nil, err
	}
	return s.remote.List(ctx, opts)
}

func (s *Service) mirrorGist(ctx context.Context, g *models.Gist) error {
	if err := s.mirror.UpsertGist(ctx, g); err != nil {
		s.log.Error("gist.mirror_failed", "gist_id", g.ID, "error", err.Error())
		return &MirrorError{GistID: g.ID, Err: err}
	}
	return nil
}

// ValidateFiles checks that every filename is non-blank.
func ValidateFiles(files map[string]string) error {
	for name := range files {
		if strings.TrimSpace(name) == "" {
			return &ValidationError{Field: "files", Msg: "filename must not be empty"}
		}
	}
	return nil
}

func ValidateListOptions(opts gist.ListOptions) error {
	if opts.Page < 1 {
		return &ValidationError{Field: "page", Msg: "must be greater than 0"}
	}
	if opts.PerPage < 1 || opts.PerPage > MaxPerPage {
		return &ValidationError{Field: "per_page", Msg: fmt.Sprintf("must be between 1 and %d", MaxPerPage)}
	}
	return nil
}
