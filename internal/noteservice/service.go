// Package noteservice wires file loading, parsing, graph synchronization and
// entity detection into the per-file operations used by the indexer, the
// watcher and the read surfaces.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/vaultgraph/internal/apperr"
	"github.com/starford/vaultgraph/internal/entities"
	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/graphsync"
	"github.com/starford/vaultgraph/internal/models"
	"github.com/starford/vaultgraph/internal/parser"
	"github.com/starford/vaultgraph/internal/storage"
	"github.com/starford/vaultgraph/internal/watcher"
)

// Change kinds passed to a Notifier.
const (
	KindSynced  = "synced"
	KindDeleted = "deleted"
)

// Notifier is told about every successful graph mutation, with the
// vault-relative path of the note.
type Notifier interface {
	NoteChanged(kind, path string)
}

// DefaultDetectTimeout bounds a single entity detection call.
const DefaultDetectTimeout = 30 * time.Second

// Service coordinates the vault files and the graph.
type Service struct {
	files    storage.Vault
	filter   storage.Filter
	store    graph.Store
	sync     *graphsync.Synchronizer
	logger   *slog.Logger
	notifier Notifier

	detector      entities.Detector
	detectTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithDetector enables entity detection after each note sync.
func WithDetector(d entities.Detector, timeout time.Duration) Option {
	return func(s *Service) {
		s.detector = d
		if timeout > 0 {
			s.detectTimeout = timeout
		}
	}
}

// WithNotifier registers a change listener.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New creates a Service for the vault behind files.
func New(files storage.Vault, filter storage.Filter, store graph.Store, opts ...Option) *Service {
	s := &Service{
		files:         files,
		filter:        filter,
		store:         store,
		logger:        slog.Default(),
		detectTimeout: DefaultDetectTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sync = graphsync.New(store, files.Root(), s.logger)
	return s
}

// Root returns the absolute vault root.
func (s *Service) Root() string {
	return s.files.Root()
}

// Accept reports whether abs is a note the service would sync.
func (s *Service) Accept(abs string) bool {
	return s.filter.Accept(s.files.Root(), abs)
}

// SyncFile loads, parses and upserts the note at abs, then runs entity
// detection when enabled. A file that no longer exists is removed from the
// graph and reported as a missing skip.
func (s *Service) SyncFile(ctx context.Context, abs string) (*models.ParsedNote, error) {
	abs = filepath.Clean(abs)
	if err := s.check(abs); err != nil {
		return nil, err
	}

	raw, info, err := s.files.Load(abs)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.RemoveFile(ctx, abs); err != nil {
			return nil, err
		}
		return nil, apperr.Skip(abs, apperr.SkipMissing)
	}
	if err != nil {
		return nil, err
	}

	note, err := parser.Parse(abs, raw)
	if err != nil {
		return nil, err
	}
	if err := s.sync.UpsertNote(ctx, note, info); err != nil {
		return nil, err
	}
	s.detectEntities(ctx, note)

	s.logger.Debug("noteservice: synced", slog.String("path", abs), slog.String("hash", note.Hash))
	s.notify(KindSynced, abs)
	return note, nil
}

func (s *Service) check(abs string) error {
	if !s.files.Contains(abs) {
		return fmt.Errorf("noteservice: %s: %w", abs, apperr.ErrOutsideRoot)
	}
	name := filepath.Base(abs)
	switch {
	case strings.HasPrefix(name, "."):
		return apperr.Skip(abs, apperr.SkipHidden)
	case !s.filter.IsNote(name):
		return apperr.Skip(abs, apperr.SkipNotNote)
	case s.filter.IgnoredPath(s.files.Root(), filepath.Dir(abs)):
		return apperr.Skip(abs, apperr.SkipIgnored)
	}
	return nil
}

// detectEntities never fails the sync: detector and write errors are logged
// and the note keeps whatever entity edges it had.
func (s *Service) detectEntities(ctx context.Context, note *models.ParsedNote) {
	if s.detector == nil {
		return
	}
	dctx, cancel := context.WithTimeout(ctx, s.detectTimeout)
	res, err := s.detector.Detect(dctx, note)
	cancel()
	if err != nil {
		s.logger.Warn("noteservice: entity detection failed",
			slog.String("path", note.Path),
			slog.String("error", err.Error()))
		return
	}
	if err := s.sync.ApplyEntities(ctx, note.Path, res); err != nil {
		s.logger.Warn("noteservice: entity write failed",
			slog.String("path", note.Path),
			slog.String("error", err.Error()))
	}
}

// RemoveFile deletes the note at abs from the graph.
func (s *Service) RemoveFile(ctx context.Context, abs string) error {
	abs = filepath.Clean(abs)
	if err := s.sync.DeleteNote(ctx, abs); err != nil {
		return err
	}
	s.notify(KindDeleted, abs)
	return nil
}

// RemoveTree deletes every note and folder at or below dir, for a directory
// that was removed or moved away.
func (s *Service) RemoveTree(ctx context.Context, dir string) error {
	deleted, err := s.sync.DeleteTree(ctx, filepath.Clean(dir))
	for _, p := range deleted {
		s.notify(KindDeleted, p)
	}
	return err
}

// RemoveFolder deletes the Folder node of dir only.
func (s *Service) RemoveFolder(ctx context.Context, dir string) error {
	return s.sync.DeleteFolder(ctx, dir)
}

// Indexed lists the Note or Folder paths the graph holds at or below dir.
func (s *Service) Indexed(ctx context.Context, label graph.Label, dir string) ([]string, error) {
	return s.sync.Paths(ctx, label, dir)
}

// EnsureFolder merges the folder chain from the vault root down to dir.
func (s *Service) EnsureFolder(ctx context.Context, dir string) error {
	return s.sync.EnsureFolderChain(ctx, dir)
}

// HandleEvent applies one watcher event. Skips are not errors.
func (s *Service) HandleEvent(ctx context.Context, ev watcher.Event) error {
	var err error
	switch ev.Kind {
	case watcher.Created, watcher.Modified:
		_, err = s.SyncFile(ctx, ev.Path)
	case watcher.Deleted:
		err = s.RemoveFile(ctx, ev.Path)
	case watcher.DeletedDir:
		err = s.RemoveTree(ctx, ev.Path)
	case watcher.Moved:
		if err = s.RemoveFile(ctx, ev.Path); err == nil {
			_, err = s.SyncFile(ctx, ev.NewPath)
		}
	default:
		return fmt.Errorf("noteservice: unknown change kind %d", ev.Kind)
	}
	if apperr.IsSkip(err) {
		s.logger.Debug("noteservice: skipped",
			slog.String("path", ev.Path),
			slog.String("reason", string(apperr.SkipReasonOf(err))))
		return nil
	}
	return err
}

func (s *Service) notify(kind, abs string) {
	if s.notifier == nil {
		return
	}
	rel, err := s.files.Rel(abs)
	if err != nil {
		return
	}
	s.notifier.NoteChanged(kind, rel)
}
