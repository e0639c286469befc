// Package index walks a vault once and brings the graph up to date with every
// note on disk.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/vaultgraph/internal/apperr"
	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/models"
	"github.com/starford/vaultgraph/internal/storage"
)

// FileSyncer is the per-file pipeline the indexer drives.
type FileSyncer interface {
	// SyncFile loads, parses and upserts the note at abs.
	SyncFile(ctx context.Context, abs string) (*models.ParsedNote, error)
	// EnsureFolder merges the folder chain down to dir.
	EnsureFolder(ctx context.Context, dir string) error
	// Indexed lists the Note or Folder paths the graph holds at or below dir.
	Indexed(ctx context.Context, label graph.Label, dir string) ([]string, error)
	// RemoveFile deletes the Note of abs.
	RemoveFile(ctx context.Context, abs string) error
	// RemoveFolder deletes the Folder node of dir.
	RemoveFolder(ctx context.Context, dir string) error
}

// Stats summarizes one IndexTree run.
type Stats struct {
	FoldersProcessed int           `json:"folders_processed"`
	NotesProcessed   int           `json:"notes_processed"`
	NotesSkipped     int           `json:"notes_skipped"`
	Errors           int           `json:"errors"`
	TotalLinks       int           `json:"total_links"`
	TotalTags        int           `json:"total_tags"`
	TotalHeaders     int           `json:"total_headers"`
	StaleRemoved     int           `json:"stale_removed"`
	Duration         time.Duration `json:"-"`
}

// MarshalJSON reports Duration in seconds.
func (s Stats) MarshalJSON() ([]byte, error) {
	type alias Stats
	return json.Marshal(struct {
		alias
		Duration float64 `json:"duration"`
	}{alias(s), s.Duration.Seconds()})
}

// Indexer performs full-tree indexing with a bounded pool of file workers.
type Indexer struct {
	svc     FileSyncer
	filter  storage.Filter
	workers int
	logger  *slog.Logger
}

// New creates an Indexer. workers below 1 means 1.
func New(svc FileSyncer, filter storage.Filter, workers int, logger *slog.Logger) *Indexer {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{svc: svc, filter: filter, workers: workers, logger: logger}
}

// IndexTree walks root, merges a Folder for every visited directory and syncs
// every note file. Notes and folders the graph holds below root that the walk
// did not find are removed afterwards. Per-file failures are counted and
// logged; only an invalid root or a cancelled context fails the run.
func (ix *Indexer) IndexTree(ctx context.Context, root string) (*Stats, error) {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("index: %s: %w", root, apperr.ErrInvalidRoot)
	}

	runID := uuid.NewString()
	logger := ix.logger.With(slog.String("run_id", runID))
	logger.Info("index: started", slog.String("root", root), slog.Int("workers", ix.workers))

	start := time.Now()
	var (
		mu    sync.Mutex
		stats Stats
		seen  = newWalkSet()
	)
	record := func(fn func(*Stats)) {
		mu.Lock()
		fn(&stats)
		mu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(ix.workers)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			logger.Warn("index: walk failed", slog.String("path", path), slog.String("error", err.Error()))
			record(func(s *Stats) { s.Errors++ })
			seen.unreadable = append(seen.unreadable, path)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && ix.filter.IgnoredDir(d.Name()) {
				logger.Debug("index: ignored dir", slog.String("path", path))
				return filepath.SkipDir
			}
			seen.dirs[path] = struct{}{}
			if err := ix.svc.EnsureFolder(ctx, path); err != nil {
				logger.Warn("index: folder failed", slog.String("path", path), slog.String("error", err.Error()))
				record(func(s *Stats) { s.Errors++ })
				return nil
			}
			record(func(s *Stats) { s.FoldersProcessed++ })
			return nil
		}

		if !d.Type().IsRegular() || !ix.filter.IsNote(d.Name()) {
			record(func(s *Stats) { s.NotesSkipped++ })
			return nil
		}
		seen.notes[path] = struct{}{}

		g.Go(func() error {
			note, err := ix.svc.SyncFile(ctx, path)
			switch {
			case apperr.IsSkip(err):
				logger.Debug("index: skipped",
					slog.String("path", path),
					slog.String("reason", string(apperr.SkipReasonOf(err))))
				record(func(s *Stats) { s.NotesSkipped++ })
			case err != nil:
				logger.Warn("index: file failed", slog.String("path", path), slog.String("error", err.Error()))
				record(func(s *Stats) { s.Errors++ })
			default:
				record(func(s *Stats) {
					s.NotesProcessed++
					s.TotalLinks += len(note.InternalLinks)
					s.TotalTags += len(note.Tags)
					s.TotalHeaders += len(note.Headers)
				})
			}
			return nil
		})
		return nil
	})
	_ = g.Wait()

	if walkErr != nil {
		return nil, fmt.Errorf("index: walk %s: %w", root, walkErr)
	}
	ix.removeStale(ctx, logger, root, seen, &stats)

	stats.Duration = time.Since(start)
	logger.Info("index: finished",
		slog.Int("folders", stats.FoldersProcessed),
		slog.Int("notes", stats.NotesProcessed),
		slog.Int("skipped", stats.NotesSkipped),
		slog.Int("errors", stats.Errors),
		slog.Int("stale_removed", stats.StaleRemoved),
		slog.Duration("duration", stats.Duration))
	return &stats, nil
}

// walkSet is what one walk found on disk. Only the walking goroutine writes it.
type walkSet struct {
	notes      map[string]struct{}
	dirs       map[string]struct{}
	unreadable []string
}

func newWalkSet() *walkSet {
	return &walkSet{notes: make(map[string]struct{}), dirs: make(map[string]struct{})}
}

// missing reports whether path was not found by the walk. Paths at or below
// an unreadable entry are never missing: the walk could not look there.
func (w *walkSet) missing(path string, found map[string]struct{}) bool {
	if _, ok := found[path]; ok {
		return false
	}
	for _, u := range w.unreadable {
		if path == u || strings.HasPrefix(path, u+string(filepath.Separator)) {
			return false
		}
	}
	return true
}

// removeStale deletes Notes, then Folders, recorded below root that no longer
// exist on disk, such as files removed while nothing was watching.
func (ix *Indexer) removeStale(ctx context.Context, logger *slog.Logger, root string, seen *walkSet, stats *Stats) {
	notes, err := ix.svc.Indexed(ctx, graph.LabelNote, root)
	if err != nil {
		logger.Warn("index: list notes failed", slog.String("error", err.Error()))
		stats.Errors++
		return
	}
	for _, p := range notes {
		if !seen.missing(p, seen.notes) {
			continue
		}
		if err := ix.svc.RemoveFile(ctx, p); err != nil {
			logger.Warn("index: stale note removal failed", slog.String("path", p), slog.String("error", err.Error()))
			stats.Errors++
			continue
		}
		logger.Debug("index: stale note removed", slog.String("path", p))
		stats.StaleRemoved++
	}

	folders, err := ix.svc.Indexed(ctx, graph.LabelFolder, root)
	if err != nil {
		logger.Warn("index: list folders failed", slog.String("error", err.Error()))
		stats.Errors++
		return
	}
	for _, p := range folders {
		if !seen.missing(p, seen.dirs) {
			continue
		}
		if err := ix.svc.RemoveFolder(ctx, p); err != nil {
			logger.Warn("index: stale folder removal failed", slog.String("path", p), slog.String("error", err.Error()))
			stats.Errors++
			continue
		}
		logger.Debug("index: stale folder removed", slog.String("path", p))
	}
}
