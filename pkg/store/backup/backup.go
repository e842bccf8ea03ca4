// Package backup writes periodic snapshot files of the thread store.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mercator-hq/localchat/pkg/store"
)

const (
	filePrefix = "threads-"
	fileSuffix = ".json"
	timeLayout = "20060102T150405.000Z"
)

// Exporter is the part of store.Store a backup needs.
type Exporter interface {
	Export(ctx context.Context) (*store.Snapshot, error)
}

// Config contains backup configuration.
type Config struct {
	// Schedule is a standard cron expression. Empty disables scheduling.
	Schedule string

	// Dir is where snapshot files are written.
	Dir string

	// Keep is the number of newest snapshot files retained. Zero keeps all.
	Keep int
}

// Backuper writes snapshot files and prunes old ones.
type Backuper struct {
	source Exporter
	config Config
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Backuper.
func New(source Exporter, cfg Config) *Backuper {
	return &Backuper{
		source: source,
		config: cfg,
		now:    time.Now,
		logger: slog.Default().With("component", "store.backup"),
	}
}

// Run writes one snapshot file and prunes old files. It returns the path of
// the new file.
func (b *Backuper) Run(ctx context.Context) (string, error) {
	snap, err := b.source.Export(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to export store: %w", err)
	}

	name := filePrefix + b.now().UTC().Format(timeLayout) + fileSuffix
	path := filepath.Join(b.config.Dir, name)
	if err := store.WriteSnapshotFile(path, snap); err != nil {
		return "", err
	}

	removed, err := b.prune()
	if err != nil {
		b.logger.WarnContext(ctx, "failed to prune old backups", "dir", b.config.Dir, "error", err)
	}

	b.logger.InfoContext(ctx, "store backup written",
		"path", path,
		"threads", len(snap.Threads),
		"messages", snap.MessageCount(),
		"pruned", removed,
	)
	return path, nil
}

// Files returns the snapshot files in the backup directory, oldest first.
func (b *Backuper) Files() ([]string, error) {
	entries, err := os.ReadDir(b.config.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		files = append(files, filepath.Join(b.config.Dir, name))
	}
	// The timestamp layout sorts lexically.
	sort.Strings(files)
	return files, nil
}

func (b *Backuper) prune() (int, error) {
	if b.config.Keep <= 0 {
		return 0, nil
	}
	files, err := b.Files()
	if err != nil {
		return 0, err
	}
	removed := 0
	for len(files) > b.config.Keep {
		if err := os.Remove(files[0]); err != nil {
			return removed, err
		}
		files = files[1:]
		removed++
	}
	return removed, nil
}
