package library

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"paperbot/internal/metrics"
)

// Uploader pushes one document into the workspace.
type Uploader interface {
	Upload(ctx context.Context, path, filename string) error
}

// Library manages the local papers directory and moves its contents into
// the workspace.
type Library struct {
	dir        string
	extensions []string
	uploader   Uploader
	logger     *slog.Logger
}

type Config struct {
	Dir        string
	Extensions []string // matched case-insensitively, default .txt and .md
	Uploader   Uploader
	Logger     *slog.Logger
}

func New(cfg Config) (*Library, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("library: papers directory not set")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("library: create %s: %w", cfg.Dir, err)
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".txt", ".md"}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Library{
		dir:        cfg.Dir,
		extensions: cfg.Extensions,
		uploader:   cfg.Uploader,
		logger:     cfg.Logger,
	}, nil
}

func (l *Library) Dir() string { return l.dir }

// Paper is one local document.
type Paper struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// List returns the papers in the library directory, sorted by name. Files
// with foreign extensions are ignored.
func (l *Library) List() ([]Paper, error) {
	dirEntries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("library: read %s: %w", l.dir, err)
	}

	var papers []Paper
	for _, entry := range dirEntries {
		if entry.IsDir() || !l.matches(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		papers = append(papers, Paper{
			Name:    entry.Name(),
			Path:    filepath.Join(l.dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(papers, func(i, j int) bool { return papers[i].Name < papers[j].Name })
	return papers, nil
}

func (l *Library) matches(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range l.extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// Add writes a new document into the library directory and returns its path.
// An existing file with the same name is not overwritten; the name gets a
// numeric suffix instead.
func (l *Library) Add(name string, content []byte) (string, error) {
	name = sanitizeFilename(name)
	path := filepath.Join(l.dir, name)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	ext := filepath.Ext(name)
	for i := 2; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(l.dir, fmt.Sprintf("%s_%d%s", base, i, ext))
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("library: write %s: %w", path, err)
	}
	l.logger.Info("paper added", "file", filepath.Base(path), "bytes", len(content))
	return path, nil
}

// UploadFailure records one file that could not be uploaded.
type UploadFailure struct {
	File string
	Err  error
}

// UploadSummary is the outcome of a batch upload.
type UploadSummary struct {
	Uploaded int
	Failed   int
	Failures []UploadFailure
}

// UploadAll pushes every matching paper into the workspace. One failed file
// does not stop the batch; failures are collected in the summary.
func (l *Library) UploadAll(ctx context.Context) (*UploadSummary, error) {
	if l.uploader == nil {
		return nil, fmt.Errorf("library: no uploader configured")
	}
	papers, err := l.List()
	if err != nil {
		return nil, err
	}

	summary := &UploadSummary{}
	for _, paper := range papers {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := l.uploader.Upload(ctx, paper.Path, paper.Name); err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, UploadFailure{File: paper.Name, Err: err})
			metrics.UploadsFailed.Inc()
			l.logger.Warn("upload failed", "file", paper.Name, "error", err)
			continue
		}
		summary.Uploaded++
		metrics.UploadsSucceeded.Inc()
		l.logger.Info("uploaded", "file", paper.Name)
	}
	l.logger.Info("upload summary", "uploaded", summary.Uploaded, "failed", summary.Failed)
	return summary, nil
}

// UploadFile pushes a single document, which may live outside the library
// directory.
func (l *Library) UploadFile(ctx context.Context, path string) error {
	if l.uploader == nil {
		return fmt.Errorf("library: no uploader configured")
	}
	err := l.uploader.Upload(ctx, path, filepath.Base(path))
	if err != nil {
		metrics.UploadsFailed.Inc()
		return err
	}
	metrics.UploadsSucceeded.Inc()
	return nil
}

// sanitizeFilename keeps names filesystem- and upload-safe.
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
	)
	name = replacer.Replace(name)
	if name == "" {
		name = "untitled.txt"
	}
	return name
}
