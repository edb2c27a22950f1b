// Package ingest registers uploaded form files in the document store.
package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/transportschein/constants"
	"github.com/joseph-ayodele/transportschein/internal/repository"
)

type FileResult struct {
	Path       string
	DocumentID uuid.UUID
	Err        string
}

type DirStats struct {
	Scanned    uint32
	Matched    uint32
	Registered uint32
	Failed     uint32
}

// Scanner walks upload directories and creates document rows.
type Scanner struct {
	store  *repository.Documents
	logger *slog.Logger
}

func NewScanner(store *repository.Documents, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{store: store, logger: logger}
}

// RegisterFile registers one file. The extension gate runs before any store
// access.
func (s *Scanner) RegisterFile(ctx context.Context, path string) (repository.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return repository.Document{}, err
	}
	ext := constants.NormalizeExt(filepath.Ext(abs))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return repository.Document{}, errors.New("unsupported or missing extension")
	}
	return s.store.Create(ctx, filepath.Base(abs), abs)
}

// ScanDirectory walks root, registers every accepted file, and skips hidden
// entries when asked. Failures are collected per file; the walk keeps going.
func (s *Scanner) ScanDirectory(ctx context.Context, root string, skipHidden bool) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []FileResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil // continue walking
		}
		name := d.Name()
		if skipHidden && strings.HasPrefix(name, ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := constants.NormalizeExt(filepath.Ext(name))
		if _, ok := constants.AllowedExtensions[ext]; !ok {
			return nil
		}
		stats.Matched++

		doc, err := s.RegisterFile(ctx, path)
		if err != nil {
			s.logger.Warn("ingest.register.failed", "path", path, "error", err)
			results = append(results, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		results = append(results, FileResult{Path: path, DocumentID: doc.ID})
		stats.Registered++
		return nil
	})
	if err != nil {
		return results, stats, err
	}

	s.logger.Info("ingest.scan.done", "root", root,
		"scanned", stats.Scanned, "matched", stats.Matched,
		"registered", stats.Registered, "failed", stats.Failed)
	return results, stats, nil
}
