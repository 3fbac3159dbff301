package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	uploadsDir = "uploads"
	metaDir    = ".meta"
)

// LocalStorage implements Storage under <base>/uploads/<kind>.
type LocalStorage struct {
	basePath string
	now      func() time.Time
}

// NewLocalStorage creates a new local filesystem storage
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(filepath.Join(basePath, uploadsDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath, now: time.Now}, nil
}

// Upload stores a file and returns its metadata
func (s *LocalStorage) Upload(ctx context.Context, kind, filename, contentType string, r io.Reader) (*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.kindDir(kind)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(dir, metaDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	fileID := uuid.New()
	stored := fmt.Sprintf("%s_%s", fileID.String()[:8], sanitizeFilename(filepath.Base(filename)))
	filePath := filepath.Join(dir, stored)

	f, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	size, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(filePath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	info := &FileInfo{
		ID:          fileID,
		Kind:        kind,
		Name:        filename,
		Size:        size,
		ContentType: contentType,
		Path:        stored,
		CreatedAt:   s.now(),
	}
	if err := s.saveMetadata(dir, info); err != nil {
		os.Remove(filePath)
		return nil, err
	}
	return info, nil
}

// Open returns a reader for a stored file
func (s *LocalStorage) Open(ctx context.Context, kind string, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error) {
	info, err := s.GetInfo(ctx, kind, fileID)
	if err != nil {
		return nil, nil, err
	}
	dir, _ := s.kindDir(kind)
	f, err := os.Open(filepath.Join(dir, info.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, info, nil
}

// Delete removes a file by its ID
func (s *LocalStorage) Delete(ctx context.Context, kind string, fileID uuid.UUID) error {
	info, err := s.GetInfo(ctx, kind, fileID)
	if err != nil {
		return err
	}
	dir, _ := s.kindDir(kind)
	if err := os.Remove(filepath.Join(dir, info.Path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	os.Remove(metaPath(dir, fileID))
	return nil
}

// List returns the files of a kind, oldest first
func (s *LocalStorage) List(ctx context.Context, kind string) ([]*FileInfo, error) {
	dir, err := s.kindDir(kind)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(dir, metaDir))
	if errors.Is(err, fs.ErrNotExist) {
		return []*FileInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}

	files := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		info, err := s.GetInfo(ctx, kind, id)
		if err != nil {
			continue
		}
		files = append(files, info)
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].CreatedAt.Before(files[j].CreatedAt)
	})
	return files, nil
}

// GetInfo returns metadata for a file without opening it
func (s *LocalStorage) GetInfo(ctx context.Context, kind string, fileID uuid.UUID) (*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.kindDir(kind)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(metaPath(dir, fileID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &info, nil
}

func (s *LocalStorage) kindDir(kind string) (string, error) {
	clean := sanitizeFilename(kind)
	if clean == "" || clean != kind || strings.HasPrefix(kind, ".") {
		return "", fmt.Errorf("invalid storage kind %q", kind)
	}
	return filepath.Join(s.basePath, uploadsDir, kind), nil
}

func (s *LocalStorage) saveMetadata(dir string, info *FileInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(metaPath(dir, info.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

func metaPath(dir string, fileID uuid.UUID) string {
	return filepath.Join(dir, metaDir, fileID.String()+".json")
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	"..", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	return filenameReplacer.Replace(name)
}
