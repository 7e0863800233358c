package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
)

var errOutsideRoot = errors.New("path escapes storage root")

// Storage keeps uploads under basePath/<dir>/<name>. Keys use forward slashes.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/uploads"
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: abs}, nil
}

func (s *Storage) BasePath() string {
	return s.basePath
}

// Probe writes and removes a marker file so a read-only mount fails at startup.
func (s *Storage) Probe() error {
	marker := filepath.Join(s.basePath, ".write_probe")
	if err := os.WriteFile(marker, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("upload dir %s is not writable: %w", s.basePath, err)
	}
	if err := os.Remove(marker); err != nil {
		return fmt.Errorf("remove write probe: %w", err)
	}
	return nil
}

func (s *Storage) Save(_ context.Context, dir, name string, data io.Reader, maxBytes int64) (string, int64, error) {
	if err := checkElement(dir); err != nil {
		return "", 0, domain.WrapError(domain.ErrInvalidInput, "storage save", err)
	}
	if err := checkElement(name); err != nil {
		return "", 0, domain.WrapError(domain.ErrInvalidInput, "storage save", err)
	}

	key := path.Join(dir, name)
	target, err := s.Resolve(key)
	if err != nil {
		return "", 0, domain.WrapError(domain.ErrInvalidInput, "storage save", err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", 0, fmt.Errorf("create submission dir: %w", err)
	}

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", 0, fmt.Errorf("create file: %w", err)
	}

	src := data
	if maxBytes > 0 {
		src = io.LimitReader(data, maxBytes+1)
	}
	written, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		_ = os.Remove(target)
		return "", 0, fmt.Errorf("write file: %w", copyErr)
	case closeErr != nil:
		_ = os.Remove(target)
		return "", 0, fmt.Errorf("close file: %w", closeErr)
	case maxBytes > 0 && written > maxBytes:
		_ = os.Remove(target)
		return "", 0, domain.Failf(domain.ErrInvalidInput, "File too large (max %d MB)", maxBytes/(1024*1024))
	}
	return key, written, nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	target, err := s.Resolve(key)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "storage open", err)
	}
	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrNotFound, "storage open", err)
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (s *Storage) Remove(_ context.Context, key string) error {
	target, err := s.Resolve(key)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "storage remove", err)
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func (s *Storage) RemoveDir(_ context.Context, dir string) error {
	if err := checkElement(dir); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "storage remove dir", err)
	}
	target, err := s.Resolve(dir)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "storage remove dir", err)
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("remove dir: %w", err)
	}
	return nil
}

// Resolve maps a key to an absolute path and verifies it stays strictly below the root.
func (s *Storage) Resolve(key string) (string, error) {
	if key == "" || strings.Contains(key, `\`) || path.IsAbs(key) {
		return "", fmt.Errorf("%w: %q", errOutsideRoot, key)
	}
	target := filepath.Join(s.basePath, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.basePath, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", errOutsideRoot, key)
	}
	return target, nil
}

func checkElement(elem string) error {
	if elem == "" || elem == "." || elem == ".." || strings.ContainsAny(elem, `/\`) || strings.ContainsRune(elem, 0) {
		return fmt.Errorf("%w: invalid path element %q", errOutsideRoot, elem)
	}
	return nil
}
