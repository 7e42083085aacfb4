// Package filesource reads post markdown from a local checkout instead of the GitHub API.
package filesource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dfryer1193/spacetraveling/blog/domain"
)

// Branch is the only ref a local source knows about.
const Branch = "local"

var _ domain.SourceRepository = (*Source)(nil)

// Source serves files below root. Refs are ignored.
type Source struct {
	root string
}

func New(root string) (*Source, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	return &Source{root: root}, nil
}

func (s *Source) resolve(rel string) (string, error) {
	clean := path.Clean("/" + rel)
	if strings.Contains(rel, "..") && clean != "/"+rel {
		return "", fmt.Errorf("path %q escapes the source directory", rel)
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// GetFileContents reads a file by its slash-separated path relative to the root.
func (s *Source) GetFileContents(_ context.Context, rel string, _ string) ([]byte, error) {
	p, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("file %s: %w", rel, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel, err)
	}
	return data, nil
}

// ListFiles returns the slash-separated paths of regular files directly inside dir.
func (s *Source) ListFiles(_ context.Context, dir string, _ string) ([]string, error) {
	p, err := s.resolve(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("directory %s: %w", dir, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		paths = append(paths, path.Join(dir, e.Name()))
	}
	return paths, nil
}

func (s *Source) GetDefaultBranchName(context.Context) (string, error) {
	return Branch, nil
}

func (s *Source) GetRepoFullName() string {
	return s.root
}
