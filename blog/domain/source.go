package domain

import (
	"context"
)

// SourceRepository reads post markdown files from a git hosting service.
// This allows the sync service to be decoupled from a specific implementation.
type SourceRepository interface {
	GetFileContents(ctx context.Context, path string, ref string) ([]byte, error)
	ListFiles(ctx context.Context, dir string, ref string) ([]string, error)
	GetDefaultBranchName(ctx context.Context) (string, error)
	GetRepoFullName() string
}
