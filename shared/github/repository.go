package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dfryer1193/spacetraveling/blog/domain"
	"github.com/google/go-github/v75/github"
)

var _ domain.SourceRepository = (*GithubSourceRepository)(nil)

// GithubSourceRepository is an implementation of domain.SourceRepository that uses the GitHub API.
type GithubSourceRepository struct {
	client  *github.Client
	owner   string
	gitRepo string
}

// NewGithubSourceRepository creates a new GithubSourceRepository.
func NewGithubSourceRepository(client *github.Client, owner string, gitRepo string) *GithubSourceRepository {
	return &GithubSourceRepository{
		client:  client,
		owner:   owner,
		gitRepo: gitRepo,
	}
}

// GetFileContents fetches the contents of a file at a specific ref (branch, tag, or commit SHA).
func (g *GithubSourceRepository) GetFileContents(ctx context.Context, path string, ref string) ([]byte, error) {
	op := fmt.Sprintf("getting file %s at ref %s", path, ref)
	fileContent, _, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.gitRepo, path, &github.RepositoryContentGetOptions{
		Ref: ref,
	})
	if err != nil {
		return nil, handleGithubError(op, err)
	}

	if fileContent == nil {
		return nil, fmt.Errorf("github: %s returned nil file content", op)
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return nil, fmt.Errorf("github: %s failed to decode content: %w", op, err)
	}

	return []byte(content), nil
}

// ListFiles returns the paths of the regular files directly inside dir at ref.
func (g *GithubSourceRepository) ListFiles(ctx context.Context, dir string, ref string) ([]string, error) {
	op := fmt.Sprintf("listing %s at ref %s", dir, ref)
	_, entries, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.gitRepo, dir, &github.RepositoryContentGetOptions{
		Ref: ref,
	})
	if err != nil {
		return nil, handleGithubError(op, err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.GetType() != "file" {
			continue
		}
		paths = append(paths, entry.GetPath())
	}
	return paths, nil
}

// GetRepoFullName returns the repository's full name (e.g., "owner/repo").
func (g *GithubSourceRepository) GetRepoFullName() string {
	return fmt.Sprintf("%s/%s", g.owner, g.gitRepo)
}

// GetDefaultBranchName fetches the repository metadata and returns the name of the default branch.
func (g *GithubSourceRepository) GetDefaultBranchName(ctx context.Context) (string, error) {
	op := fmt.Sprintf("getting repository info for %s/%s", g.owner, g.gitRepo)
	repo, _, err := g.client.Repositories.Get(ctx, g.owner, g.gitRepo)
	if err != nil {
		return "", handleGithubError(op, err)
	}
	return repo.GetDefaultBranch(), nil
}

// handleGithubError maps go-github failures onto domain errors: a 404 wraps
// domain.ErrNotFound and everything else becomes a *domain.TransportError.
func handleGithubError(op string, err error) error {
	if err == nil {
		return nil
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &domain.TransportError{Op: "github: " + op, StatusCode: http.StatusTooManyRequests, Err: err}
	}

	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		if errResp.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("github: %s: %w", op, domain.ErrNotFound)
		}
		return &domain.TransportError{Op: "github: " + op, StatusCode: errResp.Response.StatusCode, Err: errors.New(errResp.Message)}
	}

	return &domain.TransportError{Op: "github: " + op, Err: err}
}
