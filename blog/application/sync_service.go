package application

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/dfryer1193/mjolnir/utils/set"
	"github.com/dfryer1193/spacetraveling/blog/domain"
	"github.com/google/go-github/v75/github"
	"github.com/rs/zerolog/log"
)

const postsDir = "posts"

var (
	postPathRegex = regexp.MustCompile(`^posts/(\d+)-(.+)\.md$`)
)

// PageInvalidator drops cached pages after their source changed.
type PageInvalidator interface {
	Invalidate(uid string)
}

// SyncService keeps the local content store in step with a git repository of markdown posts.
type SyncService struct {
	sourceRepo     domain.SourceRepository
	importer       MarkdownImporter
	invalidator    PageInvalidator
	mainBranchName string

	// Service lifecycle context - cancelled when Close() is called
	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup

	repo domain.RecordRepository
}

func NewSyncService(repo domain.RecordRepository, sourceRepo domain.SourceRepository, importer MarkdownImporter, invalidator PageInvalidator, mainBranchName string) *SyncService {
	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}
	return &SyncService{
		sourceRepo:     sourceRepo,
		importer:       importer,
		invalidator:    invalidator,
		mainBranchName: mainBranchName,
		ctx:            ctx,
		cancel:         cancel,
		wg:             &wg,
		repo:           repo,
	}
}

// Close gracefully shuts down the SyncService by cancelling all background workers
func (s *SyncService) Close() error {
	s.cancel()
	s.wg.Wait()

	return nil
}

// Wait blocks until all workers spawned so far have finished.
func (s *SyncService) Wait() {
	s.wg.Wait()
}

// SyncAll imports every post file on the main branch.
// This catches any changes that happened while the server was offline
func (s *SyncService) SyncAll(ctx context.Context) error {
	paths, err := s.sourceRepo.ListFiles(ctx, postsDir, s.mainBranchName)
	if err != nil {
		return fmt.Errorf("failed to list post files: %w", err)
	}

	var failed int
	for _, p := range paths {
		if !isPostFile(p) {
			continue
		}
		// Change time is unknown on a full resync; existing timestamps are kept.
		if err := s.processPostFile(ctx, p, s.mainBranchName, time.Time{}); err != nil {
			log.Error().Err(err).Str("path", p).Msg("Failed to import post")
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("failed to import %d post files", failed)
	}
	return nil
}

func handleCommitFiles(
	commit *github.HeadCommit,
	filesToProcess map[string]time.Time,
	filesToRemove set.Set[string],
) (map[string]time.Time, set.Set[string]) {
	changedAt := commit.GetTimestamp().Time

	for _, changed := range [][]string{commit.Added, commit.Modified} {
		for _, path := range changed {
			if !isPostFile(path) {
				continue
			}
			filesToProcess[path] = changedAt
			filesToRemove.Remove(path)
		}
	}

	for _, path := range commit.Removed {
		if !isPostFile(path) {
			continue
		}
		delete(filesToProcess, path)
		filesToRemove.Add(path)
	}

	return filesToProcess, filesToRemove
}

// analyzeCommits walks a push's commits oldest to newest to determine which files changed and which were removed.
// A removal is dropped when another path with the same post id is imported, since a rename
// arrives as a removal of the old path plus an addition of the new one.
func analyzeCommits(commits []*github.HeadCommit) (map[string]time.Time, set.Set[string]) {
	filesToProcess := make(map[string]time.Time)
	filesToRemove := set.New[string]()

	for _, commit := range commits {
		filesToProcess, filesToRemove = handleCommitFiles(commit, filesToProcess, filesToRemove)
	}

	importedIDs := make(map[string]bool, len(filesToProcess))
	for path := range filesToProcess {
		importedIDs[extractPostID(path)] = true
	}
	for _, path := range filesToRemove.Items() {
		if importedIDs[extractPostID(path)] {
			filesToRemove.Remove(path)
		}
	}
	return filesToProcess, filesToRemove
}

// postWork is everything a push does to one post id.
type postWork struct {
	removals []string
	imports  []string
}

// groupByPostID collects a push's changes per post id so that no id is touched by two workers.
func groupByPostID(filesToProcess map[string]time.Time, filesToRemove set.Set[string]) map[string]*postWork {
	work := make(map[string]*postWork)
	get := func(path string) *postWork {
		id := extractPostID(path)
		w, ok := work[id]
		if !ok {
			w = &postWork{}
			work[id] = w
		}
		return w
	}

	for _, path := range filesToRemove.Items() {
		w := get(path)
		w.removals = append(w.removals, path)
	}
	for path := range filesToProcess {
		w := get(path)
		w.imports = append(w.imports, path)
	}
	for _, w := range work {
		sort.Strings(w.removals)
		sort.Strings(w.imports)
	}
	return work
}

// HandlePushEvent imports posts touched by a push to the main branch.
// This method returns immediately after validating the event and spawning async workers
// Workers use the service's lifecycle context, not the request context
func (s *SyncService) HandlePushEvent(evt *github.PushEvent) error {
	if evt.GetRef() != "refs/heads/"+s.mainBranchName {
		log.Debug().Str("ref", evt.GetRef()).Msg("Ignoring push to non-main branch")
		return nil
	}

	headSHA := evt.GetAfter()
	if headSHA == "" {
		return fmt.Errorf("push event has no head commit")
	}

	filesToProcess, filesToRemove := analyzeCommits(evt.Commits)

	// One worker per post id; removals run before imports.
	for _, work := range groupByPostID(filesToProcess, filesToRemove) {
		w := work
		s.wg.Go(func() {
			for _, path := range w.removals {
				if err := s.removePostFile(s.ctx, path); err != nil {
					log.Error().Err(err).Str("path", path).Msg("Failed to remove post")
				}
			}
			for _, path := range w.imports {
				// Use the head SHA instead of the ref to get the exact file version
				if err := s.processPostFile(s.ctx, path, headSHA, filesToProcess[path]); err != nil {
					log.Error().Err(err).Str("path", path).Str("commitSHA", headSHA).Msg("Failed to import post")
				}
			}
		})
	}

	return nil
}

// processPostFile imports a single post file
// This function respects context cancellation for graceful shutdown
func (s *SyncService) processPostFile(ctx context.Context, path string, ref string, changedAt time.Time) error {
	id := extractPostID(path)
	if id == "" {
		return fmt.Errorf("not a post file: %s", path)
	}

	markdownContent, err := s.sourceRepo.GetFileContents(ctx, path, ref)
	if err != nil {
		return fmt.Errorf("failed to get file contents: %w", err)
	}

	meta := SourceMeta{
		ID:          id,
		UID:         slugFromPath(path),
		PublishedAt: changedAt,
		EditedAt:    changedAt,
	}

	existing, err := s.repo.GetByID(ctx, id)
	switch {
	case err == nil:
		if t, perr := domain.ParseTimestamp(existing.FirstPublicationAt); perr == nil {
			meta.PublishedAt = t
		}
		if changedAt.IsZero() {
			if t, perr := domain.ParseTimestamp(existing.LastPublicationAt); perr == nil {
				meta.EditedAt = t
			}
		}
	case errors.Is(err, domain.ErrNotFound):
		if changedAt.IsZero() {
			meta.PublishedAt = time.Now().UTC()
		}
	default:
		return fmt.Errorf("failed to look up existing post %s: %w", id, err)
	}

	rec, err := s.importer.Import(markdownContent, meta)
	if err != nil {
		return err
	}

	if err := s.repo.UpsertRecord(ctx, rec); err != nil {
		return fmt.Errorf("failed to upsert post %s: %w", id, err)
	}

	if existing != nil && existing.UID != rec.UID {
		s.invalidate(existing.UID)
	}
	s.invalidate(rec.UID)

	log.Info().Str("path", path).Str("uid", rec.UID).Msg("Imported post")
	return nil
}

func (s *SyncService) removePostFile(ctx context.Context, path string) error {
	id := extractPostID(path)
	if id == "" {
		return nil
	}

	uid, err := s.repo.DeleteRecord(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	s.invalidate(uid)
	log.Info().Str("path", path).Str("uid", uid).Msg("Removed post")
	return nil
}

func (s *SyncService) invalidate(uid string) {
	if s.invalidator != nil && uid != "" {
		s.invalidator.Invalidate(uid)
	}
}

// isPostFile checks if a file path is a valid post file in the posts/ directory
// Valid format: posts/NNN-title-of-post.md where NNN is one or more digits
func isPostFile(path string) bool {
	return postPathRegex.MatchString(path)
}

// extractPostID extracts the numeric ID from a post filename
// Example: "posts/001-my-post.md" -> "001"
func extractPostID(path string) string {
	matches := postPathRegex.FindStringSubmatch(path)
	if len(matches) < 3 {
		return ""
	}
	return matches[1]
}

// slugFromPath extracts the slug from a post filename
// Example: "posts/001-my-post.md" -> "my-post"
func slugFromPath(path string) string {
	matches := postPathRegex.FindStringSubmatch(path)
	if len(matches) < 3 {
		return ""
	}
	return matches[2]
}

// slugFromFilename strips a leading "NNN-" from a bare file name.
func slugFromFilename(name string) string {
	if slug := slugFromPath(postsDir + "/" + name + ".md"); slug != "" {
		return slug
	}
	return name
}
