// Package pagestore persists built post pages so a restarted server can serve them before rebuilding.
package pagestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"github.com/dfryer1193/spacetraveling/blog/domain"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
)

const keyPrefix = "page-"

var uidPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Store saves pages either to a local directory or to a Cloud Storage bucket.
// A non-empty localPath wins over the bucket.
type Store struct {
	client    *storage.Client
	bucket    string
	localPath string
}

// NewLocal creates a store backed by a directory, creating it if needed.
func NewLocal(localPath string) (*Store, error) {
	if err := os.MkdirAll(localPath, 0o755); err != nil {
		return nil, fmt.Errorf("create page directory: %w", err)
	}
	return &Store{localPath: localPath}, nil
}

// NewGCS creates a store backed by a Cloud Storage bucket.
func NewGCS(client *storage.Client, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// Key returns the object name for a page uid, or "" when the uid is not a safe slug.
func Key(uid string) string {
	if !uidPattern.MatchString(uid) {
		return ""
	}
	return keyPrefix + uid + ".json"
}

func retryOptions(ctx context.Context, op, key string) []retry.Option {
	return []retry.Option{
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30 * time.Second),
		retry.MaxJitter(time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Info().Err(err).Uint("attempt", n).Str("key", key).Msgf("Retrying page %s", op)
		}),
	}
}

// Save writes a page entry.
func (s *Store) Save(ctx context.Context, entry *domain.CacheEntry) error {
	if entry == nil || entry.Page == nil || entry.Page.Post == nil {
		return errors.New("page entry has no post")
	}

	key := Key(entry.Page.Post.UID)
	if key == "" {
		return fmt.Errorf("invalid page uid %q", entry.Page.Post.UID)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal page: %w", err)
	}

	if s.localPath != "" {
		if err := os.WriteFile(filepath.Join(s.localPath, key), data, 0o644); err != nil {
			return fmt.Errorf("write to local storage: %w", err)
		}
		log.Debug().Str("key", key).Msg("Page saved to local storage")
		return nil
	}

	err = retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
			w.ContentType = "application/json"
			if _, writeErr := w.Write(data); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					log.Warn().Err(closeErr).Msg("Failed to close writer after error")
				}
				return fmt.Errorf("write to storage: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close storage writer: %w", closeErr)
			}
			return nil
		},
		retryOptions(ctx, "save", key)...,
	)
	if err != nil {
		return fmt.Errorf("save after retries: %w", err)
	}

	log.Debug().Str("key", key).Str("bucket", s.bucket).Msg("Page saved")
	return nil
}

// Load reads a page entry by uid. A missing page is domain.ErrNotFound.
func (s *Store) Load(ctx context.Context, uid string) (*domain.CacheEntry, error) {
	key := Key(uid)
	if key == "" {
		return nil, fmt.Errorf("invalid page uid %q", uid)
	}
	return s.load(ctx, key)
}

func (s *Store) load(ctx context.Context, key string) (*domain.CacheEntry, error) {
	var data []byte

	if s.localPath != "" {
		var err error
		data, err = os.ReadFile(filepath.Join(s.localPath, key))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("page %s: %w", key, domain.ErrNotFound)
			}
			return nil, fmt.Errorf("read from local storage: %w", err)
		}
	} else {
		err := retry.Do(
			func() error {
				r, openErr := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
				if openErr != nil {
					if errors.Is(openErr, storage.ErrObjectNotExist) {
						return retry.Unrecoverable(fmt.Errorf("page %s: %w", key, domain.ErrNotFound))
					}
					return fmt.Errorf("open storage reader: %w", openErr)
				}
				defer func() {
					if closeErr := r.Close(); closeErr != nil {
						log.Warn().Err(closeErr).Msg("Failed to close storage reader")
					}
				}()

				var readErr error
				data, readErr = io.ReadAll(r)
				if readErr != nil {
					return fmt.Errorf("read from storage: %w", readErr)
				}
				return nil
			},
			retryOptions(ctx, "load", key)...,
		)
		if err != nil {
			return nil, fmt.Errorf("load after retries: %w", err)
		}
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal page %s: %w", key, err)
	}
	return &entry, nil
}

// Delete removes a page. Deleting a missing page is not an error.
func (s *Store) Delete(ctx context.Context, uid string) error {
	key := Key(uid)
	if key == "" {
		return fmt.Errorf("invalid page uid %q", uid)
	}

	if s.localPath != "" {
		if err := os.Remove(filepath.Join(s.localPath, key)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete from local storage: %w", err)
		}
		return nil
	}

	err := retry.Do(
		func() error {
			if deleteErr := s.client.Bucket(s.bucket).Object(key).Delete(ctx); deleteErr != nil {
				if errors.Is(deleteErr, storage.ErrObjectNotExist) {
					return nil
				}
				return fmt.Errorf("delete from storage: %w", deleteErr)
			}
			return nil
		},
		retryOptions(ctx, "delete", key)...,
	)
	if err != nil {
		return fmt.Errorf("delete after retries: %w", err)
	}
	return nil
}

// List loads every stored page. Unreadable pages are skipped.
func (s *Store) List(ctx context.Context) ([]*domain.CacheEntry, error) {
	var keys []string

	if s.localPath != "" {
		entries, err := os.ReadDir(s.localPath)
		if err != nil {
			return nil, fmt.Errorf("read local storage directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !isPageKey(entry.Name()) {
				continue
			}
			keys = append(keys, entry.Name())
		}
	} else {
		it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: keyPrefix})
		for {
			attrs, err := it.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("iterate storage: %w", err)
			}
			if isPageKey(attrs.Name) {
				keys = append(keys, attrs.Name)
			}
		}
	}

	pages := make([]*domain.CacheEntry, 0, len(keys))
	for _, key := range keys {
		entry, err := s.load(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to load page")
			continue
		}
		pages = append(pages, entry)
	}
	return pages, nil
}

func isPageKey(name string) bool {
	return strings.HasPrefix(name, keyPrefix) && strings.HasSuffix(name, ".json")
}
