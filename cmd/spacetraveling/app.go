package main

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/dfryer1193/spacetraveling/blog/application"
	"github.com/dfryer1193/spacetraveling/blog/cache"
	"github.com/dfryer1193/spacetraveling/blog/domain"
	"github.com/dfryer1193/spacetraveling/blog/persistence"
	"github.com/dfryer1193/spacetraveling/shared/config"
	"github.com/dfryer1193/spacetraveling/shared/db/sqlite"
	"github.com/dfryer1193/spacetraveling/shared/pagestore"
	"github.com/dfryer1193/spacetraveling/shared/prismic"
	"github.com/rs/zerolog/log"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg     *config.Config
	gateway domain.Gateway
	// records is nil unless the local SQLite store is the source.
	records domain.RecordRepository
	posts   *application.PostService
	pages   *cache.PageCache
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	switch cfg.Source {
	case config.SourcePrismic:
		client, err := prismic.NewClient(cfg.Prismic.Endpoint, prismic.WithAccessToken(cfg.Prismic.AccessToken))
		if err != nil {
			return nil, err
		}
		a.gateway = client
	default:
		database := sqlite.NewSQLiteDB(&sqlite.SQLiteConfig{
			Path:        cfg.SQLite.Path,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
		if err := database.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, database.Close)

		repo := persistence.NewRecordRepository(database.DB())
		a.gateway = repo
		a.records = repo
	}

	a.posts = application.NewPostService(a.gateway, cfg.PageSize)

	var opts []cache.Option
	store, err := a.openPageStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if store != nil {
		opts = append(opts, cache.WithStore(store))
	}
	a.pages = cache.NewPageCache(a.posts, opts...)
	a.closers = append(a.closers, a.pages.Close)

	return a, nil
}

func (a *app) openPageStore(ctx context.Context) (*pagestore.Store, error) {
	switch {
	case a.cfg.Pages.Bucket != "":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		log.Info().Str("bucket", a.cfg.Pages.Bucket).Msg("Persisting pages to Cloud Storage")
		return pagestore.NewGCS(client, a.cfg.Pages.Bucket), nil
	case a.cfg.Pages.Dir != "":
		log.Info().Str("dir", a.cfg.Pages.Dir).Msg("Persisting pages to local directory")
		return pagestore.NewLocal(a.cfg.Pages.Dir)
	default:
		return nil, nil
	}
}

func (a *app) requireRecords() (domain.RecordRepository, error) {
	if a.records == nil {
		return nil, errors.New("this command needs the sqlite source")
	}
	return a.records, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Error().Err(err).Msg("Failed to close resource")
		}
	}
	a.closers = nil
}
