package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dfryer1193/spacetraveling/blog/application"
	"github.com/dfryer1193/spacetraveling/internal/rest"
	"github.com/dfryer1193/spacetraveling/shared/config"
	gh "github.com/dfryer1193/spacetraveling/shared/github"
	webhook "github.com/dfryer1193/spacetraveling/webhook/http"
	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v75/github"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the blog HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if n, err := a.pages.Warm(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to warm page cache")
	} else if n > 0 {
		log.Info().Int("pages", n).Msg("Warmed page cache from page store")
	}

	var extra []rest.RouteRegistrar
	if cfg.GitHub.Enabled() {
		syncService, err := newSyncFromGitHub(ctx, cfg, a)
		if err != nil {
			return err
		}
		defer func() {
			if err := syncService.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to gracefully close sync service")
			}
		}()

		if cfg.GitHub.WebhookSecret != "" {
			handler, err := webhook.NewWebhookHandler(cfg.GitHub.WebhookSecret, syncService)
			if err != nil {
				return err
			}
			extra = append(extra, handler)
		} else {
			log.Warn().Msg("No webhook secret configured; pushes will not be imported")
		}

		go func() {
			if err := syncService.SyncAll(ctx); err != nil {
				log.Error().Err(err).Msg("Initial sync finished with errors")
			}
		}()
	}

	go prebuild(ctx, a)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := rest.NewApi(rest.NewServer(a.posts, a.pages), extra...)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Msg("Starting server on port :" + fmt.Sprint(cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}

// prebuild renders the newest posts so first visitors do not wait on a build.
func prebuild(ctx context.Context, a *app) {
	plan, err := application.NewScheduler(a.gateway, a.cfg.PrebuildCount).Plan(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to plan page prebuild")
		return
	}
	if err := a.pages.Prebuild(ctx, plan.UIDs); err != nil {
		log.Warn().Err(err).Msg("Failed to prebuild pages")
		return
	}
	log.Info().Strs("uids", plan.UIDs).Msg("Prebuilt pages")
}

func newSyncFromGitHub(ctx context.Context, cfg *config.Config, a *app) (*application.SyncService, error) {
	records, err := a.requireRecords()
	if err != nil {
		return nil, fmt.Errorf("github sync: %w", err)
	}

	ghClient := github.NewClient(nil)
	if cfg.GitHub.Token != "" {
		ghClient = ghClient.WithAuthToken(cfg.GitHub.Token)
	}
	sourceRepo := gh.NewGithubSourceRepository(ghClient, cfg.GitHub.Owner, cfg.GitHub.Repo)

	branch := cfg.GitHub.Branch
	if branch == "" {
		branch, err = sourceRepo.GetDefaultBranchName(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get default branch name: %w", err)
		}
	}

	log.Info().Str("repo", sourceRepo.GetRepoFullName()).Str("branch", branch).Msg("Syncing posts from GitHub")
	importer := application.NewMarkdownImporter(cfg.SiteURL)
	return application.NewSyncService(records, sourceRepo, importer, a.pages, branch), nil
}
