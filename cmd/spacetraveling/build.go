package main

import (
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/dfryer1193/spacetraveling/blog/application"
	"github.com/dfryer1193/spacetraveling/blog/domain"
	"github.com/dfryer1193/spacetraveling/shared/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newBuildCmd(cfg *config.Config) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Prebuild the newest post pages into the page store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cfg.Pages.Dir == "" && cfg.Pages.Bucket == "" {
				return fmt.Errorf("no page store configured: set pages.dir or pages.bucket")
			}
			if cmd.Flags().Changed("count") {
				cfg.PrebuildCount = count
			}

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			scheduler := application.NewScheduler(a.gateway, cfg.PrebuildCount)

			var plan *application.BuildPlan
			err = retry.Do(
				func() error {
					var planErr error
					plan, planErr = scheduler.Plan(ctx)
					return planErr
				},
				retry.Attempts(5),
				retry.Delay(time.Second),
				retry.MaxDelay(30*time.Second),
				retry.Context(ctx),
				retry.LastErrorOnly(true),
				retry.RetryIf(domain.IsRetryable),
				retry.OnRetry(func(n uint, err error) {
					log.Info().Err(err).Uint("attempt", n).Msg("Retrying build plan")
				}),
			)
			if err != nil {
				return fmt.Errorf("failed to plan build: %w", err)
			}

			if err := a.pages.Prebuild(ctx, plan.UIDs); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Built %d pages (fallback: %s, revalidate every %s)\n",
				len(plan.UIDs), plan.Fallback, plan.Revalidate)
			for _, uid := range plan.UIDs {
				fmt.Fprintf(cmd.OutOrStdout(), "  /posts/%s\n", uid)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", application.DefaultPrebuildCount, "number of newest posts to build")
	return cmd
}
