// Command spacetraveling serves and builds the blog.
package main

import (
	"os"

	"github.com/dfryer1193/spacetraveling/shared/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd creates the root command; every subcommand gets the loaded config through cfg.
func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		cfg     = &config.Config{}
	)

	rootCmd := &cobra.Command{
		Use:           "spacetraveling",
		Short:         "Serve and build the spacetraveling blog",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			*cfg = *loaded
			configureLogging(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			log.Debug().Str("source", cfg.Source).Msg("Configuration loaded")
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate("spacetraveling version {{.Version}}\n")

	rootCmd.AddCommand(newServeCmd(cfg))
	rootCmd.AddCommand(newBuildCmd(cfg))
	rootCmd.AddCommand(newBrowseCmd(cfg))
	rootCmd.AddCommand(newImportCmd(cfg))

	return rootCmd
}
