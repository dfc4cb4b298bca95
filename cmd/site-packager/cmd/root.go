package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/site-packager/internal/config"
	"github.com/oshokin/site-packager/internal/logger"
	"github.com/oshokin/site-packager/internal/service/packager"
	"github.com/oshokin/site-packager/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// sourceDir overrides the configured source build directory.
	sourceDir string

	// outputDir overrides the configured output root.
	outputDir string

	// watch keeps the packager running and repackaging on source changes.
	watch bool

	// logLevel selects the logging verbosity.
	logLevel string

	// rootCmd represents the base command for packaging a static build.
	rootCmd = &cobra.Command{
		Use:   "site-packager",
		Short: "Package a static web build into the Vercel Build Output layout",
		Long: `site-packager mirrors a static web export into .vercel/output/static,
promotes the JavaScript bundle to /bundle.js, rewrites index.html to
reference it and emits the config.json routing manifest.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			options := &packager.Options{
				ConfigPath: configPath,
				SourceDir:  sourceDir,
				OutputDir:  outputDir,
				Watch:      watch,
			}

			return packager.Run(ctx, options)
		},
	}
)

// Execute runs the site-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&sourceDir, "source", "s", "", "source build directory (overrides configuration)")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output root directory (overrides configuration)")
	rootCmd.Flags().BoolVarP(&watch, "watch", "w", false, "repackage whenever the source directory changes")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "logging level (debug, info, warn, error)")
}
