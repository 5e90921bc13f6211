// Package cli implements the bikesearch command tree.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/bikesearch"
	"github.com/adamwoolhether/bikesearch/client"
	"github.com/adamwoolhether/bikesearch/internal/config"
	"github.com/adamwoolhether/bikesearch/internal/logging"
	"github.com/adamwoolhether/bikesearch/internal/storage"
	"github.com/adamwoolhether/bikesearch/query"
)

const openMessage = "Would you like to enter the parameters yourself or watch a demonstration?\n" +
	"To watch the demo, press Enter. To input your own parameters, type anything else.\nInput:"

// app carries what every command needs once flags are parsed.
type app struct {
	cfgFile string
	envFile string

	cfg    config.Config
	logger *slog.Logger
	closer io.Closer
	mirror *storage.Mirror
	prompt *prompter

	bucketReady bool
}

// NewRootCmd builds the command tree. Running it without a subcommand asks
// whether to run the demo or the interactive search.
func NewRootCmd() *cobra.Command {
	var a app

	root := &cobra.Command{
		Use:           "bikesearch",
		Short:         "Search the Bike Index registry and save the results",
		Long:          "bikesearch queries the Bike Index search API, previews the matches, caches the raw results as JSON and downloads the bike images.",
		Version:       bikesearch.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			decision, err := a.prompt.ask(openMessage)
			if err != nil {
				return err
			}
			if decision != "" {
				return a.runInteractive(cmd)
			}
			return a.runDemo(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default $XDG_CONFIG_HOME/bikesearch/config.yml)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file to load; empty to skip")
	flags.String("output-root", "", "directory images and JSON files are written under (default current directory)")
	flags.Duration("timeout", 0, "timeout for every network call (default 5s)")
	flags.String("base-url", "", "search endpoint (default "+query.DefaultBaseURL+")")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.Bool("progress", false, "log download progress")

	root.AddCommand(newDemoCmd(&a), newInteractiveCmd(&a), newConfigCmd(&a))

	return root
}

// setup loads the configuration and builds the logger and the optional
// mirror.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(
		config.WithFile(a.cfgFile),
		config.WithEnvFile(a.envFile),
		config.WithFlags(cmd.Flags()),
	)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, closer, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	a.logger = logger
	a.closer = closer

	if cfg.S3.Enabled() {
		mirror, err := storage.NewS3(cfg.S3, logger)
		if err != nil {
			return fmt.Errorf("building s3 mirror: %w", err)
		}
		a.mirror = mirror
	}

	a.prompt = newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())

	return nil
}

func (a *app) close() error {
	if a.closer == nil {
		return nil
	}

	return a.closer.Close()
}

// newQuery builds a query with the configured client and output settings.
func (a *app) newQuery(cmd *cobra.Command) (*query.Query, error) {
	clientOpts := []client.Option{client.WithLogger(a.logger)}
	if a.cfg.UserAgent != "" {
		clientOpts = append(clientOpts, client.WithUserAgent(a.cfg.UserAgent))
	}
	if a.cfg.HTTP.RateLimit > 0 {
		clientOpts = append(clientOpts, client.WithThrottle(a.cfg.HTTP.RateLimit, a.cfg.HTTP.Burst))
	}

	queryOpts := []query.Option{
		query.WithBaseURL(a.cfg.BaseURL),
		query.WithTimeout(a.cfg.Timeout),
		query.WithOutputRoot(a.cfg.Output.Root),
		query.WithLogger(a.logger),
		query.WithOutput(cmd.OutOrStdout()),
	}
	if a.cfg.Progress {
		queryOpts = append(queryOpts, query.WithProgress())
	}

	return bikesearch.NewQuery(clientOpts, queryOpts...)
}

// report logs err and tells the user about it without stopping the run.
func (a *app) report(cmd *cobra.Command, msg string, err error) {
	a.logger.Error(msg, "error", err)
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", msg, err)
}

// cacheResults writes the JSON cache and mirrors it. Failures are
// reported and do not end the run.
func (a *app) cacheResults(cmd *cobra.Command, q *query.Query, name string) {
	path, err := q.CacheResults(name)
	if err != nil {
		a.report(cmd, "caching results", err)
		return
	}

	if !a.mirrorReady(cmd) {
		return
	}
	if _, err := a.mirror.UploadFile(cmd.Context(), path, filepath.Base(path)); err != nil {
		a.report(cmd, "mirroring results", err)
	}
}

// saveImages downloads the images into dir and mirrors the ones written.
// Failures are reported and do not end the run.
func (a *app) saveImages(cmd *cobra.Command, q *query.Query, dir string) {
	if dir == "" {
		dir, _ = q.SubdirName()
	}

	saved, err := q.SaveImages(cmd.Context(), dir)
	if err != nil {
		a.report(cmd, "saving images", err)
	}

	if len(saved) == 0 || !a.mirrorReady(cmd) {
		return
	}
	n, err := a.mirror.UploadImages(cmd.Context(), dir, saved)
	if err != nil {
		a.report(cmd, "mirroring images", err)
	}
	if n > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Mirrored %d images to the %s bucket.\n", n, a.cfg.S3.Bucket)
	}
}

// mirrorReady reports whether a mirror is configured and its bucket exists,
// creating the bucket on first use.
func (a *app) mirrorReady(cmd *cobra.Command) bool {
	if a.mirror == nil {
		return false
	}
	if a.bucketReady {
		return true
	}

	if err := a.mirror.EnsureBucket(cmd.Context()); err != nil {
		a.report(cmd, "preparing mirror", err)
		return false
	}
	a.bucketReady = true

	return true
}
