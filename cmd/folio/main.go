// Command folio builds developer portfolios from GitHub profiles.
//
// Usage:
//
//	folio portfolio octocat          # requires GITHUB_TOKEN
//	folio profile octocat
//	folio projects octocat
//	folio links README.md            # no token needed
//	folio serve --http-address :8080
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codeGROOVE-dev/folio/pkg/cache"
	"github.com/codeGROOVE-dev/folio/pkg/config"
	"github.com/codeGROOVE-dev/folio/pkg/github"
	"github.com/codeGROOVE-dev/folio/pkg/portfolio"
	"github.com/codeGROOVE-dev/folio/pkg/readme"
	"github.com/codeGROOVE-dev/folio/pkg/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(config.NewViper(), os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// app holds state shared by subcommands.
type app struct {
	v       *viper.Viper
	cfgFile string
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

func newRootCmd(v *viper.Viper, stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: v, stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "folio",
		Short:         "Build developer portfolios from GitHub profiles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.readConfig()
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "path to configuration file")
	flags.String("github-token", "", "GitHub token (default $GITHUB_TOKEN)")
	flags.String("log-level", v.GetString("log.level"), "log level (debug, info, warn, error)")
	flags.Duration("cache-ttl", v.GetDuration("cache.ttl"), "portfolio cache time-to-live")
	flags.String("cache-dir", "", "cache directory (default: user cache dir)")
	flags.Bool("no-cache", false, "disable the portfolio cache")
	a.bindFlag(root, "github.token", "github-token")
	a.bindFlag(root, "log.level", "log-level")
	a.bindFlag(root, "cache.ttl", "cache-ttl")
	a.bindFlag(root, "cache.dir", "cache-dir")
	a.bindFlag(root, "cache.disabled", "no-cache")

	root.AddCommand(
		a.fetchCmd("profile", "Print a user's normalized profile", func(ctx context.Context, b *portfolio.Builder, u string) (any, error) {
			return b.Profile(ctx, u)
		}),
		a.fetchCmd("projects", "Print a user's featured projects and totals", func(ctx context.Context, b *portfolio.Builder, u string) (any, error) {
			return b.Projects(ctx, u)
		}),
		a.fetchCmd("portfolio", "Print a user's complete portfolio", func(ctx context.Context, b *portfolio.Builder, u string) (any, error) {
			return b.Build(ctx, u)
		}),
		a.linksCmd(),
		a.serveCmd(),
	)
	return root
}

func (a *app) bindFlag(cmd *cobra.Command, key, flag string) {
	if err := a.v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func (a *app) readConfig() error {
	if a.cfgFile == "" {
		return nil
	}
	a.v.SetConfigFile(a.cfgFile)
	if err := a.v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", a.cfgFile, err)
	}
	return nil
}

// builder wires a portfolio builder from configuration. The returned func releases the cache.
func (a *app) builder(ctx context.Context) (*portfolio.Builder, config.Config, func(), error) {
	cfg, err := config.Load(a.v)
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	logger := cfg.Logger(a.stderr)

	gh, err := github.New(ctx, cfg.GitHubOptions(logger)...)
	if err != nil {
		return nil, config.Config{}, nil, err
	}

	opts := []portfolio.Option{portfolio.WithLogger(logger)}
	closer := func() {}
	if c := openCache(ctx, cfg, logger); c != nil {
		opts = append(opts, portfolio.WithCache(c))
		closer = func() { closeCache(ctx, c, logger) }
	}

	return portfolio.New(gh, opts...), cfg, closer, nil
}

// openCache returns the configured cache, falling back to memory when the disk
// cache cannot be opened. It returns nil when caching is disabled.
func openCache(ctx context.Context, cfg config.Config, logger *slog.Logger) *cache.Cache {
	c, err := cfg.Cache()
	switch {
	case errors.Is(err, config.ErrCacheDisabled):
		logger.DebugContext(ctx, "cache disabled")
		return nil
	case err != nil:
		logger.WarnContext(ctx, "failed to open disk cache, using memory cache", "error", err)
		c, err = cache.NewNull(cfg.CacheTTL)
		if err != nil {
			logger.WarnContext(ctx, "failed to initialize cache, continuing without cache", "error", err)
			return nil
		}
	}
	logger.DebugContext(ctx, "cache initialized", "ttl", cfg.CacheTTL.String())
	return c
}

func closeCache(ctx context.Context, c *cache.Cache, logger *slog.Logger) {
	s := c.Stats()
	logger.DebugContext(ctx, "cache stats", "hits", s.Hits, "misses", s.Misses, "hit_rate", s.HitRate())
	if err := c.Close(); err != nil {
		logger.WarnContext(ctx, "failed to close cache", "error", err)
	}
}

type fetchFunc func(ctx context.Context, b *portfolio.Builder, username string) (any, error)

func (a *app) fetchCmd(name, short string, fetch fetchFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <username>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, _, closer, err := a.builder(ctx)
			if err != nil {
				return err
			}
			defer closer()

			v, err := fetch(ctx, b, args[0])
			if err != nil {
				return err
			}
			return outputJSON(a.stdout, v)
		},
	}
}

func (a *app) linksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "links [file|-]",
		Short: "Extract LinkedIn and Twitter/X links from README text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var r io.Reader = a.stdin
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close() //nolint:errcheck // read-only
				r = f
			}
			text, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("reading README: %w", err)
			}
			return outputJSON(a.stdout, readme.SocialLinks(string(text)))
		},
	}
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the portfolio JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			b, cfg, closer, err := a.builder(ctx)
			if err != nil {
				return err
			}
			defer closer()

			return server.New(b, cfg.Logger(a.stderr)).ListenAndServe(ctx, cfg.HTTPAddress)
		},
	}
	cmd.Flags().String("http-address", a.v.GetString("http.address"), "HTTP listen address")
	if err := a.v.BindPFlag("http.address", cmd.Flags().Lookup("http-address")); err != nil {
		panic(err)
	}
	return cmd
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
