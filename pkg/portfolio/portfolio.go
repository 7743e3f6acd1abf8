// Package portfolio assembles a complete developer portfolio from GitHub data.
package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/folio/pkg/cache"
	"github.com/codeGROOVE-dev/folio/pkg/github"
	"github.com/codeGROOVE-dev/folio/pkg/profile"
	"github.com/codeGROOVE-dev/folio/pkg/projects"
)

const (
	cacheKeyPrefix = "portfolio:v1:"
	keywordCount   = 10
)

// Fetcher is the subset of *github.Client the assembler needs.
type Fetcher interface {
	projects.Source
	FetchProfile(ctx context.Context, username string) (*profile.Profile, error)
	FetchMetrics(ctx context.Context, username string) (*profile.Metrics, error)
}

// SEO holds page metadata derived from the profile.
type SEO struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Image       string   `json:"image,omitempty"`
}

// Portfolio is everything needed to render a portfolio page.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Portfolio struct {
	Profile     *profile.Profile      `json:"profile"`
	Projects    *profile.ProjectsData `json:"projects"`
	Metrics     *profile.Metrics      `json:"metrics,omitempty"` // nil when the metrics query failed
	SEO         SEO                   `json:"seo"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// Builder assembles portfolios.
type Builder struct {
	gh     Fetcher
	ranker *projects.Ranker
	cache  cache.Cacher
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithCache enables result caching.
func WithCache(c cache.Cacher) Option {
	return func(b *Builder) { b.cache = c }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

// WithRanker overrides the project ranker.
func WithRanker(r *projects.Ranker) Option {
	return func(b *Builder) { b.ranker = r }
}

// New creates a Builder. gh is usually a *github.Client.
func New(gh Fetcher, opts ...Option) *Builder {
	b := &Builder{gh: gh, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.ranker == nil {
		b.ranker = projects.New(gh, projects.WithLogger(b.logger))
	}
	return b
}

func checkUsername(username string) error {
	if !github.ValidUsername(username) {
		return fmt.Errorf("%w: invalid GitHub login %q", profile.ErrProfileNotFound, username)
	}
	return nil
}

// Profile returns a user's profile.
func (b *Builder) Profile(ctx context.Context, username string) (*profile.Profile, error) {
	if err := checkUsername(username); err != nil {
		return nil, err
	}
	return b.gh.FetchProfile(ctx, username)
}

// Projects returns a user's featured projects and repository totals.
func (b *Builder) Projects(ctx context.Context, username string) (*profile.ProjectsData, error) {
	if err := checkUsername(username); err != nil {
		return nil, err
	}
	return b.ranker.Featured(ctx, username)
}

// Build returns the portfolio for username, from cache when one is configured.
func (b *Builder) Build(ctx context.Context, username string) (*Portfolio, error) {
	if err := checkUsername(username); err != nil {
		return nil, err
	}
	if b.cache == nil {
		return b.assemble(ctx, username)
	}

	key := cacheKeyPrefix + strings.ToLower(username)
	data, hit, err := cache.Lookup(ctx, b.cache, key, func(ctx context.Context) ([]byte, error) {
		p, err := b.assemble(ctx, username)
		if err != nil {
			return nil, err
		}
		return json.Marshal(p)
	})
	if err != nil {
		return nil, err
	}

	var p Portfolio
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding cached portfolio: %w", err)
	}
	if p.Profile == nil || p.Projects == nil {
		return nil, fmt.Errorf("%w: incomplete cached portfolio for %q", profile.ErrUpstream, username)
	}
	if hit {
		b.logger.DebugContext(ctx, "portfolio cache hit", "username", username)
		p.Profile.Cached = true
	}
	return &p, nil
}

// assemble fetches profile, projects and metrics concurrently.
// Metrics are optional; the other two fail the build.
func (b *Builder) assemble(ctx context.Context, username string) (*Portfolio, error) {
	start := b.now()
	var (
		prof    *profile.Profile
		data    *profile.ProjectsData
		metrics *profile.Metrics
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		prof, err = b.gh.FetchProfile(gctx, username)
		return err
	})
	g.Go(func() error {
		var err error
		data, err = b.ranker.Featured(gctx, username)
		return err
	})
	g.Go(func() error {
		m, err := b.gh.FetchMetrics(gctx, username)
		if err != nil {
			b.logger.WarnContext(ctx, "metrics unavailable", "username", username, "error", err)
			return nil
		}
		metrics = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	b.logger.InfoContext(ctx, "portfolio assembled",
		"username", username,
		"featured", len(data.Featured),
		"total_repos", data.TotalRepos,
		"duration_ms", b.now().Sub(start).Milliseconds(),
	)

	return &Portfolio{
		Profile:     prof,
		Projects:    data,
		Metrics:     metrics,
		SEO:         NewSEO(prof, data),
		GeneratedAt: b.now().UTC(),
	}, nil
}

// NewSEO derives page metadata. Keywords are the user's top languages by size.
func NewSEO(p *profile.Profile, data *profile.ProjectsData) SEO {
	seo := SEO{
		Title:       p.DisplayName() + " - Developer Portfolio",
		Description: p.Bio,
		Keywords:    []string{},
		Image:       p.AvatarURL,
	}
	if seo.Description == "" {
		seo.Description = "Check out " + p.Username + "'s developer portfolio"
	}
	if data != nil {
		for _, l := range data.TopLanguages(keywordCount) {
			seo.Keywords = append(seo.Keywords, l.Name)
		}
	}
	return seo
}
