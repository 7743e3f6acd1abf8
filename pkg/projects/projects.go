// Package projects selects and ranks the repositories featured on a portfolio.
package projects

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/codeGROOVE-dev/folio/pkg/profile"
)

// DefaultLimit is the number of ranked repositories featured when nothing is pinned.
const DefaultLimit = 5

// Score weights.
const (
	starWeight    = 10
	forkWeight    = 5
	recencyWeight = 2
	recencyScale  = 100
	recencyWindow = 365 // days
)

// Source provides repository data. *github.Client satisfies it.
type Source interface {
	FetchRepositories(ctx context.Context, username string) ([]profile.Repository, error)
	FetchPinned(ctx context.Context, username string) ([]profile.Repository, error)
}

// Ranker picks featured projects for a user.
type Ranker struct {
	src    Source
	logger *slog.Logger
	now    func() time.Time
	limit  int
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Ranker) { r.logger = logger }
}

// WithClock sets the time source used for recency scoring.
func WithClock(now func() time.Time) Option {
	return func(r *Ranker) { r.now = now }
}

// WithLimit sets how many ranked repositories are featured.
func WithLimit(n int) Option {
	return func(r *Ranker) { r.limit = n }
}

// New creates a Ranker backed by src.
func New(src Source, opts ...Option) *Ranker {
	r := &Ranker{src: src, logger: slog.Default(), now: time.Now, limit: DefaultLimit}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.limit <= 0 {
		r.limit = DefaultLimit
	}
	return r
}

// strategy produces a featured list, or ok=false to defer to the next strategy.
type strategy struct {
	name   string
	choose func(ctx context.Context, username string, eligible []profile.Repository) (featured []profile.Repository, ok bool)
}

func (r *Ranker) strategies() []strategy {
	return []strategy{
		{name: "pinned", choose: r.pinned},
		{name: "ranked", choose: r.ranked},
	}
}

// Featured returns the user's featured projects plus totals over every non-fork public repository.
// Pinned repositories are used as-is when present; otherwise repositories are ranked by Score.
func (r *Ranker) Featured(ctx context.Context, username string) (*profile.ProjectsData, error) {
	repos, err := r.src.FetchRepositories(ctx, username)
	if err != nil {
		if profile.Classified(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: fetching repositories: %w", profile.ErrUpstream, err)
	}

	eligible := make([]profile.Repository, 0, len(repos))
	for i := range repos {
		if repos[i].Eligible() {
			eligible = append(eligible, repos[i])
		}
	}

	var featured []profile.Repository
	for _, s := range r.strategies() {
		if picked, ok := s.choose(ctx, username, eligible); ok {
			r.logger.DebugContext(ctx, "selected featured projects", "username", username, "strategy", s.name, "count", len(picked))
			featured = picked
			break
		}
	}

	data := Aggregate(eligible)
	data.Featured = make([]profile.Project, 0, len(featured))
	for i := range featured {
		data.Featured = append(data.Featured, ToProject(&featured[i]))
	}
	return data, nil
}

func (r *Ranker) pinned(ctx context.Context, username string, _ []profile.Repository) ([]profile.Repository, bool) {
	pinned, err := r.src.FetchPinned(ctx, username)
	if err != nil {
		r.logger.WarnContext(ctx, "pinned repositories unavailable, ranking instead", "username", username, "error", err)
		return nil, false
	}
	if len(pinned) == 0 {
		return nil, false
	}
	for i := range pinned {
		pinned[i].IsPinned = true
	}
	return pinned, true
}

func (r *Ranker) ranked(_ context.Context, _ string, eligible []profile.Repository) ([]profile.Repository, bool) {
	return Rank(eligible, r.now(), r.limit), true
}

// Score rates a repository by popularity and recency:
// stars*10 + forks*5 + recency*2*100, where recency falls linearly from 1 (updated today)
// to 0 (a year or more ago). Future update times count as today.
func Score(repo *profile.Repository, now time.Time) float64 {
	days := math.Floor(now.Sub(repo.UpdatedAt).Hours() / 24)
	days = max(days, 0)
	recency := max(0, recencyWindow-days) / recencyWindow
	return float64(repo.Stars*starWeight+repo.Forks*forkWeight) + recency*recencyWeight*recencyScale
}

// Rank returns up to limit repositories ordered by descending Score.
// Repositories with equal scores keep their input order. The input is not modified.
func Rank(repos []profile.Repository, now time.Time, limit int) []profile.Repository {
	type scored struct {
		repo  profile.Repository
		score float64
	}
	all := make([]scored, 0, len(repos))
	for i := range repos {
		all = append(all, scored{repo: repos[i], score: Score(&repos[i], now)})
	}
	slices.SortStableFunc(all, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	n := min(max(limit, 0), len(all))
	out := make([]profile.Repository, 0, n)
	for _, s := range all[:n] {
		out = append(out, s.repo)
	}
	return out
}

// Aggregate totals stars, repositories and language sizes across repos.
// The returned Featured slice is empty.
func Aggregate(repos []profile.Repository) *profile.ProjectsData {
	data := &profile.ProjectsData{
		Featured:   []profile.Project{},
		Languages:  map[string]int64{},
		TotalRepos: len(repos),
	}
	for i := range repos {
		data.TotalStars += repos[i].Stars
		for _, l := range repos[i].Languages {
			data.Languages[l.Name] += l.Size
		}
	}
	return data
}

// ToProject converts a repository into its featured-project form.
func ToProject(repo *profile.Repository) profile.Project {
	p := profile.Project{
		Name:        repo.Name,
		Description: repo.Description,
		URL:         repo.URL,
		Homepage:    repo.HomepageURL,
		Stars:       repo.Stars,
		Forks:       repo.Forks,
		Pinned:      repo.IsPinned,
		Topics:      slices.Clone(repo.Topics),
		Languages:   repo.LanguageSizes(),
		UpdatedAt:   repo.UpdatedAt,
		CreatedAt:   repo.CreatedAt,
	}
	if p.Topics == nil {
		p.Topics = []string{}
	}
	if repo.PrimaryLanguage != nil {
		p.Language = repo.PrimaryLanguage.Name
	}
	return p
}
