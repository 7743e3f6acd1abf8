// Package github fetches GitHub profile data over the GraphQL API.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/codeGROOVE-dev/folio/pkg/profile"
	"github.com/codeGROOVE-dev/folio/pkg/readme"
)

const (
	// DefaultAPIURL is the GitHub GraphQL endpoint.
	DefaultAPIURL = "https://api.github.com/graphql"
	// DefaultRawURL serves raw repository files.
	DefaultRawURL = "https://raw.githubusercontent.com"

	defaultTimeout = 15 * time.Second
	userAgent      = "folio/1.0"
)

// Client handles GitHub requests.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Client struct {
	apiClient *http.Client // bearer-authenticated, GraphQL only
	rawClient *http.Client // unauthenticated, raw file fallback
	logger    *slog.Logger
	now       func() time.Time
	token     string
	apiURL    string
	rawURL    string
	attempts  uint
}

// Option configures a Client.
type Option func(*config)

type config struct {
	httpClient *http.Client
	logger     *slog.Logger
	token      string
	apiURL     string
	rawURL     string
	timeout    time.Duration
	attempts   uint
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithToken sets the GitHub API token.
func WithToken(token string) Option {
	return func(c *config) { c.token = token }
}

// WithHTTPClient sets the HTTP client whose transport is used for all requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithAPIURL overrides the GraphQL endpoint.
func WithAPIURL(u string) Option {
	return func(c *config) { c.apiURL = strings.TrimRight(u, "/") }
}

// WithRawURL overrides the raw content host used for README fallbacks.
func WithRawURL(u string) Option {
	return func(c *config) { c.rawURL = strings.TrimRight(u, "/") }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithAttempts sets how many times a transient failure is attempted. The default is 1.
func WithAttempts(n uint) Option {
	return func(c *config) { c.attempts = n }
}

// New creates a GitHub client. It fails with profile.ErrConfig when no token is set.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &config{
		logger:   slog.Default(),
		apiURL:   DefaultAPIURL,
		rawURL:   DefaultRawURL,
		timeout:  defaultTimeout,
		attempts: 1,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	token := strings.TrimSpace(cfg.token)
	if token == "" {
		return nil, fmt.Errorf("%w: GitHub token is required", profile.ErrConfig)
	}
	if cfg.attempts == 0 {
		cfg.attempts = 1
	}

	base := http.DefaultTransport
	if cfg.httpClient != nil && cfg.httpClient.Transport != nil {
		base = cfg.httpClient.Transport
	}

	logger.DebugContext(ctx, "GitHub client configured", "api_url", cfg.apiURL, "timeout", cfg.timeout, "attempts", cfg.attempts)

	return &Client{
		apiClient: &http.Client{
			Timeout: cfg.timeout,
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
				Base:   base,
			},
		},
		rawClient: &http.Client{Timeout: cfg.timeout, Transport: base},
		logger:    logger,
		now:       time.Now,
		token:     token,
		apiURL:    cfg.apiURL,
		rawURL:    cfg.rawURL,
		attempts:  cfg.attempts,
	}, nil
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9]+(?:-[a-zA-Z0-9]+)*$`)

// ValidUsername reports whether s is a syntactically valid GitHub login.
func ValidUsername(s string) bool {
	return len(s) <= 39 && usernamePattern.MatchString(s)
}

func notFound(username string) error {
	return &APIError{Message: fmt.Sprintf("invalid GitHub login %q", username), kind: profile.ErrProfileNotFound}
}

// FetchProfile retrieves a user's profile, enriched with social links from their profile README.
func (c *Client) FetchProfile(ctx context.Context, username string) (*profile.Profile, error) {
	if !ValidUsername(username) {
		return nil, notFound(username)
	}
	c.logger.InfoContext(ctx, "fetching GitHub profile", "username", username)

	var user userNode
	if err := c.query(ctx, userQuery, username, &user); err != nil {
		return nil, err
	}

	var links readme.Links
	if text, ok := c.FetchREADME(ctx, username); ok {
		links = c.socialLinks(ctx, text)
	}

	twitter := user.TwitterUsername
	if twitter == "" {
		twitter = readme.Handle(links.TwitterURL())
	}

	login := user.Login
	if login == "" {
		login = username
	}

	created := user.CreatedAt
	if created.IsZero() {
		created = c.now()
	}

	return &profile.Profile{
		Username:        login,
		Name:            user.Name,
		Bio:             user.Bio,
		AvatarURL:       user.AvatarURL,
		Location:        user.Location,
		Email:           user.Email,
		Website:         profile.NormalizeWebsite(user.WebsiteURL),
		Company:         user.Company,
		TwitterUsername: twitter,
		LinkedInURL:     links.LinkedIn,
		Followers:       user.Followers.TotalCount,
		Following:       user.Following.TotalCount,
		PublicRepos:     user.Repositories.TotalCount,
		CreatedAt:       created,
	}, nil
}

// FetchRepositories returns up to 100 public repositories, most recently updated first.
// Forks and private repositories are included; filtering is the caller's job.
func (c *Client) FetchRepositories(ctx context.Context, username string) ([]profile.Repository, error) {
	if !ValidUsername(username) {
		return nil, notFound(username)
	}
	var user userNode
	if err := c.query(ctx, userQuery, username, &user); err != nil {
		return nil, err
	}
	repos := make([]profile.Repository, 0, len(user.Repositories.Nodes))
	for i := range user.Repositories.Nodes {
		repos = append(repos, user.Repositories.Nodes[i].repository())
	}
	c.logger.DebugContext(ctx, "fetched repositories", "username", username, "count", len(repos))
	return repos, nil
}

// FetchPinned returns the user's pinned repositories (at most 6), in pinned order.
func (c *Client) FetchPinned(ctx context.Context, username string) ([]profile.Repository, error) {
	if !ValidUsername(username) {
		return nil, notFound(username)
	}
	var user struct {
		PinnedItems struct {
			Nodes []repositoryNode `json:"nodes"`
		} `json:"pinnedItems"`
	}
	if err := c.query(ctx, pinnedQuery, username, &user); err != nil {
		return nil, err
	}
	return pinnedRepositories(user.PinnedItems.Nodes), nil
}

// FetchMetrics returns pull request, issue and contribution counters for a user.
func (c *Client) FetchMetrics(ctx context.Context, username string) (*profile.Metrics, error) {
	if !ValidUsername(username) {
		return nil, notFound(username)
	}
	var user struct {
		Merged                  totalCount `json:"merged"`
		Open                    totalCount `json:"open"`
		Issues                  totalCount `json:"issues"`
		ContributionsCollection struct {
			ContributionCalendar struct {
				TotalContributions int `json:"totalContributions"`
			} `json:"contributionCalendar"`
		} `json:"contributionsCollection"`
	}
	if err := c.query(ctx, metricsQuery, username, &user); err != nil {
		return nil, err
	}
	return &profile.Metrics{
		PRsMerged:          user.Merged.TotalCount,
		PRsOpen:            user.Open.TotalCount,
		IssuesOpened:       user.Issues.TotalCount,
		TotalContributions: user.ContributionsCollection.ContributionCalendar.TotalContributions,
	}, nil
}
