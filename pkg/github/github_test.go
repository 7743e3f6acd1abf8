package github

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/folio/pkg/profile"
)

// fakeGitHub serves GraphQL on /graphql and raw files on every other path.
//
//nolint:govet // fieldalignment: intentional layout for readability
type fakeGitHub struct {
	user    func() (int, string) // response for the profile/repositories query
	pinned  func() (int, string)
	readme  func() (int, string)
	metrics func() (int, string)
	raw     map[string]string // path -> body; missing paths 404

	mu            sync.Mutex
	authorization []string
	graphQLCalls  atomic.Int32
	rawCalls      atomic.Int32
}

// respond answers a GraphQL query with a 200 and the given data object.
func respond(data string) func() (int, string) {
	return func() (int, string) { return http.StatusOK, `{"data":` + data + `}` }
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/graphql" {
		f.rawCalls.Add(1)
		if r.Header.Get("Authorization") != "" {
			http.Error(w, "raw requests must not carry credentials", http.StatusBadRequest)
			return
		}
		body, found := f.raw[r.URL.Path]
		if !found {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body)) //nolint:errcheck // test
		return
	}

	f.graphQLCalls.Add(1)
	f.mu.Lock()
	f.authorization = append(f.authorization, r.Header.Get("Authorization"))
	f.mu.Unlock()

	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var handler func() (int, string)
	switch {
	case strings.Contains(req.Query, "HEAD:README.md"):
		handler = f.readme
	case strings.Contains(req.Query, "contributionsCollection"):
		handler = f.metrics
	case strings.Contains(req.Query, "followers"):
		handler = f.user
	default:
		handler = f.pinned
	}
	if handler == nil {
		handler = respond(`{"user":{}}`)
	}
	status, body := handler()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body)) //nolint:errcheck // test
}

func newTestClient(t *testing.T, f *fakeGitHub, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)

	opts = append([]Option{
		WithToken("test-token"),
		WithAPIURL(server.URL + "/graphql"),
		WithRawURL(server.URL),
		WithHTTPClient(server.Client()),
	}, opts...)
	c, err := New(context.Background(), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type countingTransport struct {
	calls atomic.Int32
}

func (ct *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	ct.calls.Add(1)
	return nil, errors.New("unexpected network call")
}

func TestNew_MissingToken(t *testing.T) {
	for _, token := range []string{"", "   "} {
		ct := &countingTransport{}
		c, err := New(context.Background(), WithToken(token), WithHTTPClient(&http.Client{Transport: ct}))
		if !errors.Is(err, profile.ErrConfig) {
			t.Errorf("New(token=%q) error = %v, want ErrConfig", token, err)
		}
		if c != nil {
			t.Errorf("New(token=%q) returned a client", token)
		}
		if n := ct.calls.Load(); n != 0 {
			t.Errorf("New(token=%q) made %d network calls, want 0", token, n)
		}
	}
}

func TestQuery_ZeroTokenClient(t *testing.T) {
	ct := &countingTransport{}
	c := &Client{apiClient: &http.Client{Transport: ct}, rawClient: &http.Client{Transport: ct}, logger: discardLogger(), attempts: 1}
	if _, err := c.FetchRepositories(context.Background(), "octocat"); !errors.Is(err, profile.ErrConfig) {
		t.Errorf("FetchRepositories() error = %v, want ErrConfig", err)
	}
	if n := ct.calls.Load(); n != 0 {
		t.Errorf("made %d network calls, want 0", n)
	}
}

const octocatUser = `{"user":{
	"login":"octocat",
	"name":"The Octocat",
	"bio":"GitHub mascot",
	"avatarUrl":"https://avatars.githubusercontent.com/u/583231",
	"location":"San Francisco",
	"email":null,
	"websiteUrl":"octocat.dev",
	"company":"@github",
	"twitterUsername":null,
	"createdAt":"2011-01-25T18:44:36Z",
	"followers":{"totalCount":5000},
	"following":{"totalCount":9},
	"repositories":{"totalCount":8,"nodes":[]},
	"pinnedItems":{"nodes":[]}
}}`

func TestFetchProfile(t *testing.T) {
	f := &fakeGitHub{
		user:   respond(octocatUser),
		readme: respond(`{"user":{"repository":{"object":{"text":"Hi! linkedin.com/in/octo and twitter.com/octo_tw"}}}}`),
	}
	c := newTestClient(t, f)

	got, err := c.FetchProfile(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("FetchProfile() error = %v", err)
	}

	want := &profile.Profile{
		Username:        "octocat",
		Name:            "The Octocat",
		Bio:             "GitHub mascot",
		AvatarURL:       "https://avatars.githubusercontent.com/u/583231",
		Location:        "San Francisco",
		Website:         "https://octocat.dev",
		Company:         "@github",
		TwitterUsername: "octo_tw",
		LinkedInURL:     "https://www.linkedin.com/in/octo",
		Followers:       5000,
		Following:       9,
		PublicRepos:     8,
		CreatedAt:       time.Date(2011, 1, 25, 18, 44, 36, 0, time.UTC),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FetchProfile() mismatch (-want +got):\n%s", diff)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.authorization {
		if h != "Bearer test-token" {
			t.Errorf("Authorization = %q, want %q", h, "Bearer test-token")
		}
	}
	if n := f.rawCalls.Load(); n != 0 {
		t.Errorf("raw fallback called %d times, want 0", n)
	}
}

func TestFetchProfile_ProviderTwitterWins(t *testing.T) {
	user := strings.Replace(octocatUser, `"twitterUsername":null`, `"twitterUsername":"github"`, 1)
	f := &fakeGitHub{
		user:   respond(user),
		readme: respond(`{"user":{"repository":{"object":{"text":"x.com/someoneelse"}}}}`),
	}
	c := newTestClient(t, f)

	got, err := c.FetchProfile(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("FetchProfile() error = %v", err)
	}
	if got.TwitterUsername != "github" {
		t.Errorf("TwitterUsername = %q, want %q", got.TwitterUsername, "github")
	}
}

func TestFetchProfile_NoREADME(t *testing.T) {
	f := &fakeGitHub{
		user:   respond(octocatUser),
		readme: respond(`{"user":{"repository":null}}`),
	}
	c := newTestClient(t, f)

	got, err := c.FetchProfile(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("FetchProfile() error = %v", err)
	}
	if got.TwitterUsername != "" || got.LinkedInURL != "" {
		t.Errorf("social fields = (%q, %q), want empty", got.TwitterUsername, got.LinkedInURL)
	}
	if n := f.rawCalls.Load(); n != 2 {
		t.Errorf("raw fallback called %d times, want 2", n)
	}
}

func TestFetchProfile_MissingCreatedAt(t *testing.T) {
	user := strings.Replace(octocatUser, `"createdAt":"2011-01-25T18:44:36Z",`, ``, 1)
	f := &fakeGitHub{user: respond(user)}
	c := newTestClient(t, f)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	got, err := c.FetchProfile(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("FetchProfile() error = %v", err)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, now)
	}
	if got.Cached {
		t.Error("Cached = true for a live fetch")
	}
}

func TestFetchProfile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		response func() (int, string)
		want     error
	}{
		{
			name: "typed not found",
			response: func() (int, string) {
				return http.StatusOK, `{"data":{"user":null},"errors":[{"type":"NOT_FOUND","message":"Could not resolve to a User with the login of 'ghost'."}]}`
			},
			want: profile.ErrProfileNotFound,
		},
		{
			name: "untyped not found message",
			response: func() (int, string) {
				return http.StatusOK, `{"data":{"user":null},"errors":[{"message":"Could not resolve to a User with the login of 'ghost'."}]}`
			},
			want: profile.ErrProfileNotFound,
		},
		{
			name:     "null user without errors",
			response: respond(`{"user":null}`),
			want:     profile.ErrProfileNotFound,
		},
		{
			name: "bad credentials",
			response: func() (int, string) {
				return http.StatusUnauthorized, `{"message":"Bad credentials","documentation_url":"https://docs.github.com/graphql"}`
			},
			want: profile.ErrUnauthorized,
		},
		{
			name: "forbidden",
			response: func() (int, string) {
				return http.StatusForbidden, `{"message":"API rate limit exceeded"}`
			},
			want: profile.ErrRateLimited,
		},
		{
			name: "too many requests",
			response: func() (int, string) {
				return http.StatusTooManyRequests, `{"message":"secondary rate limit"}`
			},
			want: profile.ErrRateLimited,
		},
		{
			name: "typed rate limit",
			response: func() (int, string) {
				return http.StatusOK, `{"errors":[{"type":"RATE_LIMITED","message":"API rate limit exceeded for user ID 1."}]}`
			},
			want: profile.ErrRateLimited,
		},
		{
			name: "server error",
			response: func() (int, string) {
				return http.StatusInternalServerError, `oops`
			},
			want: profile.ErrUpstream,
		},
		{
			name: "unknown graphql error",
			response: func() (int, string) {
				return http.StatusOK, `{"errors":[{"message":"Something went wrong while executing your query."}]}`
			},
			want: profile.ErrUpstream,
		},
		{
			name: "malformed json",
			response: func() (int, string) {
				return http.StatusOK, `{"data":`
			},
			want: profile.ErrUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeGitHub{user: tt.response}
			c := newTestClient(t, f)

			p, err := c.FetchProfile(context.Background(), "ghost")
			if !errors.Is(err, tt.want) {
				t.Fatalf("FetchProfile() error = %v, want %v", err, tt.want)
			}
			if p != nil {
				t.Errorf("FetchProfile() returned a profile with error %v", err)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Errorf("error %T is not an *APIError", err)
			}
		})
	}
}

func TestFetchProfile_InvalidUsername(t *testing.T) {
	f := &fakeGitHub{}
	c := newTestClient(t, f)

	for _, name := range []string{"", "-leading", "trailing-", "double--hyphen", "has space", "../etc"} {
		if _, err := c.FetchProfile(context.Background(), name); !errors.Is(err, profile.ErrProfileNotFound) {
			t.Errorf("FetchProfile(%q) error = %v, want ErrProfileNotFound", name, err)
		}
	}
	if n := f.graphQLCalls.Load(); n != 0 {
		t.Errorf("made %d GraphQL calls for invalid usernames, want 0", n)
	}
}

func TestFetchREADME(t *testing.T) {
	tests := []struct {
		name     string
		readme   func() (int, string)
		raw      map[string]string
		wantText string
		wantOK   bool
	}{
		{
			name:     "graphql blob",
			readme:   respond(`{"user":{"repository":{"object":{"text":"from graphql"}}}}`),
			raw:      map[string]string{"/octocat/octocat/main/README.md": "from main"},
			wantText: "from graphql",
			wantOK:   true,
		},
		{
			name:     "missing file falls through to main",
			readme:   respond(`{"user":{"repository":{"object":null}}}`),
			raw:      map[string]string{"/octocat/octocat/main/README.md": "from main", "/octocat/octocat/master/README.md": "from master"},
			wantText: "from main",
			wantOK:   true,
		},
		{
			name: "graphql error falls through to master",
			readme: func() (int, string) {
				return http.StatusBadGateway, "bad gateway"
			},
			raw:      map[string]string{"/octocat/octocat/master/README.md": "from master"},
			wantText: "from master",
			wantOK:   true,
		},
		{
			name:   "all sources fail",
			readme: respond(`{"user":{"repository":null}}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &fakeGitHub{readme: tt.readme, raw: tt.raw})

			text, found := c.FetchREADME(context.Background(), "octocat")
			if text != tt.wantText || found != tt.wantOK {
				t.Errorf("FetchREADME() = (%q, %v), want (%q, %v)", text, found, tt.wantText, tt.wantOK)
			}
		})
	}
}

const repoNode = `{
	"name":"hello-world",
	"description":"My first repo",
	"url":"https://github.com/octocat/hello-world",
	"homepageUrl":null,
	"stargazerCount":42,
	"forkCount":7,
	"isPinned":false,
	"isPrivate":false,
	"isFork":false,
	"primaryLanguage":{"name":"Go","color":"#00ADD8"},
	"languages":{"edges":[{"size":1200,"node":{"name":"Go","color":"#00ADD8"}},{"size":40,"node":{"name":"Shell","color":null}}]},
	"repositoryTopics":{"nodes":[{"topic":{"name":"cli"}},{"topic":{"name":"golang"}}]},
	"createdAt":"2020-01-02T03:04:05Z",
	"updatedAt":"2025-06-07T08:09:10Z"
}`

var helloWorld = profile.Repository{
	Name:            "hello-world",
	Description:     "My first repo",
	URL:             "https://github.com/octocat/hello-world",
	Stars:           42,
	Forks:           7,
	PrimaryLanguage: &profile.Language{Name: "Go", Color: "#00ADD8"},
	Languages: []profile.LanguageSize{
		{Name: "Go", Color: "#00ADD8", Size: 1200},
		{Name: "Shell", Size: 40},
	},
	Topics:    []string{"cli", "golang"},
	CreatedAt: time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
	UpdatedAt: time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC),
}

func TestFetchRepositories(t *testing.T) {
	fork := strings.Replace(strings.Replace(repoNode, `"isFork":false`, `"isFork":true`, 1), "hello-world", "fork", 3)
	f := &fakeGitHub{user: respond(`{"user":{"login":"octocat","repositories":{"totalCount":2,"nodes":[` + repoNode + `,` + fork + `]}}}`)}
	c := newTestClient(t, f)

	got, err := c.FetchRepositories(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("FetchRepositories() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(FetchRepositories()) = %d, want 2 (forks are not filtered)", len(got))
	}
	if diff := cmp.Diff(helloWorld, got[0]); diff != "" {
		t.Errorf("FetchRepositories()[0] mismatch (-want +got):\n%s", diff)
	}
	if !got[1].IsFork {
		t.Error("FetchRepositories()[1].IsFork = false, want true")
	}
}

func TestFetchPinned(t *testing.T) {
	f := &fakeGitHub{pinned: respond(`{"user":{"pinnedItems":{"nodes":[` + repoNode + `,{}]}}}`)}
	c := newTestClient(t, f)

	got, err := c.FetchPinned(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("FetchPinned() error = %v", err)
	}
	want := helloWorld
	want.IsPinned = true
	if diff := cmp.Diff([]profile.Repository{want}, got); diff != "" {
		t.Errorf("FetchPinned() mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchMetrics(t *testing.T) {
	f := &fakeGitHub{metrics: respond(`{"user":{
		"merged":{"totalCount":120},
		"open":{"totalCount":3},
		"issues":{"totalCount":45},
		"contributionsCollection":{"contributionCalendar":{"totalContributions":987}}
	}}`)}
	c := newTestClient(t, f)

	got, err := c.FetchMetrics(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("FetchMetrics() error = %v", err)
	}
	want := &profile.Metrics{PRsMerged: 120, PRsOpen: 3, IssuesOpened: 45, TotalContributions: 987}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FetchMetrics() mismatch (-want +got):\n%s", diff)
	}
}

func TestRetry(t *testing.T) {
	tests := []struct {
		name      string
		attempts  uint
		failures  int32
		status    int
		wantCalls int32
		wantErr   bool
	}{
		{"default attempts never retry", 0, 1, http.StatusBadGateway, 1, true},
		{"transient failure retried", 3, 2, http.StatusServiceUnavailable, 3, false},
		{"classified failure not retried", 3, 1, http.StatusUnauthorized, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			f := &fakeGitHub{pinned: func() (int, string) {
				if calls.Add(1) <= tt.failures {
					return tt.status, `{"message":"failure"}`
				}
				return http.StatusOK, `{"data":{"user":{"pinnedItems":{"nodes":[]}}}}`
			}}
			var opts []Option
			if tt.attempts > 0 {
				opts = append(opts, WithAttempts(tt.attempts))
			}
			c := newTestClient(t, f, opts...)

			_, err := c.FetchPinned(context.Background(), "octocat")
			if (err != nil) != tt.wantErr {
				t.Errorf("FetchPinned() error = %v, wantErr %v", err, tt.wantErr)
			}
			if n := calls.Load(); n != tt.wantCalls {
				t.Errorf("server saw %d calls, want %d", n, tt.wantCalls)
			}
		})
	}
}

func TestAPIError(t *testing.T) {
	reset := time.Unix(1700000000, 0)
	tests := []struct {
		name     string
		err      *APIError
		wantKind error
		contains string
	}{
		{"status", &APIError{StatusCode: 500, Message: "boom", kind: profile.ErrUpstream}, profile.ErrUpstream, "GitHub API error 500"},
		{"graphql", &APIError{Type: "NOT_FOUND", Message: "gone", kind: profile.ErrProfileNotFound}, profile.ErrProfileNotFound, "NOT_FOUND"},
		{"rate limit", &APIError{StatusCode: 403, RateLimitReset: reset, kind: profile.ErrRateLimited}, profile.ErrRateLimited, "resets at"},
		{"network", upstreamError("dial tcp: refused", context.DeadlineExceeded), context.DeadlineExceeded, "request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.wantKind) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.wantKind)
			}
			if !strings.Contains(tt.err.Error(), tt.contains) {
				t.Errorf("Error() = %q, want substring %q", tt.err.Error(), tt.contains)
			}
		})
	}
}

func TestValidUsername(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"octocat", true},
		{"a", true},
		{"user-name-2", true},
		{strings.Repeat("a", 39), true},
		{strings.Repeat("a", 40), false},
		{"", false},
		{"-a", false},
		{"a-", false},
		{"a--b", false},
		{"a_b", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ValidUsername(tt.in); got != tt.want {
				t.Errorf("ValidUsername(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
