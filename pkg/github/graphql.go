package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/codeGROOVE-dev/folio/pkg/profile"
)

const maxResponseSize = 4 << 20

// repositoryFields is the per-repository selection shared by the user and pinned queries.
const repositoryFields = `
	name
	description
	url
	homepageUrl
	stargazerCount
	forkCount
	isPinned
	isPrivate
	isFork
	primaryLanguage { name color }
	languages(first: 10, orderBy: {field: SIZE, direction: DESC}) {
		edges { size node { name color } }
	}
	repositoryTopics(first: 10) { nodes { topic { name } } }
	createdAt
	updatedAt`

const userQuery = `query($login: String!) {
	user(login: $login) {
		login
		name
		bio
		avatarUrl
		location
		email
		websiteUrl
		company
		twitterUsername
		createdAt
		updatedAt
		followers { totalCount }
		following { totalCount }
		repositories(first: 100, privacy: PUBLIC, orderBy: {field: UPDATED_AT, direction: DESC}) {
			totalCount
			nodes {` + repositoryFields + `
			}
		}
		pinnedItems(first: 6, types: REPOSITORY) {
			nodes { ... on Repository {` + repositoryFields + `
			} }
		}
	}
}`

const pinnedQuery = `query($login: String!) {
	user(login: $login) {
		pinnedItems(first: 6, types: REPOSITORY) {
			nodes { ... on Repository {` + repositoryFields + `
			} }
		}
	}
}`

const readmeQuery = `query($login: String!) {
	user(login: $login) {
		repository(name: $login) {
			object(expression: "HEAD:README.md") { ... on Blob { text } }
		}
	}
}`

const metricsQuery = `query($login: String!) {
	user(login: $login) {
		merged: pullRequests(states: MERGED) { totalCount }
		open: pullRequests(states: OPEN) { totalCount }
		issues { totalCount }
		contributionsCollection { contributionCalendar { totalContributions } }
	}
}`

type totalCount struct {
	TotalCount int `json:"totalCount"`
}

// repositoryNode mirrors repositoryFields. Nullable strings decode to "".
//
//nolint:govet // fieldalignment: intentional layout for readability
type repositoryNode struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	URL            string `json:"url"`
	HomepageURL    string `json:"homepageUrl"`
	StargazerCount int    `json:"stargazerCount"`
	ForkCount      int    `json:"forkCount"`
	IsPinned       bool   `json:"isPinned"`
	IsPrivate      bool   `json:"isPrivate"`
	IsFork         bool   `json:"isFork"`

	PrimaryLanguage *struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	} `json:"primaryLanguage"`
	Languages struct {
		Edges []struct {
			Size int64 `json:"size"`
			Node struct {
				Name  string `json:"name"`
				Color string `json:"color"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"languages"`
	RepositoryTopics struct {
		Nodes []struct {
			Topic struct {
				Name string `json:"name"`
			} `json:"topic"`
		} `json:"nodes"`
	} `json:"repositoryTopics"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (n *repositoryNode) repository() profile.Repository {
	r := profile.Repository{
		Name:        n.Name,
		Description: n.Description,
		URL:         n.URL,
		HomepageURL: n.HomepageURL,
		Stars:       n.StargazerCount,
		Forks:       n.ForkCount,
		IsPinned:    n.IsPinned,
		IsPrivate:   n.IsPrivate,
		IsFork:      n.IsFork,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
	if n.PrimaryLanguage != nil && n.PrimaryLanguage.Name != "" {
		r.PrimaryLanguage = &profile.Language{Name: n.PrimaryLanguage.Name, Color: n.PrimaryLanguage.Color}
	}
	for _, e := range n.Languages.Edges {
		r.Languages = append(r.Languages, profile.LanguageSize{Name: e.Node.Name, Color: e.Node.Color, Size: e.Size})
	}
	for _, t := range n.RepositoryTopics.Nodes {
		r.Topics = append(r.Topics, t.Topic.Name)
	}
	return r
}

// pinnedRepositories converts pinned item nodes. Items that are not repositories decode empty and are skipped.
func pinnedRepositories(nodes []repositoryNode) []profile.Repository {
	out := make([]profile.Repository, 0, len(nodes))
	for i := range nodes {
		if nodes[i].Name == "" {
			continue
		}
		r := nodes[i].repository()
		r.IsPinned = true
		out = append(out, r)
	}
	return out
}

//nolint:govet // fieldalignment: intentional layout for readability
type userNode struct {
	Login           string     `json:"login"`
	Name            string     `json:"name"`
	Bio             string     `json:"bio"`
	AvatarURL       string     `json:"avatarUrl"`
	Location        string     `json:"location"`
	Email           string     `json:"email"`
	WebsiteURL      string     `json:"websiteUrl"`
	Company         string     `json:"company"`
	TwitterUsername string     `json:"twitterUsername"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	Followers       totalCount `json:"followers"`
	Following       totalCount `json:"following"`
	Repositories    struct {
		TotalCount int              `json:"totalCount"`
		Nodes      []repositoryNode `json:"nodes"`
	} `json:"repositories"`
	PinnedItems struct {
		Nodes []repositoryNode `json:"nodes"`
	} `json:"pinnedItems"`
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// query runs a GraphQL query for a login and decodes data.user into out.
// A null user without errors is reported as ErrProfileNotFound.
func (c *Client) query(ctx context.Context, q, login string, out any) error {
	if c.token == "" {
		return fmt.Errorf("%w: GitHub token is required", profile.ErrConfig)
	}

	payload, err := json.Marshal(graphQLRequest{Query: q, Variables: map[string]any{"login": login}})
	if err != nil {
		return fmt.Errorf("marshaling GraphQL request: %w", err)
	}

	start := time.Now()
	body, err := c.do(ctx, c.apiClient, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", userAgent)
		return req, nil
	})
	if err != nil {
		return err
	}
	c.logger.DebugContext(ctx, "GraphQL query completed", "username", login, "duration_ms", time.Since(start).Milliseconds())

	var resp struct {
		Errors []graphQLError `json:"errors"`
		Data   struct {
			User json.RawMessage `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return upstreamError("malformed GraphQL response", err)
	}
	if len(resp.Errors) > 0 {
		apiErr := classifyGraphQL(resp.Errors)
		c.logger.WarnContext(ctx, "GitHub GraphQL query failed", "username", login, "type", apiErr.Type, "error", apiErr.Message)
		return apiErr
	}
	if len(resp.Data.User) == 0 || string(resp.Data.User) == "null" {
		return &APIError{Message: "Could not resolve to a User with the login of '" + login + "'", kind: profile.ErrProfileNotFound}
	}
	if err := json.Unmarshal(resp.Data.User, out); err != nil {
		return upstreamError("malformed GraphQL user", err)
	}
	return nil
}

// do executes a request built by newReq, retrying transient failures up to the configured attempts.
// The request is rebuilt on each attempt so the body can be replayed.
func (c *Client) do(ctx context.Context, client *http.Client, newReq func() (*http.Request, error)) ([]byte, error) {
	var last error
	body, err := retry.DoWithData(
		func() ([]byte, error) {
			req, err := newReq()
			if err != nil {
				return nil, retry.Unrecoverable(err)
			}
			body, err := c.execute(ctx, client, req)
			last = err
			return body, err
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(200*time.Millisecond),
		retry.MaxJitter(100*time.Millisecond),
		retry.RetryIf(isRetryableError),
		retry.OnRetry(func(n uint, err error) {
			c.logger.DebugContext(ctx, "retrying GitHub request", "attempt", n+1, "error", err)
		}),
	)
	if err == nil {
		return body, nil
	}
	// retry wraps the attempt log; callers only care about the final attempt.
	var apiErr *APIError
	if errors.As(last, &apiErr) {
		return nil, apiErr
	}
	return nil, upstreamError(err.Error(), err)
}

func (c *Client) execute(ctx context.Context, client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, upstreamError(err.Error(), err)
	}
	defer resp.Body.Close() //nolint:errcheck // best effort close

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, upstreamError("reading response body", err)
	}
	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    apiMessage(body),
		kind:       statusKind(resp.StatusCode, string(body)),
	}
	if reset, err := strconv.ParseInt(resp.Header.Get("X-Ratelimit-Reset"), 10, 64); err == nil && reset > 0 {
		apiErr.RateLimitReset = time.Unix(reset, 0)
	}

	c.logger.WarnContext(ctx, "GitHub request failed",
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"rate_limit_remaining", resp.Header.Get("X-Ratelimit-Remaining"),
		"rate_limit_reset", resp.Header.Get("X-Ratelimit-Reset"),
		"error", apiErr.Message,
	)
	return nil, apiErr
}

// apiMessage extracts the "message" field GitHub puts in REST-style error bodies.
func apiMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return e.Message
	}
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}
	return string(body)
}
