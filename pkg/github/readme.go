package github

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/codeGROOVE-dev/folio/pkg/readme"
)

var errNoREADME = errors.New("no README content")

// readmeSource is one attempt in the README fallback chain.
type readmeSource struct {
	name  string
	fetch func(ctx context.Context, username string) (string, error)
}

// readmeSources returns the README attempts in priority order.
func (c *Client) readmeSources() []readmeSource {
	return []readmeSource{
		{name: "graphql", fetch: c.readmeFromGraphQL},
		{name: "raw:main", fetch: c.rawREADME("main")},
		{name: "raw:master", fetch: c.rawREADME("master")},
	}
}

// FetchREADME returns the text of the user's profile README (the README.md of the
// repository named after the user). Sources are tried one at a time; ok is false when
// every source failed. It never returns an error.
func (c *Client) FetchREADME(ctx context.Context, username string) (text string, ok bool) {
	for _, src := range c.readmeSources() {
		text, err := src.fetch(ctx, username)
		if err != nil {
			c.logger.DebugContext(ctx, "README source unavailable", "source", src.name, "username", username, "error", err)
			continue
		}
		c.logger.DebugContext(ctx, "README found", "source", src.name, "username", username, "bytes", len(text))
		return text, true
	}
	return "", false
}

func (c *Client) readmeFromGraphQL(ctx context.Context, username string) (string, error) {
	var user struct {
		Repository *struct {
			Object *struct {
				Text string `json:"text"`
			} `json:"object"`
		} `json:"repository"`
	}
	if err := c.query(ctx, readmeQuery, username, &user); err != nil {
		return "", err
	}
	if user.Repository == nil || user.Repository.Object == nil || user.Repository.Object.Text == "" {
		return "", errNoREADME
	}
	return user.Repository.Object.Text, nil
}

func (c *Client) rawREADME(branch string) func(context.Context, string) (string, error) {
	return func(ctx context.Context, username string) (string, error) {
		u := c.rawURL + "/" + url.PathEscape(username) + "/" + url.PathEscape(username) + "/" + branch + "/README.md"
		body, err := c.do(ctx, c.rawClient, func() (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
			if err != nil {
				return nil, err
			}
			req.Header.Set("User-Agent", userAgent)
			return req, nil
		})
		if err != nil {
			return "", err
		}
		if len(body) == 0 {
			return "", errNoREADME
		}
		return string(body), nil
	}
}

// socialLinks runs the extractor, treating a panic as "no links".
func (c *Client) socialLinks(ctx context.Context, text string) (links readme.Links) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WarnContext(ctx, "README link extraction failed", "panic", r)
			links = readme.Links{}
		}
	}()
	return readme.SocialLinks(text)
}
