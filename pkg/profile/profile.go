// Package profile defines the normalized types produced by the portfolio pipeline.
package profile

import (
	"errors"
	"strings"
	"time"
)

// Error taxonomy shared by every fetcher. Provider errors unwrap to exactly one of these.
var (
	ErrConfig          = errors.New("configuration error")
	ErrProfileNotFound = errors.New("profile not found")
	ErrUnauthorized    = errors.New("credentials rejected")
	ErrRateLimited     = errors.New("rate limited")
	ErrUpstream        = errors.New("upstream error")
)

// Classified reports whether err already belongs to the error taxonomy.
func Classified(err error) bool {
	return errors.Is(err, ErrConfig) ||
		errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUpstream)
}

// Profile is the normalized view of a GitHub user.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Profile struct {
	Username  string `json:"username"`
	Name      string `json:"name,omitempty"`
	Bio       string `json:"bio,omitempty"`
	AvatarURL string `json:"avatar_url"`

	Location string `json:"location,omitempty"`
	Email    string `json:"email,omitempty"`
	Website  string `json:"website,omitempty"` // Always absolute when set
	Company  string `json:"company,omitempty"`

	TwitterUsername string `json:"twitter_username,omitempty"` // Provider field, else parsed from README
	LinkedInURL     string `json:"linkedin_url,omitempty"`     // README only

	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	PublicRepos int       `json:"public_repos"`
	CreatedAt   time.Time `json:"created_at"`

	Cached bool `json:"cached"` // Served from a result cache rather than a live fetch
}

// DisplayName returns the name if set, otherwise the username.
func (p *Profile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Username
}

// NormalizeWebsite returns an absolute URL for a profile website field.
// Bare domains get an https:// prefix; empty input stays empty.
func NormalizeWebsite(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	return "https://" + s
}

// Metrics holds contribution counters shown alongside the portfolio.
type Metrics struct {
	PRsMerged          int `json:"prs_merged"`
	PRsOpen            int `json:"prs_open"`
	IssuesOpened       int `json:"issues_opened"`
	TotalContributions int `json:"total_contributions"`
}
