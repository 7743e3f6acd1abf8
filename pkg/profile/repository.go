package profile

import (
	"cmp"
	"slices"
	"time"
)

// Language is a repository language as reported by GitHub.
type Language struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// LanguageSize is one entry of a repository's size-weighted language breakdown.
type LanguageSize struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Size  int64  `json:"size"`
}

// Repository is a snapshot of a repository from a single provider query.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Repository struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	HomepageURL string `json:"homepage_url,omitempty"`

	Stars int `json:"stars"`
	Forks int `json:"forks"`

	IsPinned  bool `json:"is_pinned"`
	IsPrivate bool `json:"is_private"`
	IsFork    bool `json:"is_fork"`

	PrimaryLanguage *Language      `json:"primary_language,omitempty"`
	Languages       []LanguageSize `json:"languages,omitempty"` // Size descending, as queried
	Topics          []string       `json:"topics,omitempty"`    // Provider order

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Eligible reports whether the repository counts toward ranking and aggregates.
func (r *Repository) Eligible() bool {
	return !r.IsFork && !r.IsPrivate
}

// LanguageSizes flattens the language breakdown into a name to byte-size map.
func (r *Repository) LanguageSizes() map[string]int64 {
	m := make(map[string]int64, len(r.Languages))
	for _, l := range r.Languages {
		m[l.Name] = l.Size
	}
	return m
}

// Project is a repository selected for the featured section.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Project struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	Homepage    string `json:"homepage,omitempty"`

	Stars    int    `json:"stars"`
	Forks    int    `json:"forks"`
	Language string `json:"language,omitempty"`
	Pinned   bool   `json:"pinned"`

	Topics    []string         `json:"topics"`
	Languages map[string]int64 `json:"languages"`

	UpdatedAt time.Time `json:"updated_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectsData is the featured set plus statistics over every eligible repository.
type ProjectsData struct {
	Featured   []Project        `json:"featured"`
	Languages  map[string]int64 `json:"languages"`
	TotalStars int              `json:"total_stars"`
	TotalRepos int              `json:"total_repos"`
}

// LanguageTotal is a language and its aggregate size.
type LanguageTotal struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// TopLanguages returns up to n languages ordered by aggregate size, largest first.
// Equal sizes are ordered by name so output is deterministic.
func (d *ProjectsData) TopLanguages(n int) []LanguageTotal {
	out := make([]LanguageTotal, 0, len(d.Languages))
	for name, size := range d.Languages {
		out = append(out, LanguageTotal{Name: name, Size: size})
	}
	slices.SortFunc(out, func(a, b LanguageTotal) int {
		if c := cmp.Compare(b.Size, a.Size); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
