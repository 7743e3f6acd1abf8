// Package readme extracts social profile links from GitHub profile README markup.
package readme

import (
	"net/url"
	"regexp"
	"strings"
)

// Links holds the social profiles found in a README.
// Twitter and X always carry the same profile; both are kept for callers that render either brand.
type Links struct {
	LinkedIn string `json:"linkedin,omitempty"`
	Twitter  string `json:"twitter,omitempty"`
	X        string `json:"x,omitempty"`
}

// Empty reports whether no link was found.
func (l Links) Empty() bool {
	return l.LinkedIn == "" && l.Twitter == "" && l.X == ""
}

// TwitterURL returns the Twitter link, falling back to the X link.
func (l Links) TwitterURL() string {
	if l.Twitter != "" {
		return l.Twitter
	}
	return l.X
}

// Patterns are evaluated in order; the first one that matches anywhere in the text wins,
// and within it the first match in document order. Capture group 1 is either a full URL
// or a bare handle.
var (
	linkedInPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)linkedin\.com/in/([a-zA-Z0-9-]+)`),
		regexp.MustCompile(`(?i)\[LinkedIn\]\((https?://[^\s)]+linkedin\.com[^\s)]+)\)`),
		regexp.MustCompile(`(?i)linkedin:\s*(https?://\S+)`),
	}

	twitterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)twitter\.com/([a-zA-Z0-9_]+)`),
		regexp.MustCompile(`(?i)x\.com/([a-zA-Z0-9_]+)`),
		regexp.MustCompile(`(?i)\[Twitter\]\((https?://[^\s)]+(?:twitter|x)\.com[^\s)]+)\)`),
		regexp.MustCompile(`(?i)\[X\]\((https?://[^\s)]+(?:twitter|x)\.com[^\s)]+)\)`),
		regexp.MustCompile(`(?i)twitter:\s*(https?://\S+)`),
		regexp.MustCompile(`(?i)x:\s*(https?://\S+)`),
	}
)

// SocialLinks scans README text for LinkedIn and Twitter/X profiles.
// It never fails: text without a recognizable mention yields an empty Links.
func SocialLinks(text string) Links {
	var links Links
	if text == "" {
		return links
	}

	if capture := firstCapture(text, linkedInPatterns); capture != "" {
		if strings.HasPrefix(capture, "http") {
			links.LinkedIn = capture
		} else {
			links.LinkedIn = "https://www.linkedin.com/in/" + capture
		}
	}

	if capture := firstCapture(text, twitterPatterns); capture != "" {
		if strings.HasPrefix(capture, "http") {
			links.Twitter = capture
			links.X = capture
		} else {
			links.Twitter = "https://twitter.com/" + capture
			links.X = "https://x.com/" + capture
		}
	}

	return links
}

// firstCapture returns capture group 1 of the first matching pattern, in priority order.
func firstCapture(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 && m[1] != "" {
			return m[1]
		}
	}
	return ""
}

// Handle returns the last path segment of a profile URL, e.g. "bob" for https://x.com/bob.
// It returns "" when the URL cannot be parsed or the path ends with a slash.
func Handle(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	path := u.Path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return path
}
