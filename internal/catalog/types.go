package catalog

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Place is an origin or last known location reference.
type Place struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Record mirrors one character from /api/character.
type Record struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Status   string   `json:"status"`
	Species  string   `json:"species"`
	Type     string   `json:"type"`
	Gender   string   `json:"gender"`
	Origin   Place    `json:"origin"`
	Location Place    `json:"location"`
	Image    string   `json:"image"`
	Episode  []string `json:"episode"`
	URL      string   `json:"url"`
	Created  string   `json:"created"`
}

// CreatedAt parses the created timestamp. It returns the zero time when absent
// or malformed.
func (r Record) CreatedAt() time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(r.Created))
	if err != nil {
		return time.Time{}
	}
	return t
}

// EpisodeNumbers extracts the trailing ids from the episode URLs.
func (r Record) EpisodeNumbers() []int {
	out := make([]int, 0, len(r.Episode))
	for _, raw := range r.Episode {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		segment := u.Path[strings.LastIndex(u.Path, "/")+1:]
		if n, err := strconv.Atoi(segment); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// Info is the pagination block of a list response.
type Info struct {
	Count int     `json:"count"`
	Pages int     `json:"pages"`
	Next  *string `json:"next"`
	Prev  *string `json:"prev"`
}

// HasNext reports whether a following page exists.
func (i Info) HasNext() bool { return i.Next != nil && *i.Next != "" }

// HasPrev reports whether a preceding page exists.
func (i Info) HasPrev() bool { return i.Prev != nil && *i.Prev != "" }

// Page mirrors a list response.
type Page struct {
	Info    Info     `json:"info"`
	Results []Record `json:"results"`
}
