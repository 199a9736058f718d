package record

import (
	"net/url"
	"strings"
)

// HumanName renders "title - byline - date", with "untitled" for a missing
// title and empty parts skipped.
func HumanName(r *Record) string {
	parts := []string{"untitled"}
	if r.Title != "" {
		parts[0] = r.Title
	}
	if r.Byline != "" {
		parts = append(parts, r.Byline)
	}
	if r.Date != "" {
		parts = append(parts, r.Date)
	}
	return strings.Join(parts, " - ")
}

// SuggestedFilename returns a download name for r with the given suffix,
// e.g. "NYT - 2020-05-01 - Mini - By Someone.json".
func SuggestedFilename(r *Record, suffix string) string {
	var b strings.Builder
	if u, err := url.Parse(r.URL); err == nil && u.Hostname() == "www.nytimes.com" {
		b.WriteString("NYT - ")
	}
	b.WriteString(orDefault(r.Date, "date unknown"))
	b.WriteString(" - ")
	b.WriteString(orDefault(r.Title, "untitled"))
	if r.Byline != "" {
		b.WriteString(" - ")
		b.WriteString(r.Byline)
	}
	b.WriteString(".")
	b.WriteString(suffix)
	return sanitizeFilename(b.String())
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Path separators would turn a title into directories.
var filenameReplacer = strings.NewReplacer("/", "-", "\\", "-")

func sanitizeFilename(name string) string {
	return filenameReplacer.Replace(name)
}

// Summary is the listing view of a record.
type Summary struct {
	Identity    string `json:"identity"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Status      Status `json:"status"`
	Events      int    `json:"events"`
	LastEventAt int64  `json:"lastEventAt,omitempty"`
	// Revision counts stored writes. Zero when the storage does not track it.
	Revision int64 `json:"revision,omitempty"`
}

// Summarize builds the listing view of r stored under identity.
func Summarize(identity string, r *Record) Summary {
	s := Summary{
		Identity: identity,
		Name:     HumanName(r),
		Version:  r.Version,
		Status:   r.Status(),
		Events:   len(r.Events),
	}
	if ts, ok := r.LastEventAt(); ok {
		s.LastEventAt = ts
	}
	return s
}
