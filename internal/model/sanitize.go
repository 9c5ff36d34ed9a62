package model

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// StripHTML removes every tag from s and returns plain text.
func StripHTML(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// Sanitized returns a copy of d with markup stripped from every text field.
// List items that end up empty are dropped.
func (d JobDraft) Sanitized() JobDraft {
	out := d
	out.Title = StripHTML(d.Title)
	out.Description = StripHTML(d.Description)
	out.Location = StripHTML(d.Location)
	out.Skills = stripAll(d.Skills)
	out.Tags = stripAll(d.Tags)
	return out
}

func stripAll(items []string) []string {
	if items == nil {
		return nil
	}
	cleaned := make([]string, len(items))
	for i, it := range items {
		cleaned[i] = StripHTML(it)
	}
	return DedupList(cleaned)
}
