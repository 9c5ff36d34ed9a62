package model

import (
	"math"
	"strconv"
	"strings"

	"jobmate/marketplace-client/internal/apperr"
)

// DraftForm holds the raw text of the posting form, exactly as typed.
// Skills and tags are comma separated; budget and salary are numbers as text.
type DraftForm struct {
	Title       string
	Description string
	Skills      string
	Budget      string
	Salary      string
	Location    string
	Tags        string
}

// ParseDraftForm converts raw form input into a JobDraft.
// Numeric fields that do not parse produce a ValidationError listing every bad field;
// required-field checks are left to the submission coordinator.
func ParseDraftForm(f DraftForm) (JobDraft, error) {
	d := JobDraft{
		Title:       strings.TrimSpace(f.Title),
		Description: strings.TrimSpace(f.Description),
		Skills:      SplitList(f.Skills),
		Location:    strings.TrimSpace(f.Location),
		Tags:        SplitList(f.Tags),
	}

	var bad []apperr.FieldError
	if s := strings.TrimSpace(f.Budget); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			bad = append(bad, apperr.FieldError{Field: "budget", Msg: "must be a number"})
		} else {
			d.Budget = v
		}
	}
	if s := strings.TrimSpace(f.Salary); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			bad = append(bad, apperr.FieldError{Field: "salary", Msg: "must be a whole number"})
		} else {
			d.Salary = &v
		}
	}
	if len(bad) > 0 {
		return d, &apperr.ValidationError{Fields: bad}
	}
	return d, nil
}

// SplitList splits a comma separated input, trims every item, drops empties and
// removes case-insensitive duplicates while keeping the first spelling and order.
func SplitList(raw string) []string {
	return DedupList(strings.Split(raw, ","))
}

// DedupList applies the SplitList normalisation to an already split list.
func DedupList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		key := strings.ToLower(it)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out
}
