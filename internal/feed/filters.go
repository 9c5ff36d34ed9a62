package feed

import (
	"strings"

	"github.com/pkg/errors"

	"jobmate/marketplace-client/internal/model"
)

// Field names one independently clearable filter.
type Field string

const (
	FieldQuery    Field = "q"
	FieldSkills   Field = "skills"
	FieldLocation Field = "location"
	FieldTags     Field = "tags"
)

// ParseField converts a raw name to a Field.
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FieldQuery, FieldSkills, FieldLocation, FieldTags:
		return f, nil
	case "query", "search":
		return FieldQuery, nil
	}
	return "", errors.Errorf("unknown filter %q", s)
}

// Filters is the query state. Revision increases on every effective change
// and tags the fetches dispatched for it.
type Filters struct {
	Query    string
	Skills   string
	Location string
	Tags     string
	Revision uint64
}

// JobQuery returns the AND query sent to the backend.
func (f Filters) JobQuery() model.JobQuery {
	return model.JobQuery{
		Text:     strings.TrimSpace(f.Query),
		Skills:   strings.TrimSpace(f.Skills),
		Location: strings.TrimSpace(f.Location),
		Tags:     strings.TrimSpace(f.Tags),
	}
}

// Get returns the raw value of one filter.
func (f Filters) Get(field Field) string {
	switch field {
	case FieldQuery:
		return f.Query
	case FieldSkills:
		return f.Skills
	case FieldLocation:
		return f.Location
	case FieldTags:
		return f.Tags
	}
	return ""
}

// set stores value and reports whether it changed.
func (f *Filters) set(field Field, value string) bool {
	var dst *string
	switch field {
	case FieldQuery:
		dst = &f.Query
	case FieldSkills:
		dst = &f.Skills
	case FieldLocation:
		dst = &f.Location
	case FieldTags:
		dst = &f.Tags
	default:
		return false
	}
	if *dst == value {
		return false
	}
	*dst = value
	return true
}
