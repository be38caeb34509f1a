package redmine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OptionKind names an enumeration used to populate a selection control.
type OptionKind string

const (
	OptionStatus     OptionKind = "status"
	OptionPriority   OptionKind = "priority"
	OptionUsers      OptionKind = "users"
	OptionVersions   OptionKind = "versions"
	OptionCategories OptionKind = "categories"
)

// ProjectScoped reports whether the enumeration needs a project identifier.
func (k OptionKind) ProjectScoped() bool {
	return k == OptionVersions || k == OptionCategories
}

// Option is a single selectable enumeration entry.
type Option struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// EmptyEnumeration returns the body served for a project-scoped kind when no
// project is known.
func EmptyEnumeration(kind OptionKind) json.RawMessage {
	switch kind {
	case OptionVersions:
		return json.RawMessage(`{"versions":[]}`)
	case OptionCategories:
		return json.RawMessage(`{"issue_categories":[]}`)
	}
	return json.RawMessage(`{}`)
}

// ExtractOptions pulls the option list for kind out of an enumeration body.
// A body without the expected collection yields an empty list.
func ExtractOptions(kind OptionKind, raw json.RawMessage) ([]Option, error) {
	var body map[string]json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("parsing %s options: %w", kind, err)
		}
	}

	switch kind {
	case OptionStatus:
		return namedList(body, "issue_statuses")
	case OptionPriority:
		// Older Redmine versions and some plugins use other collection names.
		return namedList(body, "issue_priorities", "enumerations", "priorities")
	case OptionUsers:
		var users []User
		if data, ok := body["users"]; ok {
			if err := json.Unmarshal(data, &users); err != nil {
				return nil, fmt.Errorf("parsing users: %w", err)
			}
		}
		opts := make([]Option, 0, len(users))
		for _, u := range users {
			opts = append(opts, Option{ID: u.ID, Name: strings.TrimSpace(u.Firstname + " " + u.Lastname)})
		}
		return opts, nil
	case OptionVersions:
		return namedList(body, "versions")
	case OptionCategories:
		return namedList(body, "issue_categories")
	}
	return nil, &UnsupportedOptionKindError{Kind: string(kind)}
}

// namedList decodes the first present key as a list of id/name records.
func namedList(body map[string]json.RawMessage, keys ...string) ([]Option, error) {
	for _, key := range keys {
		data, ok := body[key]
		if !ok {
			continue
		}
		var opts []Option
		if err := json.Unmarshal(data, &opts); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", key, err)
		}
		return opts, nil
	}
	return []Option{}, nil
}
