package fields

import "github.com/jbeckham/redmine-quickedit/internal/redmine"

// attributeSelectors builds the label and value selectors for a field shown as
// ".attribute.<class>" in the default theme or as a table row in older
// themes. With cellFirst the bare "td.<class>" cell is tried before the
// attribute block, which is how assignee, category, version, start date and
// estimated time are found on pages carrying both layouts.
func attributeSelectors(class string, cellFirst bool) (labels, values []string) {
	cell := "td." + class
	labels = []string{
		".attribute." + class + " .label",
		"." + class + " .label",
	}
	values = []string{
		".attribute." + class + " .value",
		"." + class + " .value",
	}
	if cellFirst {
		labels = append([]string{cell}, labels...)
		values = append([]string{cell}, values...)
	} else {
		labels = append(labels, cell)
		values = append(values, cell)
	}
	labels = append(labels, "tr."+class+" th", "tr."+class+" td:first-child")
	values = append(values, "tr."+class+" td.value")
	return labels, values
}

func attribute(name, class string, kind Kind, attr string, cellFirst bool) Descriptor {
	labels, values := attributeSelectors(class, cellFirst)
	return Descriptor{
		Name:           name,
		LabelSelectors: labels,
		ValueSelectors: values,
		Kind:           kind,
		APIAttribute:   attr,
	}
}

func selection(name, class, attr string, source redmine.OptionKind, cellFirst bool) Descriptor {
	d := attribute(name, class, Selection, attr, cellFirst)
	d.OptionsSource = source
	return d
}

// DefaultFields returns the stock Redmine issue fields.
func DefaultFields() []Descriptor {
	estimated := attribute("Estimated time", "estimated-hours", Number, "estimated_hours", true)
	estimated.Format = Duration

	// % Done is ".progress.attribute" on the issue page but "done-ratio" in
	// issue lists and some themes.
	done := Descriptor{
		Name: "% Done",
		LabelSelectors: []string{
			".progress.attribute .label",
			".attribute.progress .label",
			"td.done-ratio",
			".done-ratio .label",
			"tr.done-ratio th",
			"tr.done-ratio td:first-child",
		},
		ValueSelectors: []string{
			".progress.attribute .value",
			".attribute.progress .value",
			"td.done-ratio",
			".done-ratio .value",
			"tr.done-ratio td.value",
		},
		Kind:         Number,
		APIAttribute: "done_ratio",
		Bounds:       &Bounds{Min: 0, Max: 100, Step: 1},
		Format:       Percent,
	}

	return []Descriptor{
		selection("Status", "status", "status_id", redmine.OptionStatus, false),
		selection("Priority", "priority", "priority_id", redmine.OptionPriority, false),
		selection("Assignee", "assigned-to", "assigned_to_id", redmine.OptionUsers, true),
		selection("Category", "category", "category_id", redmine.OptionCategories, true),
		selection("Target version", "fixed-version", "fixed_version_id", redmine.OptionVersions, true),
		attribute("Start date", "start-date", Date, "start_date", true),
		attribute("Due date", "due-date", Date, "due_date", false),
		estimated,
		done,
	}
}

// Default returns a registry of DefaultFields.
func Default() *Registry {
	r, err := New(DefaultFields()...)
	if err != nil {
		panic(err)
	}
	return r
}
