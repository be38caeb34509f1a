package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jbeckham/redmine-quickedit/internal/codec"
	"github.com/jbeckham/redmine-quickedit/internal/editor"
	"github.com/jbeckham/redmine-quickedit/internal/fields"
	"github.com/jbeckham/redmine-quickedit/internal/page"
	"github.com/jbeckham/redmine-quickedit/internal/redmine"
	"github.com/jbeckham/redmine-quickedit/internal/relay"
)

// setField runs one edit session on doc with raw as the control value. It
// reports false when the value equals the current one.
func setField(ctx context.Context, r *relay.Relay, doc *page.Document, reg *fields.Registry, opts editor.Options, logger *slog.Logger, name, raw string) (*fields.Descriptor, bool, error) {
	field, ok := reg.Lookup(name)
	if !ok {
		return nil, false, fmt.Errorf("unknown field %q", name)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	ed := editor.New(doc, reg, valueFactory{raw: raw, now: now}, opts, logger)
	req, err := ed.Open(field)
	if err != nil {
		return field, false, err
	}
	if req != nil {
		if err := ed.OptionsLoaded(req, <-r.Dispatch(ctx, *req)); err != nil {
			return field, false, err
		}
	}
	if ed.State() != editor.Editing {
		return field, false, fmt.Errorf("%s cannot be edited on %q", field.Name, doc.Path())
	}

	req, err = ed.Commit()
	if err != nil {
		ed.Cancel()
		return field, false, err
	}
	if req == nil {
		return field, false, nil
	}
	if err := ed.Committed(<-r.Dispatch(ctx, *req)); err != nil {
		return field, false, err
	}
	return field, true, nil
}

func valueText(doc *page.Document, field *fields.Descriptor) string {
	if n := field.ValueElement(doc); n != nil {
		return strings.TrimSpace(page.Text(n))
	}
	return ""
}

// valueFactory builds controls that hold a value given on the command line,
// converted to the form the editor encodes.
type valueFactory struct {
	raw string
	now func() time.Time
}

func (f valueFactory) NewControl(spec editor.ControlSpec) editor.Control {
	v := strings.TrimSpace(f.raw)
	switch spec.Field.Kind {
	case fields.Selection:
		v = matchOption(spec.Options, v)
	case fields.Date:
		if clearValue(v) {
			v = ""
		} else if iso := codec.ParseDisplayDate(v, f.now()); iso != "" {
			v = iso
		}
	case fields.Number:
		if clearValue(v) {
			v = ""
		} else if spec.Field.Format == fields.Duration && strings.Contains(v, ":") {
			if h, ok := codec.ParseDuration(v, false); ok {
				v = codec.FormatNumber(h)
			}
		}
	}
	return &valueControl{value: v}
}

type valueControl struct {
	value string
}

func (c *valueControl) Value() string { return c.value }
func (c *valueControl) Focus()        {}
func (c *valueControl) SelectAll()    {}

func clearValue(v string) bool {
	switch strings.ToLower(v) {
	case "", "none", "-":
		return true
	}
	return false
}

// matchOption returns the id of the option named v, ignoring case, or of the
// option whose id is v. Unknown values are returned as given and fail to
// encode.
func matchOption(opts []redmine.Option, v string) string {
	if clearValue(v) {
		return ""
	}
	for _, o := range opts {
		if strings.EqualFold(o.Name, v) {
			return strconv.Itoa(o.ID)
		}
	}
	id := strings.TrimPrefix(v, "#")
	for _, o := range opts {
		if strconv.Itoa(o.ID) == id {
			return id
		}
	}
	return v
}
