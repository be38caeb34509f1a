package editor

import (
	"strconv"

	"github.com/jbeckham/redmine-quickedit/internal/codec"
	"github.com/jbeckham/redmine-quickedit/internal/fields"
)

// strategy is the per-kind behaviour of a session.
type strategy struct {
	// decode turns the displayed text into the control's starting value.
	decode func(text string, f *fields.Descriptor, opts Options) string
	// encode turns a control value into the API value.
	encode func(value string) (any, error)
	// display is the text shown on the page after a successful update.
	display func(s *session, value string) string
}

var strategies = map[fields.Kind]strategy{
	fields.Selection: {
		decode: func(string, *fields.Descriptor, Options) string { return "" },
		encode: codec.EncodeSelection,
		display: func(s *session, value string) string {
			if value == "" {
				return "-"
			}
			for _, o := range s.options {
				if strconv.Itoa(o.ID) == value {
					return o.Name
				}
			}
			return value
		},
	},
	fields.Date: {
		decode: func(text string, _ *fields.Descriptor, opts Options) string {
			return codec.ParseDisplayDate(text, opts.Now())
		},
		encode:  codec.EncodeDate,
		display: rawOrPlaceholder,
	},
	fields.Number: {
		decode:  decodeNumber,
		encode:  codec.EncodeNumber,
		display: rawOrPlaceholder,
	},
	fields.Text: {
		decode:  func(text string, _ *fields.Descriptor, _ Options) string { return text },
		encode:  codec.EncodeText,
		display: rawOrPlaceholder,
	},
}

func strategyFor(k fields.Kind) strategy {
	if s, ok := strategies[k]; ok {
		return s
	}
	return strategies[fields.Text]
}

func decodeNumber(text string, f *fields.Descriptor, opts Options) string {
	var (
		v  float64
		ok bool
	)
	switch f.Format {
	case fields.Duration:
		v, ok = codec.ParseDuration(text, opts.PackedDurations)
	case fields.Percent:
		v, ok = codec.ParsePercent(text)
	default:
		v, ok = codec.ParseNumber(text)
	}
	if !ok {
		return ""
	}
	return codec.FormatNumber(v)
}

func rawOrPlaceholder(_ *session, value string) string {
	if value == "" {
		return "-"
	}
	return value
}
