// Package codec converts between the text the tracker renders on a page and
// the values its API accepts.
package codec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ISODate is the API date layout.
const ISODate = "2006-01-02"

var (
	ymdRe    = regexp.MustCompile(`(\d{4})/(\d{1,2})/(\d{1,2})`)
	isoRe    = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
	mdRe     = regexp.MustCompile(`(\d{1,2})/(\d{1,2})`)
	hmRe     = regexp.MustCompile(`(\d+):(\d+)`)
	leadNum  = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)`)
	notNumRe = regexp.MustCompile(`[^\d.,]`)
)

// ParseDisplayDate turns a displayed date into YYYY-MM-DD. It accepts
// YYYY/MM/DD, YYYY-MM-DD and MM/DD, the last in the year of now. Text that
// does not hold a valid date, including the "-" placeholder, yields "".
func ParseDisplayDate(text string, now time.Time) string {
	text = strings.TrimSpace(text)
	if text == "" || text == "-" {
		return ""
	}

	var parts []string
	if match := ymdRe.FindStringSubmatch(text); match != nil {
		parts = match[1:]
	} else if match := isoRe.FindStringSubmatch(text); match != nil {
		parts = match[1:]
	} else if match := mdRe.FindStringSubmatch(text); match != nil {
		parts = []string{strconv.Itoa(now.Year()), match[1], match[2]}
	} else {
		return ""
	}

	y, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	d, _ := strconv.Atoi(parts[2])
	iso := fmt.Sprintf("%04d-%02d-%02d", y, m, d)
	if _, err := time.Parse(ISODate, iso); err != nil {
		return ""
	}
	return iso
}

// ParseDuration reads an hours value. "H:MM" becomes fractional hours. When
// packed is set, a whole number of 1000 or more whose last two digits are
// below 60 is read as HHMM, so 3000 is 30 hours. Anything else is the leading
// number of the text.
func ParseDuration(text string, packed bool) (float64, bool) {
	if m := hmRe.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		return float64(h) + float64(mins)/60, true
	}

	m := leadNum.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	if packed && !strings.Contains(m[1], ".") {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1000 && n%100 < 60 {
			return float64(n/100) + float64(n%100)/60, true
		}
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParsePercent reads a percentage such as "45%".
func ParsePercent(text string) (float64, bool) {
	return ParseNumber(text)
}

// ParseNumber strips everything but digits and separators from text and reads
// the leading number.
func ParseNumber(text string) (float64, bool) {
	clean := notNumRe.ReplaceAllString(text, "")
	m := leadNum.FindStringSubmatch(clean)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FormatNumber renders v without trailing zeros.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// EncodeSelection encodes a chosen option id. The empty choice is nil.
func EncodeSelection(value string) (any, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	id, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid option id %q", value)
	}
	return id, nil
}

// EncodeNumber encodes a number control. An empty control is nil.
func EncodeNumber(value string) (any, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", value)
	}
	return v, nil
}

// EncodeDate encodes a date control, which must hold YYYY-MM-DD. An empty
// control is nil.
func EncodeDate(value string) (any, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if _, err := time.Parse(ISODate, value); err != nil {
		return nil, fmt.Errorf("%q is not a date (YYYY-MM-DD)", value)
	}
	return value, nil
}

// EncodeText encodes a text control verbatim. An empty control is nil.
func EncodeText(value string) (any, error) {
	if value == "" {
		return nil, nil
	}
	return value, nil
}
