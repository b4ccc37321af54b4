package mapper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/dataimport/internal/core"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// DefaultDateLayout is the output layout when none is configured.
const DefaultDateLayout = "20060102T150405"

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02T15:04:05Z07:00", "2006-01-02T15:04:05", "2006-01-02 15:04:05",
		"1/2/2006 15:04", "1/2/2006 3:04 PM",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2006-01-02", "2006/01/02", "2006.01.02",
		"Jan 2, 2006", "2 Jan 2006", "January 2, 2006",
		"20060102T150405", "20060102",
	}
)

// ParseDate parses s with the given layouts, falling back to the built-in
// list. Two-digit years are pivoted relative to now.
func ParseDate(s string, layouts []string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	pivotYear := now.Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ToDate parses a date and writes it in the output layout.
type ToDate struct {
	Base
	inputs []string
	output string
	now    func() time.Time
}

// NewToDate builds a date mapper. Option "input" adds a "|" separated list
// of Go layouts tried first; "format" sets the output layout.
func NewToDate(b Base, opts Options) (*ToDate, error) {
	var inputs []string
	for _, l := range strings.Split(opts.Get("input"), "|") {
		if l = strings.TrimSpace(l); l != "" {
			inputs = append(inputs, l)
		}
	}
	return &ToDate{
		Base:   b,
		inputs: inputs,
		output: opts.String("format", DefaultDateLayout),
		now:    time.Now,
	}, nil
}

// FillField implements core.FieldMapper.
func (m *ToDate) FillField(ctx context.Context, ic *core.ImportContext, item *core.Item, value string) error {
	value = strings.TrimSpace(m.normalize(value))
	if value == "" {
		return m.write(ctx, ic, item, "")
	}
	t, err := ParseDate(value, m.inputs, m.now())
	if err != nil {
		return err
	}
	return m.write(ctx, ic, item, t.Format(m.output))
}
