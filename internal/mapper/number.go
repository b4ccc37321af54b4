package mapper

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/dataimport/internal/core"
)

// numericRegex validates a number after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// MaxNumberExponent bounds the decimal exponent ParseNumber accepts, so
// formatting a parsed value never produces more than about this many digits.
const MaxNumberExponent = 1000

// maxPlaces bounds the "places" option.
const maxPlaces = 100

// ParseNumber converts messy numeric text to a decimal. It handles currency
// symbols, thousands separators and the accounting format for negatives
// ("(123.45)").
func ParseNumber(s string) (decimal.Decimal, error) {
	raw := s
	s = strings.TrimSpace(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "").Replace(s)
	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return decimal.Decimal{}, fmt.Errorf("invalid number %q", raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid number %q: %w", raw, err)
	}
	if exp := d.Exponent(); exp > MaxNumberExponent || exp < -MaxNumberExponent {
		return decimal.Decimal{}, fmt.Errorf("number %q is out of range", raw)
	}
	return d, nil
}

// ToNumber normalizes a numeric value.
type ToNumber struct {
	Base
	places int32
	fixed  bool
}

// NewToNumber builds a number mapper. Option "places" rounds to a fixed
// number of decimal places.
func NewToNumber(b Base, opts Options) (*ToNumber, error) {
	m := &ToNumber{Base: b}
	if opts.Get("places") != "" {
		places, err := opts.Int("places", 0)
		if err != nil {
			return nil, err
		}
		if places < 0 || places > maxPlaces {
			return nil, fmt.Errorf("option places must be between 0 and %d", maxPlaces)
		}
		m.places = int32(places)
		m.fixed = true
	}
	return m, nil
}

// FillField implements core.FieldMapper.
func (m *ToNumber) FillField(ctx context.Context, ic *core.ImportContext, item *core.Item, value string) error {
	value = strings.TrimSpace(m.normalize(value))
	if value == "" {
		return m.write(ctx, ic, item, "")
	}
	d, err := ParseNumber(value)
	if err != nil {
		return err
	}
	if m.fixed {
		return m.write(ctx, ic, item, d.StringFixed(m.places))
	}
	return m.write(ctx, ic, item, d.String())
}
