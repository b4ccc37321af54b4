package mapper

import (
	"context"
	"unicode/utf8"

	"github.com/JonMunkholm/dataimport/internal/core"
)

// ToText copies the source value into the field.
type ToText struct {
	Base
	maxLength int
}

// NewToText builds a text mapper. Option "max_length" truncates longer
// values (by rune).
func NewToText(b Base, opts Options) (*ToText, error) {
	maxLen, err := opts.Int("max_length", 0)
	if err != nil {
		return nil, err
	}
	return &ToText{Base: b, maxLength: maxLen}, nil
}

// FillField implements core.FieldMapper.
func (m *ToText) FillField(ctx context.Context, ic *core.ImportContext, item *core.Item, value string) error {
	value = m.normalize(value)
	if m.maxLength > 0 && utf8.RuneCountInString(value) > m.maxLength {
		value = string([]rune(value)[:m.maxLength])
	}
	return m.write(ctx, ic, item, value)
}

// Constant writes a fixed value regardless of the row.
type Constant struct {
	Base
	value string
}

// NewConstant builds a constant mapper from option "value".
func NewConstant(b Base, opts Options) (*Constant, error) {
	return &Constant{Base: b, value: opts.Get("value")}, nil
}

// FillField implements core.FieldMapper.
func (m *Constant) FillField(ctx context.Context, ic *core.ImportContext, item *core.Item, _ string) error {
	return m.write(ctx, ic, item, m.value)
}
