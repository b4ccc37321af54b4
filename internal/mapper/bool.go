package mapper

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/dataimport/internal/core"
)

// ParseBool accepts true/false, yes/no, t/f, y/n, on/off, x and 1/0.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1", "on", "x":
		return true, nil
	case "false", "f", "no", "n", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

// ToBool writes a checkbox style value.
type ToBool struct {
	Base
	trueValue  string
	falseValue string
}

// NewToBool builds a bool mapper. Options "true_value" (default "1") and
// "false_value" (default "") set what is written.
func NewToBool(b Base, opts Options) (*ToBool, error) {
	m := &ToBool{Base: b, trueValue: "1"}
	if v, ok := opts["true_value"]; ok {
		m.trueValue = v
	}
	if v, ok := opts["false_value"]; ok {
		m.falseValue = v
	}
	return m, nil
}

// FillField implements core.FieldMapper.
func (m *ToBool) FillField(ctx context.Context, ic *core.ImportContext, item *core.Item, value string) error {
	value = strings.TrimSpace(m.normalize(value))
	if value == "" {
		return m.write(ctx, ic, item, "")
	}
	b, err := ParseBool(value)
	if err != nil {
		return err
	}
	if b {
		return m.write(ctx, ic, item, m.trueValue)
	}
	return m.write(ctx, ic, item, m.falseValue)
}
