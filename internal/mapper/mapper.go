// Package mapper provides the field mapping strategies.
//
// A mapper reads one or more source columns (joined by the core processor)
// and writes a single target field. Mappers are built from a Config by the
// registry in registry.go; the strategy is selected by Config.Type.
//
// Empty input is a valid fill for every strategy: the field is written with
// "" so it can be told apart from a field no mapper touched.
package mapper

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/dataimport/internal/core"
)

// Config describes one field mapping.
type Config struct {
	Field     string            `yaml:"field" json:"field"`
	Columns   []string          `yaml:"columns" json:"columns"`
	Delimiter string            `yaml:"delimiter,omitempty" json:"delimiter,omitempty"`
	Type      string            `yaml:"type,omitempty" json:"type,omitempty"`
	Normalize []string          `yaml:"normalize,omitempty" json:"normalize,omitempty"`
	Options   Options           `yaml:"options,omitempty" json:"options,omitempty"`
	Values    map[string]string `yaml:"values,omitempty" json:"values,omitempty"`
}

// Options holds strategy specific settings.
type Options map[string]string

// Get returns the option for key, or "".
func (o Options) Get(key string) string {
	return o[key]
}

// String returns the option for key, or def when unset.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok && v != "" {
		return v
	}
	return def
}

// Bool parses a boolean option.
func (o Options) Bool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(o[key])
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("option %s: %w", key, err)
	}
	return b, nil
}

// Int parses an integer option.
func (o Options) Int(key string, def int) (int, error) {
	v := strings.TrimSpace(o[key])
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("option %s: %w", key, err)
	}
	return n, nil
}

// Base carries the parts of core.FieldMapper shared by every strategy.
type Base struct {
	field      string
	columns    []string
	delimiter  string
	normalizer Normalizer
}

// NewBase validates the common part of cfg.
func NewBase(cfg Config) (Base, error) {
	if strings.TrimSpace(cfg.Field) == "" {
		return Base{}, fmt.Errorf("mapping has no target field")
	}
	norm, err := Chain(cfg.Normalize...)
	if err != nil {
		return Base{}, fmt.Errorf("field %s: %w", cfg.Field, err)
	}
	return Base{
		field:      cfg.Field,
		columns:    append([]string(nil), cfg.Columns...),
		delimiter:  cfg.Delimiter,
		normalizer: norm,
	}, nil
}

// Field implements core.FieldMapper.
func (b Base) Field() string { return b.field }

// RequiredColumns implements core.FieldMapper.
func (b Base) RequiredColumns() []string { return b.columns }

// JoinDelimiter implements core.FieldMapper.
func (b Base) JoinDelimiter() string { return b.delimiter }

// normalize applies the configured normalizers.
func (b Base) normalize(value string) string {
	if b.normalizer == nil {
		return value
	}
	return b.normalizer(value)
}

// write stores value on item.
func (b Base) write(ctx context.Context, ic *core.ImportContext, item *core.Item, value string) error {
	if err := ic.Store.SetField(ctx, item, b.field, value); err != nil {
		return fmt.Errorf("set field %s: %w", b.field, err)
	}
	return nil
}
