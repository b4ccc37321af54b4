// Package definition loads import definitions from YAML and turns them into
// runnable imports.
//
// A definition names its source, the container new items go into, how item
// names are built, the ordered field mappings and the ordered
// post-processors:
//
//	key: products
//	group: Catalog
//	source:
//	  kind: text
//	  query: products.txt
//	  settings:
//	    Field Delimiter: ";"
//	    Encoding Type: "1252"
//	root: /content/products
//	naming:
//	  columns: ["0"]
//	mappings:
//	  - field: Title
//	    columns: ["1"]
//	post_processors:
//	  - type: item_count
package definition

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/dataimport/internal/core"
	"github.com/JonMunkholm/dataimport/internal/mapper"
	"github.com/JonMunkholm/dataimport/internal/postprocess"
	"github.com/JonMunkholm/dataimport/internal/source"
)

// Settings is a source's key/value configuration. Keys match exactly.
type Settings map[string]string

// Get returns the value for key, or "".
func (s Settings) Get(key string) string {
	return s[key]
}

// Source selects and configures the data source.
type Source struct {
	Kind     string   `yaml:"kind" json:"kind"`
	Query    string   `yaml:"query" json:"query"`
	Settings Settings `yaml:"settings,omitempty" json:"settings,omitempty"`
}

// Naming configures how item names are built.
type Naming struct {
	Columns   []string `yaml:"columns" json:"columns"`
	Delimiter string   `yaml:"delimiter,omitempty" json:"delimiter,omitempty"`
	MaxLength int      `yaml:"max_length,omitempty" json:"maxLength,omitempty"`
}

// Folder optionally groups items into folders named after a column.
type Folder struct {
	Column string `yaml:"column" json:"column"`
	Create bool   `yaml:"create" json:"create"`
}

// Definition is one configured import.
type Definition struct {
	Key            string               `yaml:"key" json:"key"`
	Name           string               `yaml:"name,omitempty" json:"name,omitempty"`
	Description    string               `yaml:"description,omitempty" json:"description,omitempty"`
	Group          string               `yaml:"group,omitempty" json:"group,omitempty"`
	Source         Source               `yaml:"source" json:"source"`
	Root           string               `yaml:"root" json:"root"`
	Naming         Naming               `yaml:"naming" json:"naming"`
	Folder         *Folder              `yaml:"folder,omitempty" json:"folder,omitempty"`
	Mappings       []mapper.Config      `yaml:"mappings" json:"mappings"`
	PostProcessors []postprocess.Config `yaml:"post_processors,omitempty" json:"postProcessors,omitempty"`

	// Path is the file the definition was loaded from.
	Path string `yaml:"-" json:"-"`
}

// ValidationError lists every problem found in a definition.
type ValidationError struct {
	Key      string
	Problems []string
}

func (e *ValidationError) Error() string {
	key := e.Key
	if key == "" {
		key = "(no key)"
	}
	return fmt.Sprintf("definition %s is invalid:\n  - %s", key, strings.Join(e.Problems, "\n  - "))
}

// ErrInvalid is matched by every ValidationError.
var ErrInvalid = errors.New("invalid definition")

// Is lets errors.Is(err, ErrInvalid) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// Parse decodes a single YAML definition, applies defaults and validates it.
// Unknown keys are rejected.
func Parse(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}
	def.applyDefaults()
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Load reads and parses the definition at path.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	def.Path = path
	return def, nil
}

func (d *Definition) applyDefaults() {
	d.Key = strings.TrimSpace(d.Key)
	if d.Name == "" {
		d.Name = d.Key
	}
	if d.Group == "" {
		d.Group = "Default"
	}
	if d.Source.Kind == "" {
		d.Source.Kind = source.KindText
	}
	if d.Source.Settings == nil {
		d.Source.Settings = Settings{}
	}
	if d.Naming.Delimiter == "" {
		d.Naming.Delimiter = " "
	}
	if d.Naming.MaxLength == 0 {
		d.Naming.MaxLength = core.DefaultMaxNameLength
	}
}

// Validate checks the definition and builds every mapper and post-processor
// once so configuration errors surface before a run starts.
func (d *Definition) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if d.Key == "" {
		add("key is required")
	} else if strings.ContainsAny(d.Key, " /\\") {
		add("key %q must not contain spaces or slashes", d.Key)
	}
	if !contains(source.Kinds(), strings.ToLower(d.Source.Kind)) {
		add("source.kind %q must be one of: %s", d.Source.Kind, strings.Join(source.Kinds(), ", "))
	}
	if strings.TrimSpace(d.Source.Query) == "" {
		add("source.query is required")
	}
	if strings.TrimSpace(d.Root) == "" {
		add("root is required")
	}
	if len(d.Naming.Columns) == 0 {
		add("naming.columns must list at least one column")
	}
	if d.Naming.MaxLength < 0 {
		add("naming.max_length must not be negative")
	}
	if d.Folder != nil && strings.TrimSpace(d.Folder.Column) == "" {
		add("folder.column is required when folder is set")
	}

	seen := make(map[string]bool)
	for i, m := range d.Mappings {
		if _, err := mapper.New(m); err != nil {
			add("mappings[%d]: %v", i, err)
		}
		if m.Field != "" && seen[m.Field] {
			add("mappings[%d]: field %s is mapped more than once", i, m.Field)
		}
		seen[m.Field] = true
	}
	for i, p := range d.PostProcessors {
		if _, err := postprocess.New(p); err != nil {
			add("post_processors[%d]: %v", i, err)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Key: d.Key, Problems: problems}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
