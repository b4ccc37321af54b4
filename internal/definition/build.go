package definition

import (
	"fmt"

	"github.com/JonMunkholm/dataimport/internal/core"
	"github.com/JonMunkholm/dataimport/internal/mapper"
	"github.com/JonMunkholm/dataimport/internal/postprocess"
	"github.com/JonMunkholm/dataimport/internal/source"
)

// Runtime supplies the collaborators a definition is bound to.
type Runtime struct {
	Store  core.TargetStore
	Logger core.Logger
	Env    source.Env
}

// Build turns the definition into an ImportContext and its DataSource.
// Settings are read once here; the result is not affected by later changes
// to the definition.
func (d *Definition) Build(rt Runtime) (*core.ImportContext, core.DataSource, error) {
	src, err := source.New(d.Source.Kind, d.Source.Settings, rt.Env)
	if err != nil {
		return nil, nil, fmt.Errorf("definition %s: source: %w", d.Key, err)
	}

	mappers := make([]core.FieldMapper, 0, len(d.Mappings))
	for i, cfg := range d.Mappings {
		m, err := mapper.New(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("definition %s: mappings[%d]: %w", d.Key, i, err)
		}
		mappers = append(mappers, m)
	}

	post := make([]core.PostProcessor, 0, len(d.PostProcessors))
	for i, cfg := range d.PostProcessors {
		p, err := postprocess.New(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("definition %s: post_processors[%d]: %w", d.Key, i, err)
		}
		post = append(post, p)
	}

	ic := &core.ImportContext{
		Key:   d.Key,
		Query: d.Source.Query,
		Root:  d.Root,
		Naming: core.NameRule{
			Columns:   append([]string(nil), d.Naming.Columns...),
			Delimiter: d.Naming.Delimiter,
			MaxLength: d.Naming.MaxLength,
		},
		Mappers:        mappers,
		PostProcessors: post,
		Store:          rt.Store,
		Logger:         rt.Logger,
	}
	if d.Folder != nil {
		ic.Folder = core.FolderRule{Column: d.Folder.Column, Create: d.Folder.Create}
	}

	if err := ic.Validate(); err != nil {
		return nil, nil, fmt.Errorf("definition %s: %w", d.Key, err)
	}
	return ic, src, nil
}
