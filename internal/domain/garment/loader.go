package garment

import (
	"embed"
	"encoding/json"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"seasoncast/pkg/errors"
)

//go:embed schemas/*.yaml schemas/*.json
var embeddedSchemas embed.FS

// DefaultSchemaFS returns the schemas shipped with the binary
func DefaultSchemaFS() fs.FS {
	sub, err := fs.Sub(embeddedSchemas, "schemas")
	if err != nil {
		panic(err) // embed layout is fixed at build time
	}
	return sub
}

// SchemaFS returns the schema directory, or the embedded defaults when dir is empty
func SchemaFS(dir string) fs.FS {
	if dir == "" {
		return DefaultSchemaFS()
	}
	return os.DirFS(dir)
}

// Registry holds one compiled schema per category. Read-only after load.
type Registry struct {
	schemas map[Category]*Schema
}

// NewRegistry builds a registry from already compiled schemas
func NewRegistry(schemas ...*Schema) *Registry {
	r := &Registry{schemas: make(map[Category]*Schema, len(schemas))}
	for _, s := range schemas {
		r.schemas[s.Category] = s
	}
	return r
}

// LoadRegistry parses every *.yaml schema in fsys
func LoadRegistry(fsys fs.FS) (*Registry, error) {
	names, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list schema files")
	}
	if len(names) == 0 {
		return nil, errors.Wrap(errors.ErrNotFound, "no schema files found")
	}

	r := &Registry{schemas: make(map[Category]*Schema, len(names))}
	for _, name := range names {
		s, err := LoadSchema(fsys, name)
		if err != nil {
			return nil, err
		}
		if _, dup := r.schemas[s.Category]; dup {
			return nil, errors.Newf("duplicate schema for category %s in %s", s.Category, name)
		}
		r.schemas[s.Category] = s
	}
	return r, nil
}

// LoadSchema parses one schema file and its column list, then compiles it
func LoadSchema(fsys fs.FS, name string) (*Schema, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read schema %s", name)
	}

	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(err, "failed to parse schema %s", name)
	}

	if len(s.Columns) == 0 && s.ColumnsFile != "" {
		cols, err := LoadColumns(fsys, path.Join(path.Dir(name), s.ColumnsFile))
		if err != nil {
			return nil, errors.Wrapf(err, "schema %s", name)
		}
		s.Columns = cols
	}

	if err := s.Compile(); err != nil {
		return nil, errors.Wrapf(err, "invalid schema %s", name)
	}
	return &s, nil
}

// LoadColumns reads a trained column list stored as a JSON array of strings
func LoadColumns(fsys fs.FS, name string) ([]string, error) {
	data, err := fs.ReadFile(fsys, strings.TrimPrefix(name, "./"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read column list %s", name)
	}

	var cols []string
	if err := json.Unmarshal(data, &cols); err != nil {
		return nil, errors.Wrapf(err, "failed to parse column list %s", name)
	}
	return cols, nil
}

// Get returns the schema for a category
func (r *Registry) Get(c Category) (*Schema, error) {
	s, ok := r.schemas[c]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownCategory, "no schema for %q", c)
	}
	return s, nil
}

// Categories lists loaded categories in sorted order
func (r *Registry) Categories() []Category {
	out := make([]Category, 0, len(r.schemas))
	for c := range r.schemas {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
