package garment

import (
	"bytes"
	"sort"

	"seasoncast/pkg/errors"
)

// FieldKind describes how an attribute is turned into features
type FieldKind string

const (
	KindCategorical   FieldKind = "categorical"   // one-hot, drop-first
	KindOrdinal       FieldKind = "ordinal"       // integer rank
	KindBoolean       FieldKind = "boolean"       // Yes -> 1, anything else -> 0
	KindInformational FieldKind = "informational" // validated, never encoded
)

// Valid checks if field kind is valid
func (k FieldKind) Valid() bool {
	switch k {
	case KindCategorical, KindOrdinal, KindBoolean, KindInformational:
		return true
	}
	return false
}

// Field is one attribute of a category schema
type Field struct {
	Name     string         `yaml:"name" json:"name"`
	Kind     FieldKind      `yaml:"kind" json:"kind"`
	Required bool           `yaml:"required" json:"required"`
	Prompt   string         `yaml:"prompt" json:"prompt,omitempty"`
	Values   []string       `yaml:"values" json:"values,omitempty"`
	Ranks    map[string]int `yaml:"ranks" json:"ranks,omitempty"`
	Baseline string         `yaml:"baseline" json:"baseline,omitempty"`
	Aliases  []string       `yaml:"aliases" json:"aliases,omitempty"`
}

// Options returns the permitted values in display order
func (f *Field) Options() []string {
	switch f.Kind {
	case KindOrdinal:
		opts := make([]string, 0, len(f.Ranks))
		for v := range f.Ranks {
			opts = append(opts, v)
		}
		sort.Slice(opts, func(i, j int) bool {
			if f.Ranks[opts[i]] != f.Ranks[opts[j]] {
				return f.Ranks[opts[i]] < f.Ranks[opts[j]]
			}
			return opts[i] < opts[j]
		})
		return opts
	case KindBoolean:
		return []string{AnswerYes, AnswerNo}
	default:
		return f.Values
	}
}

// Permits reports whether value belongs to the field's enumeration
func (f *Field) Permits(value string) bool {
	switch f.Kind {
	case KindOrdinal:
		_, ok := f.Ranks[value]
		return ok
	case KindBoolean:
		return value == AnswerYes || value == AnswerNo
	default:
		for _, v := range f.Values {
			if v == value {
				return true
			}
		}
		return false
	}
}

// IndicatorColumn names the one-hot column for a categorical value
func IndicatorColumn(field, value string) string {
	return field + "_" + value
}

// Schema is the static description of one category's classifier input.
// It is immutable after Compile and safe for concurrent use.
type Schema struct {
	Category    Category `yaml:"category" json:"category"`
	Version     string   `yaml:"version" json:"version"`
	Labels      []Season `yaml:"labels" json:"labels"`
	Fields      []Field  `yaml:"fields" json:"fields"`
	Columns     []string `yaml:"columns" json:"columns"`
	ColumnsFile string   `yaml:"columns_file" json:"-"`

	fieldIndex  map[string]int
	columnIndex map[string]int
}

// Compile validates the schema and builds lookup tables
func (s *Schema) Compile() error {
	if !s.Category.Valid() {
		return errors.Wrapf(errors.ErrUnknownCategory, "schema category %q", s.Category)
	}
	if len(s.Labels) == 0 {
		s.Labels = append([]Season(nil), DefaultLabels...)
	}
	for _, l := range s.Labels {
		if !l.Valid() {
			return errors.NewValidationError("labels", "unknown season", l)
		}
	}
	if len(s.Columns) == 0 {
		return errors.NewValidationError("columns", "trained column list is empty", s.Category)
	}

	s.columnIndex = make(map[string]int, len(s.Columns))
	for i, col := range s.Columns {
		if _, dup := s.columnIndex[col]; dup {
			return errors.NewValidationError("columns", "duplicate column", col)
		}
		s.columnIndex[col] = i
	}

	s.fieldIndex = make(map[string]int, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Name == "" {
			return errors.NewValidationError("fields", "field without name", i)
		}
		if !f.Kind.Valid() {
			return errors.NewValidationError(f.Name, "unknown field kind", f.Kind)
		}
		if f.Kind == KindOrdinal && len(f.Ranks) == 0 {
			return errors.NewValidationError(f.Name, "ordinal field without ranks", nil)
		}
		if (f.Kind == KindCategorical || f.Kind == KindInformational) && len(f.Values) == 0 {
			return errors.NewValidationError(f.Name, "field without values", f.Kind)
		}
		if f.Kind == KindCategorical {
			f.Values = dedupe(f.Values)
			if f.Baseline == "" {
				f.Baseline = lexicalFirst(f.Values)
			} else if !f.Permits(f.Baseline) {
				return errors.NewValidationError(f.Name, "baseline is not a permitted value", f.Baseline)
			}
		}
		for _, name := range append([]string{f.Name}, f.Aliases...) {
			if _, dup := s.fieldIndex[name]; dup {
				return errors.NewValidationError(name, "duplicate field name or alias", f.Name)
			}
			s.fieldIndex[name] = i
		}
	}
	return nil
}

// Field resolves a field by name or alias
func (s *Schema) Field(name string) (*Field, bool) {
	i, ok := s.fieldIndex[name]
	if !ok {
		return nil, false
	}
	return &s.Fields[i], true
}

// FieldsOfKind returns fields of the given kind in schema order
func (s *Schema) FieldsOfKind(kind FieldKind) []*Field {
	out := make([]*Field, 0, len(s.Fields))
	for i := range s.Fields {
		if s.Fields[i].Kind == kind {
			out = append(out, &s.Fields[i])
		}
	}
	return out
}

// ColumnIndex returns the position of a trained column
func (s *Schema) ColumnIndex(column string) (int, bool) {
	i, ok := s.columnIndex[column]
	return i, ok
}

// Width is the length of every feature vector for this schema
func (s *Schema) Width() int {
	return len(s.Columns)
}

// SeasonFor maps a classifier label to a season
func (s *Schema) SeasonFor(label int) (Season, error) {
	if label < 0 || label >= len(s.Labels) {
		return "", errors.Wrapf(errors.ErrUnknownLabel, "%s label %d", s.Category, label)
	}
	return s.Labels[label], nil
}

// Canonicalize resolves aliases to canonical field names and trims values.
// Names the schema does not know are kept so validation can report them.
// When both a field and its alias are set, the canonical name wins.
func (s *Schema) Canonicalize(record AttributeRecord) AttributeRecord {
	out := make(AttributeRecord, len(record))
	for _, canonicalPass := range []bool{false, true} {
		for name := range record {
			target := name
			if f, ok := s.Field(name); ok {
				target = f.Name
			}
			if (target == name) != canonicalPass {
				continue
			}
			value, set := record.Get(name)
			if !set {
				if _, exists := out[target]; !exists {
					out[target] = ""
				}
				continue
			}
			out[target] = value
		}
	}
	return out
}

// UnknownAttribute is the FieldError value reported for an attribute the schema does not define
const UnknownAttribute = "unknown attribute"

// Validate checks a canonical record against the schema's enumerations.
// Ordinal values are left to the encoder, which reports unmapped ranks.
func (s *Schema) Validate(record AttributeRecord) error {
	var merr errors.MultiError

	for _, name := range record.Keys() {
		f, ok := s.Field(name)
		if !ok {
			merr.Add(errors.NewFieldError(errors.ErrInvalidValue, name, UnknownAttribute))
			continue
		}
		value, _ := record.Get(name)
		if f.Kind == KindOrdinal {
			continue
		}
		if !f.Permits(value) {
			merr.Add(errors.NewFieldError(errors.ErrInvalidValue, f.Name, value))
		}
	}

	for i := range s.Fields {
		f := &s.Fields[i]
		if _, set := record.Get(f.Name); f.Required && !set {
			merr.Add(errors.NewFieldError(errors.ErrMissingRequiredField, f.Name, ""))
		}
	}

	return merr.ToError()
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// lexicalFirst mirrors drop-first one-hot encoding, which sorts categories by byte order
func lexicalFirst(values []string) string {
	first := values[0]
	for _, v := range values[1:] {
		if bytes.Compare([]byte(v), []byte(first)) < 0 {
			first = v
		}
	}
	return first
}
