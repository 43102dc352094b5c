package garment

import (
	"sort"
	"strings"

	"seasoncast/pkg/errors"
)

// Category identifies the garment type a classifier was trained for
type Category string

const (
	CategoryDress  Category = "dress"
	CategoryJacket Category = "jacket"
)

// Valid checks if category is one of the known garment types
func (c Category) Valid() bool {
	switch c {
	case CategoryDress, CategoryJacket:
		return true
	}
	return false
}

// String returns string representation
func (c Category) String() string {
	return string(c)
}

// ParseCategory accepts "Dress", "dress", " JACKET " and so on
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", errors.Wrapf(errors.ErrUnknownCategory, "category %q", s)
	}
	return c, nil
}

// Season is the classifier's output label
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
	SeasonWinter Season = "winter"
)

// Valid checks if season is valid
func (s Season) Valid() bool {
	switch s {
	case SeasonSpring, SeasonSummer, SeasonAutumn, SeasonWinter:
		return true
	}
	return false
}

// String returns string representation
func (s Season) String() string {
	return string(s)
}

// DefaultLabels is the label order the shipped classifiers were trained with
var DefaultLabels = []Season{SeasonSpring, SeasonSummer, SeasonWinter, SeasonAutumn}

// Boolean answers
const (
	AnswerYes = "Yes"
	AnswerNo  = "No"
)

// AttributeRecord maps attribute name to the selected value.
// An absent key or an empty value means the attribute is unset.
type AttributeRecord map[string]string

// Get returns the trimmed value and whether it is set
func (r AttributeRecord) Get(field string) (string, bool) {
	v, ok := r[field]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Clone returns an independent copy
func (r AttributeRecord) Clone() AttributeRecord {
	out := make(AttributeRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Keys returns the set attribute names in sorted order
func (r AttributeRecord) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		if _, ok := r.Get(k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
