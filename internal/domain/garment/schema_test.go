package garment

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seasoncast/pkg/errors"
)

func loadDefaults(t *testing.T) *Registry {
	t.Helper()
	reg, err := LoadRegistry(DefaultSchemaFS())
	require.NoError(t, err)
	return reg
}

func TestLoadRegistry_Defaults(t *testing.T) {
	reg := loadDefaults(t)
	assert.Equal(t, []Category{CategoryDress, CategoryJacket}, reg.Categories())

	dress, err := reg.Get(CategoryDress)
	require.NoError(t, err)
	assert.Equal(t, 71, dress.Width())
	assert.Equal(t, DefaultLabels, dress.Labels)

	jacket, err := reg.Get(CategoryJacket)
	require.NoError(t, err)
	assert.Equal(t, 73, jacket.Width())

	_, err = reg.Get(Category("shoe"))
	assert.True(t, errors.Is(err, errors.ErrUnknownCategory))
}

func TestShippedSchemasHaveNoDrift(t *testing.T) {
	reg := loadDefaults(t)
	for _, c := range reg.Categories() {
		s, err := reg.Get(c)
		require.NoError(t, err)
		assert.Nil(t, Audit(s), "category %s", c)
	}
}

func TestBaselineIsLexicallyFirst(t *testing.T) {
	reg := loadDefaults(t)

	dress, _ := reg.Get(CategoryDress)
	collar, ok := dress.Field("Collar")
	require.True(t, ok)
	// Upper case sorts before lower case in byte order
	assert.Equal(t, "Basic", collar.Baseline)

	jacket, _ := reg.Get(CategoryJacket)
	style, ok := jacket.Field("Style")
	require.True(t, ok)
	assert.Equal(t, "anorak", style.Baseline)
	assert.Len(t, style.Values, 21)
}

func TestDressFitRanksKeepGap(t *testing.T) {
	reg := loadDefaults(t)
	dress, _ := reg.Get(CategoryDress)
	fit, ok := dress.Field("Fit")
	require.True(t, ok)

	assert.Equal(t, map[string]int{"slim_fit": 0, "regular_fit": 1, "relaxed_fit": 3}, fit.Ranks)
	assert.Equal(t, []string{"slim_fit", "regular_fit", "relaxed_fit"}, fit.Options())
}

func TestSeasonFor(t *testing.T) {
	reg := loadDefaults(t)
	dress, _ := reg.Get(CategoryDress)

	want := map[int]Season{0: SeasonSpring, 1: SeasonSummer, 2: SeasonWinter, 3: SeasonAutumn}
	for label, season := range want {
		got, err := dress.SeasonFor(label)
		require.NoError(t, err)
		assert.Equal(t, season, got)
	}

	_, err := dress.SeasonFor(4)
	assert.True(t, errors.Is(err, errors.ErrUnknownLabel))
}

func TestCanonicalize(t *testing.T) {
	reg := loadDefaults(t)
	jacket, _ := reg.Get(CategoryJacket)

	got := jacket.Canonicalize(AttributeRecord{
		"Water Repellent": "Yes",
		"Fit":             "  slim_fit ",
		"Colour":          "red",
	})

	assert.Equal(t, AttributeRecord{
		"Water_Repellent": "Yes",
		"Fit":             "slim_fit",
		"Colour":          "red",
	}, got)

	both := jacket.Canonicalize(AttributeRecord{
		"Water Repellent": "No",
		"Water_Repellent": "Yes",
	})
	assert.Equal(t, "Yes", both["Water_Repellent"])
}

func TestValidate(t *testing.T) {
	reg := loadDefaults(t)
	dress, _ := reg.Get(CategoryDress)

	t.Run("valid record", func(t *testing.T) {
		err := dress.Validate(AttributeRecord{
			"Fit": "slim_fit", "Length": "mini", "Sleeve Length": "sleeveless",
			"Collar": "no_collar", "Breathable": "Yes",
		})
		assert.NoError(t, err)
	})

	t.Run("missing required ordinal", func(t *testing.T) {
		err := dress.Validate(AttributeRecord{"Fit": "slim_fit", "Length": "mini"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrMissingRequiredField))

		var fe *errors.FieldError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, "Sleeve Length", fe.Field)
	})

	t.Run("value outside enumeration", func(t *testing.T) {
		err := dress.Validate(AttributeRecord{
			"Fit": "slim_fit", "Length": "mini", "Sleeve Length": "sleeveless",
			"Collar": "mandarin",
		})
		assert.True(t, errors.Is(err, errors.ErrInvalidValue))
	})

	t.Run("unknown attribute", func(t *testing.T) {
		err := dress.Validate(AttributeRecord{
			"Fit": "slim_fit", "Length": "mini", "Sleeve Length": "sleeveless",
			"Outerwear Type": "coat",
		})
		assert.True(t, errors.Is(err, errors.ErrInvalidValue))
	})

	t.Run("ordinal values are left to the encoder", func(t *testing.T) {
		err := dress.Validate(AttributeRecord{
			"Fit": "unknown_fit", "Length": "mini", "Sleeve Length": "sleeveless",
		})
		assert.NoError(t, err)
	})
}

func TestLoadSchema_InlineColumnsAndErrors(t *testing.T) {
	fsys := fstest.MapFS{
		"tiny.yaml": {Data: []byte(`
category: dress
columns: [Fit, Collar_b]
fields:
  - name: Fit
    kind: ordinal
    ranks: {a: 0}
  - name: Collar
    kind: categorical
    values: [b, a]
`)},
		"bad.yaml": {Data: []byte(`
category: dress
columns: [Fit, Fit]
fields: []
`)},
	}

	s, err := LoadSchema(fsys, "tiny.yaml")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Width())
	assert.Equal(t, DefaultLabels, s.Labels)
	assert.Nil(t, Audit(s))

	_, err = LoadSchema(fsys, "bad.yaml")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = LoadRegistry(fstest.MapFS{})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestAudit_ReportsDrift(t *testing.T) {
	s := &Schema{
		Category: CategoryJacket,
		Columns:  []string{"Fit", "Collar_notch", "Collar_mandarin"},
		Fields: []Field{
			{Name: "Fit", Kind: KindOrdinal, Ranks: map[string]int{"slim_fit": 0}},
			{Name: "Collar", Kind: KindCategorical, Values: []string{"band", "notch", "point"}},
			{Name: "Breathable", Kind: KindBoolean},
		},
	}
	require.NoError(t, s.Compile())

	drift := Audit(s)
	require.NotNil(t, drift)
	assert.Equal(t, []string{"Collar_mandarin"}, drift.UnproducibleColumns)
	assert.Equal(t, []string{"Collar=point", "Breathable"}, drift.UnencodedValues)
	assert.True(t, errors.Is(drift, errors.ErrSchemaDrift))
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Dress ")
	require.NoError(t, err)
	assert.Equal(t, CategoryDress, c)

	_, err = ParseCategory("skirt")
	assert.True(t, errors.Is(err, errors.ErrUnknownCategory))
}
