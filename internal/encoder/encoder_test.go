package encoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seasoncast/internal/domain/garment"
	"seasoncast/pkg/errors"
)

func schemas(t *testing.T) *garment.Registry {
	t.Helper()
	reg, err := garment.LoadRegistry(garment.DefaultSchemaFS())
	require.NoError(t, err)
	return reg
}

func dressSchema(t *testing.T) *garment.Schema {
	t.Helper()
	s, err := schemas(t).Get(garment.CategoryDress)
	require.NoError(t, err)
	return s
}

func jacketSchema(t *testing.T) *garment.Schema {
	t.Helper()
	s, err := schemas(t).Get(garment.CategoryJacket)
	require.NoError(t, err)
	return s
}

func dressRecord() garment.AttributeRecord {
	return garment.AttributeRecord{
		"Fit":             "slim_fit",
		"Length":          "mini",
		"Sleeve Length":   "sleeveless",
		"Collar":          "no_collar",
		"Neckline":        "collared_neck",
		"Hemline":         "asymmetrical_hem",
		"Style":           "a_line",
		"Sleeve Style":    "balloon",
		"Pattern":         "animal_prints",
		"Product Colour":  "black",
		"Material":        "Cotton",
		"Breathable":      "Yes",
		"Lightweight":     "No",
		"Water_Repellent": "No",
	}
}

func value(t *testing.T, v *FeatureVector, column string) float64 {
	t.Helper()
	got, ok := v.Get(column)
	require.True(t, ok, "column %q missing", column)
	return got
}

func TestEncode_DressScenario(t *testing.T) {
	schema := dressSchema(t)

	res, err := New(DriftFail).Encode(schema, dressRecord())
	require.NoError(t, err)
	v := res.Vector

	assert.Equal(t, schema.Width(), v.Len())
	assert.Equal(t, 0.0, value(t, v, "Fit"))
	assert.Equal(t, 0.0, value(t, v, "Length"))
	assert.Equal(t, 0.0, value(t, v, "Sleeve Length"))
	assert.Equal(t, 1.0, value(t, v, "Breathable"))
	assert.Equal(t, 0.0, value(t, v, "Lightweight"))
	assert.Equal(t, 0.0, value(t, v, "Water_Repellent"))

	// Every other categorical value in the record is its field's baseline
	assert.Equal(t, map[string]float64{
		"Breathable":       1,
		"Collar_no_collar": 1,
	}, v.NonZero())
	assert.Empty(t, res.Unencoded)
}

func TestEncode_LengthMatchesSchema(t *testing.T) {
	enc := New(DriftWarn)
	for _, schema := range []*garment.Schema{dressSchema(t), jacketSchema(t)} {
		record := garment.AttributeRecord{}
		for _, f := range schema.FieldsOfKind(garment.KindOrdinal) {
			record[f.Name] = f.Options()[0]
		}

		res, err := enc.Encode(schema, record)
		require.NoError(t, err, schema.Category)
		assert.Equal(t, len(schema.Columns), res.Vector.Len())
		assert.Equal(t, schema.Columns, res.Vector.Columns)
	}
}

func TestEncode_Idempotent(t *testing.T) {
	schema := dressSchema(t)
	enc := New(DriftWarn)
	record := dressRecord()
	record["Pattern"] = "polka_dot"
	record["Material"] = "Silk"

	first, err := enc.Encode(schema, record)
	require.NoError(t, err)
	second, err := enc.Encode(schema, record)
	require.NoError(t, err)

	assert.Equal(t, first.Vector.Values, second.Vector.Values)
	assert.Equal(t, dressRecord()["Fit"], record["Fit"], "input record untouched")
}

func TestEncode_OrdinalRanks(t *testing.T) {
	enc := New(DriftWarn)

	for _, schema := range []*garment.Schema{dressSchema(t), jacketSchema(t)} {
		for _, f := range schema.FieldsOfKind(garment.KindOrdinal) {
			for val, rank := range f.Ranks {
				record := garment.AttributeRecord{}
				for _, o := range schema.FieldsOfKind(garment.KindOrdinal) {
					record[o.Name] = o.Options()[0]
				}
				record[f.Name] = val

				res, err := enc.Encode(schema, record)
				require.NoError(t, err)
				assert.Equal(t, float64(rank), value(t, res.Vector, f.Name), "%s %s=%s", schema.Category, f.Name, val)
			}
		}
	}
}

func TestEncode_DressRelaxedFitIsThree(t *testing.T) {
	record := dressRecord()
	record["Fit"] = "relaxed_fit"

	res, err := New(DriftWarn).Encode(dressSchema(t), record)
	require.NoError(t, err)
	assert.Equal(t, 3.0, value(t, res.Vector, "Fit"))
}

func TestEncode_Booleans(t *testing.T) {
	schema := jacketSchema(t)
	base := garment.AttributeRecord{"Fit": "regular_fit", "Length": "short", "Sleeve Length": "long_sleeve"}

	tests := []struct {
		name  string
		value string
		set   bool
		want  float64
	}{
		{"yes", "Yes", true, 1},
		{"no", "No", true, 0},
		{"unset", "", false, 0},
		{"lower case yes is not Yes", "yes", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := base.Clone()
			if tt.set {
				record["Breathable"] = tt.value
				record["Lightweight"] = tt.value
				record["Water Repellent"] = tt.value
			}

			res, err := New(DriftWarn).Encode(schema, record)
			require.NoError(t, err)
			for _, f := range []string{"Breathable", "Lightweight", "Water_Repellent"} {
				assert.Equal(t, tt.want, value(t, res.Vector, f), f)
			}
		})
	}
}

func TestEncode_BaselineYieldsZeroIndicators(t *testing.T) {
	enc := New(DriftFail)
	for _, schema := range []*garment.Schema{dressSchema(t), jacketSchema(t)} {
		record := garment.AttributeRecord{}
		for _, o := range schema.FieldsOfKind(garment.KindOrdinal) {
			record[o.Name] = o.Options()[0]
		}
		for _, f := range schema.FieldsOfKind(garment.KindCategorical) {
			record[f.Name] = f.Baseline
		}

		res, err := enc.Encode(schema, record)
		require.NoError(t, err)
		for _, f := range schema.FieldsOfKind(garment.KindCategorical) {
			for _, v := range f.Values {
				if got, ok := res.Vector.Get(garment.IndicatorColumn(f.Name, v)); ok {
					assert.Zero(t, got, "%s %s", schema.Category, f.Name)
				}
			}
		}
	}
}

func TestEncode_EveryNonBaselineValueFiresItsColumn(t *testing.T) {
	schema := jacketSchema(t)
	enc := New(DriftFail)

	for _, f := range schema.FieldsOfKind(garment.KindCategorical) {
		for _, v := range f.Values {
			if v == f.Baseline {
				continue
			}
			record := garment.AttributeRecord{"Fit": "slim_fit", "Length": "long", "Sleeve Length": "sleeveless", f.Name: v}

			res, err := enc.Encode(schema, record)
			require.NoError(t, err)
			assert.Equal(t, 1.0, value(t, res.Vector, garment.IndicatorColumn(f.Name, v)))

			ones := 0
			for _, x := range res.Vector.Values {
				if x == 1 {
					ones++
				}
			}
			// one indicator plus Fit=2 and Length=2 are not ones, Sleeve Length=0
			assert.Equal(t, 1, ones, "%s=%s", f.Name, v)
		}
	}
}

func TestEncode_UnsetCategoricalFiresNothing(t *testing.T) {
	record := garment.AttributeRecord{"Fit": "regular_fit", "Length": "knee", "Sleeve Length": "long_sleeve", "Collar": ""}

	res, err := New(DriftFail).Encode(dressSchema(t), record)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Fit": 1, "Length": 1, "Sleeve Length": 4}, res.Vector.NonZero())
}

func TestEncode_UnmappedOrdinalValue(t *testing.T) {
	record := dressRecord()
	record["Fit"] = "unknown_fit"

	res, err := New(DriftWarn).Encode(dressSchema(t), record)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, errors.ErrUnmappedOrdinalValue))

	var fe *errors.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "Fit", fe.Field)
	assert.Equal(t, "unknown_fit", fe.Value)
}

func TestEncode_JacketRankNotValidForDress(t *testing.T) {
	record := dressRecord()
	record["Fit"] = "oversize_fit"

	_, err := New(DriftWarn).Encode(dressSchema(t), record)
	assert.True(t, errors.Is(err, errors.ErrUnmappedOrdinalValue))
}

func TestEncode_MissingRequiredField(t *testing.T) {
	record := dressRecord()
	delete(record, "Length")
	record["Sleeve Length"] = "  "

	_, err := New(DriftWarn).Encode(dressSchema(t), record)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingRequiredField))

	var merr *errors.MultiError
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 2)
}

func TestEncode_DriftPolicies(t *testing.T) {
	schema := dressSchema(t)
	record := dressRecord()
	record["Collar"] = "mandarin"

	t.Run("warn reports and collapses to baseline", func(t *testing.T) {
		res, err := New(DriftWarn).Encode(schema, record)
		require.NoError(t, err)
		assert.Equal(t, []string{"Collar=mandarin"}, res.Unencoded)
		assert.Equal(t, map[string]float64{"Breathable": 1}, res.Vector.NonZero())
	})

	t.Run("fail rejects", func(t *testing.T) {
		_, err := New(DriftFail).Encode(schema, record)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrSchemaDrift))

		var drift *errors.DriftError
		require.True(t, errors.As(err, &drift))
		assert.Equal(t, []string{"Collar=mandarin"}, drift.UnencodedValues)
	})
}

func TestCheckSchema(t *testing.T) {
	drifted := &garment.Schema{
		Category: garment.CategoryDress,
		Columns:  []string{"Fit", "Collar_unknown"},
		Fields: []garment.Field{
			{Name: "Fit", Kind: garment.KindOrdinal, Ranks: map[string]int{"slim_fit": 0}},
			{Name: "Collar", Kind: garment.KindCategorical, Values: []string{"Basic", "no_collar"}},
		},
	}
	require.NoError(t, drifted.Compile())

	drift, err := New(DriftIgnore).CheckSchema(drifted)
	assert.Nil(t, drift)
	assert.NoError(t, err)

	drift, err = New(DriftWarn).CheckSchema(drifted)
	require.NotNil(t, drift)
	assert.NoError(t, err)
	assert.Equal(t, []string{"Collar_unknown"}, drift.UnproducibleColumns)

	_, err = New(DriftFail).CheckSchema(drifted)
	assert.True(t, errors.Is(err, errors.ErrSchemaDrift))

	drift, err = New(DriftFail).CheckSchema(dressSchema(t))
	assert.Nil(t, drift)
	assert.NoError(t, err)
}

func TestParseDriftPolicy(t *testing.T) {
	p, err := ParseDriftPolicy(" FAIL ")
	require.NoError(t, err)
	assert.Equal(t, DriftFail, p)

	_, err = ParseDriftPolicy("panic")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
