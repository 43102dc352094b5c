package testsupport

import (
	"seasoncast/internal/domain/garment"
)

// RecordFixture builds attribute records for tests
type RecordFixture struct {
	record garment.AttributeRecord
}

// NewDressFixture returns a complete dress record whose categoricals are all baselines
func NewDressFixture() *RecordFixture {
	return &RecordFixture{record: garment.AttributeRecord{
		"Fit":             "slim_fit",
		"Length":          "mini",
		"Sleeve Length":   "sleeveless",
		"Collar":          "Basic",
		"Neckline":        "collared_neck",
		"Hemline":         "asymmetrical_hem",
		"Style":           "a_line",
		"Sleeve Style":    "balloon",
		"Pattern":         "animal_prints",
		"Product Colour":  "black",
		"Material":        "Cotton",
		"Breathable":      garment.AnswerNo,
		"Lightweight":     garment.AnswerNo,
		"Water_Repellent": garment.AnswerNo,
	}}
}

// NewJacketFixture returns a minimal valid jacket record
func NewJacketFixture() *RecordFixture {
	return &RecordFixture{record: garment.AttributeRecord{
		"Fit":           "regular_fit",
		"Length":        "short",
		"Sleeve Length": "long_sleeve",
	}}
}

// With sets one attribute
func (f *RecordFixture) With(field, value string) *RecordFixture {
	f.record[field] = value
	return f
}

// Without removes one attribute
func (f *RecordFixture) Without(field string) *RecordFixture {
	delete(f.record, field)
	return f
}

// Build returns a copy of the record
func (f *RecordFixture) Build() garment.AttributeRecord {
	return f.record.Clone()
}

// DefaultRegistry loads the shipped schemas or panics
func DefaultRegistry() *garment.Registry {
	reg, err := garment.LoadRegistry(garment.DefaultSchemaFS())
	if err != nil {
		panic(err)
	}
	return reg
}
