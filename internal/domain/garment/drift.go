package garment

import (
	"seasoncast/pkg/errors"
)

// Audit compares what the schema's enumerations can produce with the trained
// column list. It returns nil when every trained column is producible and every
// non-baseline value has a column of its own.
func Audit(s *Schema) *errors.DriftError {
	producible := make(map[string]struct{}, len(s.Columns))
	report := &errors.DriftError{Category: s.Category.String()}

	for i := range s.Fields {
		f := &s.Fields[i]
		switch f.Kind {
		case KindOrdinal, KindBoolean:
			producible[f.Name] = struct{}{}
			if _, ok := s.ColumnIndex(f.Name); !ok {
				report.UnencodedValues = append(report.UnencodedValues, f.Name)
			}
		case KindCategorical:
			for _, v := range f.Values {
				col := IndicatorColumn(f.Name, v)
				producible[col] = struct{}{}
				if _, ok := s.ColumnIndex(col); !ok && v != f.Baseline {
					report.UnencodedValues = append(report.UnencodedValues, f.Name+"="+v)
				}
			}
		}
	}

	for _, col := range s.Columns {
		if _, ok := producible[col]; !ok {
			report.UnproducibleColumns = append(report.UnproducibleColumns, col)
		}
	}

	if len(report.UnproducibleColumns) == 0 && len(report.UnencodedValues) == 0 {
		return nil
	}
	return report
}
