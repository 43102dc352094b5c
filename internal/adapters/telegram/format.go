package telegram

import (
	"sort"
	"time"

	"seasoncast/internal/domain/garment"
	"seasoncast/internal/domain/prediction"
	"seasoncast/pkg/errors"
)

// Template IDs under the registry's telegram/ directory
const (
	tmplStart      = "telegram/start"
	tmplHelp       = "telegram/help"
	tmplCategories = "telegram/categories"
	tmplFields     = "telegram/fields"
	tmplPrediction = "telegram/prediction"
	tmplRejection  = "telegram/rejection"
	tmplStats      = "telegram/stats"
)

var seasonEmoji = map[garment.Season]string{
	garment.SeasonSpring: "🌱",
	garment.SeasonSummer: "☀️",
	garment.SeasonWinter: "❄️",
	garment.SeasonAutumn: "🍂",
}

type seasonLine struct {
	Emoji       string
	Season      garment.Season
	Probability float64
}

type predictionView struct {
	Emoji      string
	Season     garment.Season
	Category   garment.Category
	Confidence float64
	Ranked     []seasonLine
	Unencoded  []string
	Cached     bool
}

func newPredictionView(p *prediction.Prediction) predictionView {
	ranked := make([]seasonLine, 0, len(p.Probabilities))
	for s, prob := range p.Probabilities {
		ranked = append(ranked, seasonLine{Emoji: seasonEmoji[s], Season: s, Probability: prob})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Probability == ranked[j].Probability {
			return ranked[i].Season < ranked[j].Season
		}
		return ranked[i].Probability > ranked[j].Probability
	})

	return predictionView{
		Emoji:      seasonEmoji[p.Season],
		Season:     p.Season,
		Category:   p.Category,
		Confidence: p.Confidence,
		Ranked:     ranked,
		Unencoded:  p.Unencoded,
		Cached:     p.Cached,
	}
}

type fieldLine struct {
	Name     string
	Required bool
	Options  []string
}

type fieldsView struct {
	Category garment.Category
	Version  string
	Fields   []fieldLine
	Example  string
}

func newFieldsView(schema *garment.Schema) fieldsView {
	v := fieldsView{Category: schema.Category, Version: schema.Version}
	for i := range schema.Fields {
		f := &schema.Fields[i]
		v.Fields = append(v.Fields, fieldLine{
			Name:     f.Name,
			Required: f.Kind == garment.KindOrdinal,
			Options:  f.Options(),
		})
	}
	if len(v.Fields) > 0 && len(v.Fields[0].Options) > 0 {
		v.Example = v.Fields[0].Name + ": " + v.Fields[0].Options[0]
	}
	return v
}

type categoryLine struct {
	Category garment.Category
	Fields   int
	Width    int
}

func newCategoriesView(schemas []*garment.Schema) []categoryLine {
	out := make([]categoryLine, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, categoryLine{Category: s.Category, Fields: len(s.Fields), Width: s.Width()})
	}
	return out
}

type statsView struct {
	Since  time.Time
	Counts []prediction.SeasonCount
	Total  int64
}

func newStatsView(counts []prediction.SeasonCount, since time.Time) statsView {
	v := statsView{Since: since, Counts: counts}
	for _, c := range counts {
		v.Total += c.Count
	}
	return v
}

type problem struct {
	Field string
	Kind  string
	Value string
}

type rejectionView struct {
	Problems []problem
	Reason   string
}

// newRejectionView lists every field problem of a client error
func newRejectionView(err error) rejectionView {
	v := rejectionView{Reason: rootMessage(err)}
	for _, fe := range errors.FieldErrors(err) {
		p := problem{Field: fe.Field, Value: fe.Value, Kind: "invalid"}
		switch {
		case errors.Is(fe, errors.ErrMissingRequiredField):
			p.Kind = "missing"
		case errors.Is(fe, errors.ErrUnmappedOrdinalValue):
			p.Kind = "unmapped"
		case fe.Value == garment.UnknownAttribute:
			p.Kind = "unknown"
		}
		v.Problems = append(v.Problems, p)
	}
	return v
}

func rootMessage(err error) string {
	switch {
	case errors.Is(err, errors.ErrModelNotLoaded):
		return "no model is loaded for this category"
	case errors.Is(err, errors.ErrSchemaDrift):
		return "the model and schema are out of sync"
	case errors.Is(err, errors.ErrUnknownCategory):
		return "unknown category"
	}
	return "invalid input"
}
