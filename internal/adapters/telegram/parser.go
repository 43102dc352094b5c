package telegram

import (
	"strings"

	"seasoncast/internal/domain/garment"
	"seasoncast/pkg/telegram"
)

// ParsePredictArgs reads "/predict <category>" arguments.
// The category comes first; each following line is "Field: value" or "Field=value".
// Several pairs on one line may be separated with ";".
func ParsePredictArgs(args string) (garment.Category, garment.AttributeRecord, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return "", nil, telegram.ValidationError{Field: "category", Message: "Usage: /predict <category> followed by one `Field: value` per line"}
	}

	head, rest, _ := strings.Cut(args, "\n")
	catToken, inline, _ := strings.Cut(strings.TrimSpace(head), " ")

	category, err := garment.ParseCategory(catToken)
	if err != nil {
		return "", nil, telegram.ValidationError{Field: "category", Message: "Unknown category `" + catToken + "`. Try /categories"}
	}

	record := garment.AttributeRecord{}
	for _, line := range append([]string{inline}, strings.Split(rest, "\n")...) {
		for _, pair := range strings.Split(line, ";") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			field, value, ok := cutPair(pair)
			if !ok {
				return "", nil, telegram.ValidationError{Field: pair, Message: "Cannot read `" + pair + "`, expected `Field: value`"}
			}
			record[field] = value
		}
	}

	if len(record) == 0 {
		return "", nil, telegram.ValidationError{Field: "attributes", Message: "No attributes given. See /fields " + category.String()}
	}
	return category, record, nil
}

func cutPair(s string) (string, string, bool) {
	sep := strings.IndexAny(s, ":=")
	if sep <= 0 {
		return "", "", false
	}
	field := strings.TrimSpace(s[:sep])
	value := strings.TrimSpace(s[sep+1:])
	if field == "" || value == "" {
		return "", "", false
	}
	return field, value, true
}
