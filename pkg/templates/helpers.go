package templates

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
)

// EscapeMarkdown escapes the characters Telegram's legacy Markdown mode treats as entities
func EscapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"`", "\\`",
		"[", "\\[",
	)
	return replacer.Replace(text)
}

// SafeText drops invalid UTF-8 and escapes Markdown entities
func SafeText(text string) string {
	return EscapeMarkdown(strings.ToValidUTF8(text, ""))
}

// Code wraps text in an inline code span. Backticks cannot be escaped inside
// a span in legacy Markdown, so they are replaced.
func Code(text string) string {
	return "`" + strings.ReplaceAll(strings.ToValidUTF8(text, ""), "`", "'") + "`"
}

// CodeJoin renders every item as a code span joined by sep
func CodeJoin(items []string, sep string) string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = Code(item)
	}
	return strings.Join(out, sep)
}

// Percent formats a probability in [0,1] as a percentage
func Percent(p float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, p*100)
}

// Funcs is the function map available to every template
func Funcs() template.FuncMap {
	return template.FuncMap{
		"escape":   SafeText,
		"code":     Code,
		"codeJoin": CodeJoin,
		"pct":      Percent,
		"comma":    humanize.Comma,
		"ago":      func(t time.Time) string { return humanize.Time(t) },
	}
}
