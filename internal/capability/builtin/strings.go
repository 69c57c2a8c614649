package builtin

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// Strings returns unicode-aware text helpers.
func Strings() map[string]any {
	return map[string]any{
		"upper": func(s string) string {
			return cases.Upper(language.Und).String(s)
		},
		"lower": func(s string) string {
			return cases.Lower(language.Und).String(s)
		},
		"title": func(s string, lang ...string) string {
			return cases.Title(parseTag(lang)).String(s)
		},
		"normalize":    normalizeForm,
		"stripAccents": stripAccents,
		"slug":         slug,
		"truncate":     truncate,
		"words": func(s string) []string {
			return strings.Fields(s)
		},
		"length": func(s string) int {
			return utf8.RuneCountInString(s)
		},
	}
}

func parseTag(lang []string) language.Tag {
	if len(lang) == 0 || lang[0] == "" {
		return language.Und
	}
	tag, err := language.Parse(lang[0])
	if err != nil {
		return language.Und
	}
	return tag
}

func normalizeForm(s string, form ...string) (string, error) {
	f := "NFC"
	if len(form) > 0 && form[0] != "" {
		f = strings.ToUpper(form[0])
	}

	switch f {
	case "NFC":
		return norm.NFC.String(s), nil
	case "NFD":
		return norm.NFD.String(s), nil
	case "NFKC":
		return norm.NFKC.String(s), nil
	case "NFKD":
		return norm.NFKD.String(s), nil
	default:
		return "", fmt.Errorf("unknown normalization form %q", f)
	}
}

func stripAccents(s string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return "", fmt.Errorf("failed to strip accents: %w", err)
	}
	return out, nil
}

func slug(s string) (string, error) {
	plain, err := stripAccents(s)
	if err != nil {
		return "", err
	}
	lowered := cases.Lower(language.Und).String(plain)
	return strings.Trim(slugSeparators.ReplaceAllString(lowered, "-"), "-"), nil
}

// truncate shortens s to at most max runes, ending with suffix (default "...")
// when anything was cut.
func truncate(s string, max int, suffix ...string) string {
	if max < 0 {
		max = 0
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}

	tail := "..."
	if len(suffix) > 0 {
		tail = suffix[0]
	}

	keep := max - utf8.RuneCountInString(tail)
	if keep <= 0 {
		return string([]rune(tail)[:max])
	}
	return string([]rune(s)[:keep]) + tail
}
