package mapping

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// cascade is an ordered list of patterns, most specific first. The first hit
// wins: its first non-empty capture group, else the whole match.
type cascade []*regexp.Regexp

func newCascade(patterns ...string) cascade {
	out := make(cascade, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile("(?i)"+p))
	}
	return out
}

func (c cascade) find(text string) (string, bool) {
	for _, re := range c {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value := m[0]
		for _, group := range m[1:] {
			if strings.TrimSpace(group) != "" {
				value = group
				break
			}
		}
		value = cleanValue(value)
		if value != "" {
			return value, true
		}
	}
	return "", false
}

func cleanValue(v string) string {
	return strings.Trim(strings.TrimSpace(v), " ,;:-")
}

const dateToken = `(\d{1,2}\s+[A-Za-z]{3,9}\.?,?\s+\d{4}|\d{1,2}[-/]\d{1,2}[-/]\d{4}|\d{4}-\d{1,2}-\d{1,2}|[A-Za-z]{3,9}\.?\s+\d{1,2},?\s+\d{4})`

func dateCascade(labels ...string) cascade {
	patterns := make([]string, 0, len(labels))
	for _, label := range labels {
		patterns = append(patterns, label+`\s*[:\-]?\s*(?:on\s+|by\s+)?`+dateToken)
	}
	return newCascade(patterns...)
}

var dateLayouts = []string{
	"2 January 2006",
	"2-1-2006",
	"2/1/2006",
	"2006-1-2",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January, 2006",
}

var abbrevDot = regexp.MustCompile(`([A-Za-z])\.`)

// parseDate tries every supported layout in order and returns the first that parses.
func parseDate(raw string) (*time.Time, bool) {
	s := strings.Join(strings.Fields(raw), " ")
	s = abbrevDot.ReplaceAllString(s, "$1")
	if s == "" {
		return nil, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, true
		}
	}
	return nil, false
}

func findDate(c cascade, text string) *time.Time {
	for _, re := range c {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if t, ok := parseDate(m[len(m)-1]); ok {
				return t
			}
		}
	}
	return nil
}

var (
	numericCell   = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)
	numberToken   = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	currencyNoise = regexp.MustCompile(`(?i)\b(?:` + isoCurrencyAlternation + `)\b|[$€£﷼]`)
)

// parseNumber strips currency markers and thousands separators and takes the
// first numeric token.
func parseNumber(raw string) (float64, bool) {
	s := currencyNoise.ReplaceAllString(raw, "")
	s = strings.ReplaceAll(s, ",", "")
	tok := numberToken.FindString(s)
	if tok == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// isNumericCell reports whether the whole cell is a number once currency
// markers, separators and spaces are removed. Percentages do not count.
func isNumericCell(raw string) bool {
	s := currencyNoise.ReplaceAllString(raw, "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	return numericCell.MatchString(s)
}
