// Package parser turns raw export rows into typed records.
package parser

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var currencyTokens = []string{"US$", "R$", "BRL", "USD", "$", "€", "£"}

// CoerceNumber parses locale formatted numeric text ("R$ 1.234,56",
// "1,234.56", "12.5%", "1.2K"). Anything unparseable yields 0.
//
// A single '.' is always a decimal point. A single ',' is a thousands
// separator only when exactly three digits follow it and the integer part
// does not start with 0. When both appear the last one is the decimal
// separator.
func CoerceNumber(raw string) float64 {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return 0
	}
	for _, tok := range currencyTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '%' || r == '\'' {
			return -1
		}
		return r
	}, s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	switch {
	case strings.HasPrefix(s, "-"):
		negative = !negative
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	multiplier := 1.0
	if n := len(s); n > 1 {
		switch s[n-1] {
		case 'K':
			multiplier = 1e3
		case 'M':
			multiplier = 1e6
		case 'B':
			multiplier = 1e9
		}
		if multiplier != 1 {
			s = s[:n-1]
		}
	}

	v, err := strconv.ParseFloat(normalizeSeparators(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	v *= multiplier
	if negative {
		v = -v
	}
	return v
}

func normalizeSeparators(s string) string {
	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case commas > 1:
		return strings.ReplaceAll(s, ",", "")
	case commas == 1:
		// "0,850" is a decimal: a thousands group never follows a leading zero.
		idx := strings.IndexByte(s, ',')
		if idx > 0 && s[0] != '0' && len(s)-idx-1 == 3 {
			return strings.Replace(s, ",", "", 1)
		}
		return strings.Replace(s, ",", ".", 1)
	case dots > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// CoerceCount parses a non-negative integer count. Negative values clamp to 0.
func CoerceCount(raw string) int64 {
	v := CoerceNumber(raw)
	if v <= 0 {
		return 0
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Round(v))
}

// CoerceMoney parses a non-negative currency amount rounded to cents.
func CoerceMoney(raw string) float64 {
	v := CoerceNumber(raw)
	if v <= 0 {
		return 0
	}
	return math.Round(v*100) / 100
}

// CoerceRatio parses a non-negative ratio such as ROAS.
func CoerceRatio(raw string) float64 {
	v := CoerceNumber(raw)
	if v <= 0 {
		return 0
	}
	return v
}

// CoerceRate parses a rate into [0,1]. Percent text or values above 1 are
// treated as percentages.
func CoerceRate(raw string) float64 {
	v := CoerceNumber(raw)
	if strings.Contains(raw, "%") || v > 1 {
		v /= 100
	}
	return math.Min(math.Max(v, 0), 1)
}

// CoerceText trims and collapses internal whitespace.
func CoerceText(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// CoerceHandle returns a creator handle without the leading '@'. Profile URLs
// are reduced to their handle.
func CoerceHandle(raw string) string {
	s := CoerceText(raw)
	if idx := strings.LastIndex(s, "/@"); idx >= 0 {
		s = s[idx+2:]
		if end := strings.IndexAny(s, "/?#"); end >= 0 {
			s = s[:end]
		}
	}
	s = strings.TrimLeft(s, "@")
	return strings.ReplaceAll(s, " ", "")
}

// CoerceBool accepts the usual yes/no spellings found in exports.
func CoerceBool(raw string) (value bool, ok bool) {
	switch strings.ToLower(CoerceText(raw)) {
	case "1", "true", "yes", "y", "sim", "s", "x", "new", "novo":
		return true, true
	case "0", "false", "no", "n", "não", "nao":
		return false, true
	}
	return false, false
}

// FormatDuration renders numeric seconds as m:ss (or h:mm:ss). Text that is
// already formatted is returned cleaned but otherwise unchanged.
func FormatDuration(raw string) string {
	text := CoerceText(raw)
	seconds, err := strconv.ParseFloat(text, 64)
	if err != nil || seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return text
	}
	total := int64(math.Round(seconds))
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return strconv.FormatInt(h, 10) + ":" + pad2(m) + ":" + pad2(s)
	}
	return strconv.FormatInt(m, 10) + ":" + pad2(s)
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"2006/01/02",
	"02-01-2006",
}

// ParseDate accepts spreadsheet serial dates and the common text layouts.
func ParseDate(raw string) (time.Time, bool) {
	text := CoerceText(raw)
	if text == "" {
		return time.Time{}, false
	}
	if serial, err := strconv.ParseFloat(text, 64); err == nil {
		if serial <= 0 {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Fold lowercases s and strips accents, keeping letters, digits and single spaces.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}

	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(out) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

// FoldHeader is Fold without spaces, used to match column headers.
func FoldHeader(s string) string {
	return strings.ReplaceAll(Fold(s), " ", "")
}

// Matches reports whether every word of query appears in one of fields,
// ignoring case and accents. An empty query matches everything.
func Matches(query string, fields ...string) bool {
	words := strings.Fields(Fold(query))
	if len(words) == 0 {
		return true
	}
	haystack := Fold(strings.Join(fields, " "))
	for _, w := range words {
		if !strings.Contains(haystack, w) {
			return false
		}
	}
	return true
}
