package parser

import (
	"strconv"
	"testing"
	"time"
)

func TestCoerceNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
	}{
		{name: "plain integer", input: "1500", expected: 1500},
		{name: "brl currency", input: "R$ 1.234,56", expected: 1234.56},
		{name: "us thousands", input: "1,234.56", expected: 1234.56},
		{name: "comma thousands only", input: "12,345", expected: 12345},
		{name: "comma decimal", input: "12,5", expected: 12.5},
		{name: "zero comma three digits", input: "0,850", expected: 0.85},
		{name: "negative zero comma", input: "-0,125", expected: -0.125},
		{name: "dot decimal", input: "1.234", expected: 1.234},
		{name: "many dots", input: "1.234.567", expected: 1234567},
		{name: "many commas", input: "1,234,567", expected: 1234567},
		{name: "percent", input: "12.5%", expected: 12.5},
		{name: "thousand suffix", input: "1.2K", expected: 1200},
		{name: "million suffix", input: "R$3,5M", expected: 3500000},
		{name: "negative", input: "-50", expected: -50},
		{name: "accounting negative", input: "(30)", expected: -30},
		{name: "brl code", input: "99,90 BRL", expected: 99.9},
		{name: "nbsp", input: "R$ 1.000,00", expected: 1000},
		{name: "empty", input: "", expected: 0},
		{name: "garbage", input: "n/a", expected: 0},
		{name: "dash placeholder", input: "-", expected: 0},
		{name: "infinity rejected", input: "Inf", expected: 0},
		{name: "nan rejected", input: "NaN", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoerceNumber(tt.input); got != tt.expected {
				t.Fatalf("CoerceNumber(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCoerceNumberIdempotent(t *testing.T) {
	inputs := []string{
		"1500", "R$ 1.234,56", "1,234.56", "12,345", "12,5", "0.001", "-50",
		"3.5M", "US$ 7", "1.234.567,89", "99%", "0", "123456789.125",
	}
	for _, input := range inputs {
		first := CoerceNumber(input)
		second := CoerceNumber(strconv.FormatFloat(first, 'f', -1, 64))
		if first != second {
			t.Fatalf("CoerceNumber not idempotent for %q: %v then %v", input, first, second)
		}
	}
}

func TestCoerceCountAndMoneyClampNegative(t *testing.T) {
	if got := CoerceCount("-50"); got != 0 {
		t.Fatalf("CoerceCount(-50) = %d, want 0", got)
	}
	if got := CoerceCount("1.234,6"); got != 1235 {
		t.Fatalf("CoerceCount(1.234,6) = %d, want 1235", got)
	}
	if got := CoerceMoney("R$ -10,00"); got != 0 {
		t.Fatalf("CoerceMoney negative = %v, want 0", got)
	}
	if got := CoerceMoney("R$ 10,555"); got != 10555 {
		t.Fatalf("CoerceMoney thousands = %v, want 10555", got)
	}
	if got := CoerceMoney("R$ 0,990"); got != 0.99 {
		t.Fatalf("CoerceMoney(R$ 0,990) = %v, want 0.99", got)
	}
	if got := CoerceRatio("0,850"); got != 0.85 {
		t.Fatalf("CoerceRatio(0,850) = %v, want 0.85", got)
	}
	if got := CoerceMoney("10.556"); got != 10.56 {
		t.Fatalf("CoerceMoney rounding = %v, want 10.56", got)
	}
}

func TestCoerceRate(t *testing.T) {
	tests := map[string]float64{
		"0.35":  0.35,
		"0,125": 0.125,
		"35%":   0.35,
		"35":    0.35,
		"1":     1,
		"250":   1,
		"-3":    0,
		"":      0,
	}
	for input, want := range tests {
		if got := CoerceRate(input); got != want {
			t.Fatalf("CoerceRate(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestCoerceHandle(t *testing.T) {
	tests := map[string]string{
		"@ana.silva":                          "ana.silva",
		"  ana  ":                             "ana",
		"https://www.tiktok.com/@bia/video/1": "bia",
		"tiktok.com/@caio?lang=pt":            "caio",
		"":                                    "",
	}
	for input, want := range tests {
		if got := CoerceHandle(input); got != want {
			t.Fatalf("CoerceHandle(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCoerceBool(t *testing.T) {
	for _, yes := range []string{"Sim", "yes", "TRUE", "1", "x"} {
		if v, ok := CoerceBool(yes); !ok || !v {
			t.Fatalf("CoerceBool(%q) = %v,%v, want true,true", yes, v, ok)
		}
	}
	for _, no := range []string{"Não", "no", "0"} {
		if v, ok := CoerceBool(no); !ok || v {
			t.Fatalf("CoerceBool(%q) = %v,%v, want false,true", no, v, ok)
		}
	}
	if _, ok := CoerceBool("maybe"); ok {
		t.Fatalf("CoerceBool(maybe) should not be ok")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[string]string{
		"35":    "0:35",
		"75":    "1:15",
		"3725":  "1:02:05",
		"00:42": "00:42",
		"":      "",
	}
	for input, want := range tests {
		if got := FormatDuration(input); got != want {
			t.Fatalf("FormatDuration(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	for _, input := range []string{"2024-03-15", "15/03/2024", "45366"} {
		got, ok := ParseDate(input)
		if !ok {
			t.Fatalf("ParseDate(%q) failed", input)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseDate(%q) = %v, want %v", input, got, want)
		}
	}
	if _, ok := ParseDate("soon"); ok {
		t.Fatalf("ParseDate(soon) should fail")
	}
}

func TestFoldAndMatches(t *testing.T) {
	if got := FoldHeader("Revenue (R$)"); got != "revenuer" {
		t.Fatalf("FoldHeader = %q, want revenuer", got)
	}
	if got := FoldHeader("Preço Médio"); got != "precomedio" {
		t.Fatalf("FoldHeader = %q, want precomedio", got)
	}
	if !Matches("garrafa termica", "Garrafa Térmica Inox 1L") {
		t.Fatalf("expected accent-insensitive match")
	}
	if Matches("garrafa azul", "Garrafa Térmica Inox") {
		t.Fatalf("every query word must match")
	}
	if !Matches("  ", "anything") {
		t.Fatalf("empty query matches everything")
	}
}
