package domain

import (
	"strings"
	"testing"
)

func hasReason(reasons []SpamReason, want SpamReason) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}

func TestContentReasons(t *testing.T) {
	tests := []struct {
		name string
		text string
		want SpamReason
	}{
		{"long message", strings.Repeat("ab", 251), ReasonLong},
		{"three links", "see http://a.io https://b.io http://c.io", ReasonManyLinks},
		{"joined links", "see http://a.io,http://b.io,http://c.io", ReasonManyLinks},
		{"links without separators", "http://a.iohttp://b.iohttps://c.io", ReasonManyLinks},
		{"shouting", "THISISLOUDTEXT here", ReasonShouting},
		{"repeated chars", "hello " + strings.Repeat("!", 10), ReasonRepeated},
		{"short repeat", "nooooo", ReasonShortRepeat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reasons := DefaultSpamRules.ContentReasons(tt.text)
			if !hasReason(reasons, tt.want) {
				t.Errorf("ContentReasons(%q) = %v, want %s", tt.text, reasons, tt.want)
			}
		})
	}
}

func TestContentReasons_Clean(t *testing.T) {
	clean := []string{
		"",
		"hi there, how are you?",
		"check https://example.com and https://example.org",
		"NASA launched today",
		strings.Repeat("éa", 250),
	}
	for _, text := range clean {
		if reasons := DefaultSpamRules.ContentReasons(text); len(reasons) != 0 {
			t.Errorf("ContentReasons(%q) = %v, want none", text, reasons)
		}
	}
}

func TestLongestRun(t *testing.T) {
	cases := map[string]int{
		"":          0,
		"a":         1,
		"abc":       1,
		"aabbb":     3,
		"xxxxxxxxy": 8,
		"ééé":       3,
	}
	for in, want := range cases {
		if got := LongestRun(in); got != want {
			t.Errorf("LongestRun(%q) = %d, want %d", in, got, want)
		}
	}
}
