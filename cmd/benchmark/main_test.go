package main

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPreviewKeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("é", 200)

	got := preview(text, 150)
	if !utf8.ValidString(got) {
		t.Fatalf("preview produced invalid UTF-8: %q", got)
	}
	if want := strings.Repeat("é", 150) + "..."; got != want {
		t.Errorf("expected 150 runes plus ellipsis, got %d runes", utf8.RuneCountInString(got))
	}
}

func TestPreviewShortText(t *testing.T) {
	if got := preview("line one\nline two", 150); got != "line one line two" {
		t.Errorf("unexpected preview %q", got)
	}
}

func TestRating(t *testing.T) {
	cases := map[float64]string{0.1: "HIGH", 0.9: "GOOD", 1.1: "OK", 1.9: "LOW"}
	for distance, want := range cases {
		if got := rating(distance); got != want {
			t.Errorf("rating(%v) = %s, want %s", distance, got, want)
		}
	}
}
