package analyzer

import (
	"strings"
	"testing"
)

func TestTokenizer_Tokenize(t *testing.T) {
	tok := NewTokenizer()

	tokens := tok.Tokenize("The Quick brown fox, and a DOG!")
	want := []string{"quick", "brown", "fox", "dog"}
	if strings.Join(tokens, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, tokens)
	}
}

func TestTokenizer_Unicode(t *testing.T) {
	tok := NewTokenizer()

	tokens := tok.Tokenize("café naïve_résumé 42")
	if len(tokens) != 3 {
		t.Errorf("expected 3 tokens, got %d: %v", len(tokens), tokens)
	}
}

func TestTokenizer_Features(t *testing.T) {
	tok := NewTokenizer()

	features := tok.Features("vector search")
	has := func(f string) bool {
		for _, x := range features {
			if x == f {
				return true
			}
		}
		return false
	}
	for _, f := range []string{"w:vector", "w:search", "b:vector_search", "c:<ve"} {
		if !has(f) {
			t.Errorf("expected feature %q in %v", f, features)
		}
	}
}

func TestTokenizer_FeaturesWithoutWords(t *testing.T) {
	tok := NewTokenizer()

	if features := tok.Features("?! ?!"); len(features) == 0 {
		t.Error("expected character features for punctuation-only text")
	}
	if features := tok.Features("   "); len(features) != 0 {
		t.Errorf("expected no features for blank text, got %v", features)
	}
}
