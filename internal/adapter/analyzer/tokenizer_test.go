package analyzer

import (
	"reflect"
	"testing"
)

func TestTokenizer_Tokenize(t *testing.T) {
	tok := NewTokenizer()

	got := tok.Tokenize("Which trial studies gemcitabine?")
	want := []string{"trial", "studies", "gemcitabine"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenizer_KeepsTrialIdentifiers(t *testing.T) {
	tok := NewTokenizer()

	tokens := tok.Tokenize("Trial NCT001 studies gemcitabine in pancreatic cancer.")
	found := false
	for _, token := range tokens {
		if token == "nct001" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 'nct001' to be a single token, got %v", tokens)
	}
}

func TestTokenizer_StopwordRemoval(t *testing.T) {
	tok := NewTokenizer()

	tokens := tok.Tokenize("the quick brown fox")
	for _, token := range tokens {
		if token == "the" {
			t.Errorf("stopword 'the' should be removed, got %v", tokens)
		}
	}
}

func TestTokenizer_ShortWordRemoval(t *testing.T) {
	tok := NewTokenizer()

	tokens := tok.Tokenize("a I go to x")
	for _, token := range tokens {
		if len(token) < 2 {
			t.Errorf("short word should be removed: %s", token)
		}
	}
}

func TestTokenizer_CountTokens(t *testing.T) {
	tok := NewTokenizer()

	count := tok.CountTokens("hello world this is a test")
	if count < 6 {
		t.Errorf("expected count >= 6 words, got %d", count)
	}
	if tok.CountTokens("") != 0 {
		t.Error("expected 0 count for empty input")
	}
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"hello world", 2},
		{"FOLFIRINOX-based", 2},
		{"5-FU", 2},
		{"NCT04229004", 1},
		{"ÉTUDE clinique", 2},
		{"", 0},
	}

	for _, tt := range tests {
		words := splitWords(tt.input)
		if len(words) != tt.expected {
			t.Errorf("splitWords(%q) = %d words, want %d: %v", tt.input, len(words), tt.expected, words)
		}
	}
}
