package query

import (
	"reflect"
	"testing"
)

func TestTokenize_LowercasesStripsPunctuationDedupes(t *testing.T) {
	tok := NewTokenizer(map[string]bool{"the": true, "a": true})

	got := tok.Tokenize("Hello, HELLO world! The quick fox.")
	want := []string{"hello", "world", "quick", "fox"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTokenize_AllStopwordsYieldsZeroTokens(t *testing.T) {
	tok := NewTokenizer(map[string]bool{"the": true, "a": true})
	got := tok.Tokenize("The a THE")
	if len(got) != 0 {
		t.Fatalf("expected zero tokens, got %v", got)
	}
}

func TestTokenize_StripsCJKPunctuation(t *testing.T) {
	tok := NewTokenizer(nil)
	got := tok.Tokenize("你好，世界。")
	want := []string{"你好", "世界"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
