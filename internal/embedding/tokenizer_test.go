package embedding

import (
	"testing"
)

func TestWordTokenizer_Tokenize(t *testing.T) {
	tok := &WordTokenizer{}
	ids, attn, _ := tok.Tokenize("hello world", 10)
	if len(ids) != 10 {
		t.Errorf("len(ids)=%d", len(ids))
	}
	if ids[0] != 101 {
		t.Errorf("expected CLS 101, got %d", ids[0])
	}
	if attn[0] != 1 {
		t.Error("attention[0] should be 1")
	}
}

func TestWordTokenizer_Truncates(t *testing.T) {
	tok := &WordTokenizer{}
	ids, _, _ := tok.Tokenize("a b c d e f g h i j", 5)
	if len(ids) != 5 {
		t.Errorf("len(ids)=%d", len(ids))
	}
}

func TestHashString(t *testing.T) {
	h := hashString("abc")
	if h == 0 {
		t.Error("hash should be non-zero")
	}
	if hashString("abc") != hashString("abc") {
		t.Error("hash should be deterministic")
	}
}
