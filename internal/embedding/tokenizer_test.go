package embedding

import (
	"strings"
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, _ := tok.Tokenize("hello world", 10)
	if len(ids) != 10 {
		t.Errorf("len(ids)=%d", len(ids))
	}
	if ids[0] != 101 {
		t.Errorf("expected CLS 101, got %d", ids[0])
	}
	if ids[3] != 102 {
		t.Errorf("expected SEP 102 after two words, got %d", ids[3])
	}
	if attn[0] != 1 || attn[3] != 1 || attn[4] != 0 {
		t.Errorf("attention mask = %v", attn)
	}
}

func TestSimpleTokenizer_Truncates(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, _ := tok.Tokenize(strings.Repeat("word ", 50), 8)
	if len(ids) != 8 {
		t.Fatalf("len(ids)=%d", len(ids))
	}
	for i, m := range attn {
		if m != 1 {
			t.Errorf("attention[%d] should be 1 when truncated", i)
		}
	}
}

func TestSplitWords(t *testing.T) {
	words := SplitWords("  a  b\tc\n ")
	if len(words) != 3 {
		t.Errorf("expected 3 words, got %v", words)
	}
	if SplitWords("") != nil {
		t.Error("empty string should return nil")
	}
}

func TestHashString(t *testing.T) {
	h := HashString("abc")
	if h == 0 {
		t.Error("hash should be non-zero")
	}
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
	if HashString(strings.Repeat("overflow", 100)) < 0 {
		t.Error("hash must be non-negative")
	}
}

const testVocab = `[PAD]
[UNK]
[CLS]
[SEP]
hello
world
un
##aff
##able
!
cafe`

func TestWordPieceTokenizer(t *testing.T) {
	tok, err := NewWordPieceTokenizer(strings.NewReader(testVocab))
	if err != nil {
		t.Fatal(err)
	}
	ids, attn, types := tok.Tokenize("Hello, unaffable World! Café xyz", 16)
	// [CLS] hello [UNK](,) un ##aff ##able world ! cafe [UNK](xyz) [SEP]
	want := []int64{2, 4, 1, 6, 7, 8, 5, 9, 10, 1, 3}
	for i, w := range want {
		if ids[i] != w {
			t.Fatalf("ids[%d] = %d, want %d (ids=%v)", i, ids[i], w, ids)
		}
		if attn[i] != 1 {
			t.Errorf("attention[%d] should be 1", i)
		}
	}
	if attn[len(want)] != 0 || ids[len(want)] != 0 {
		t.Error("positions after [SEP] should be padding")
	}
	if len(types) != 16 {
		t.Errorf("len(types)=%d", len(types))
	}
}

func TestWordPieceTokenizer_MissingSpecialTokens(t *testing.T) {
	if _, err := NewWordPieceTokenizer(strings.NewReader("hello\nworld")); err == nil {
		t.Error("expected error when [CLS] is missing")
	}
}

func TestMeanPool(t *testing.T) {
	hidden := []float32{
		1, 2,
		3, 4,
		100, 100,
	}
	got := MeanPool(hidden, []int64{1, 1, 0}, 2)
	if got[0] != 2 || got[1] != 3 {
		t.Errorf("MeanPool = %v, want [2 3]", got)
	}
	if z := MeanPool(hidden, []int64{0, 0, 0}, 2); z[0] != 0 || z[1] != 0 {
		t.Errorf("all-masked pool should be zero, got %v", z)
	}
}
