package indexer

import (
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/kioku/internal/apperr"
)

func TestChunk_2000CharsGivesThreeWindows(t *testing.T) {
	text := strings.Repeat("abcdefghij", 200)
	chunks, err := Chunk(text, 800, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantLens := []int{800, 800, 600}
	for i, ch := range chunks {
		if len(ch) != wantLens[i] {
			t.Errorf("chunk %d len = %d, want %d", i, len(ch), wantLens[i])
		}
	}
	// windows are [0,800), [700,1500), [1400,2000)
	if chunks[1] != text[700:1500] || chunks[2] != text[1400:] {
		t.Error("windows do not start at end-overlap")
	}
}

func TestChunk_CoversTextWithoutGaps(t *testing.T) {
	text := strings.Repeat("0123456789", 37) + "xyz"
	for _, tc := range []struct{ size, overlap int }{{50, 10}, {64, 0}, {7, 3}, {100, 99}, {1000, 100}} {
		chunks, err := Chunk(text, tc.size, tc.overlap)
		if err != nil {
			t.Fatal(err)
		}
		size, overlap := EffectiveParams(tc.size, tc.overlap)
		var rebuilt strings.Builder
		for i, ch := range chunks {
			if i == 0 {
				rebuilt.WriteString(ch)
				continue
			}
			rebuilt.WriteString(ch[overlap:])
		}
		if rebuilt.String() != text {
			t.Errorf("size=%d overlap=%d: chunks minus overlap do not rebuild the text", tc.size, tc.overlap)
		}
		step := size - overlap
		maxSteps := (len(text) + step - 1) / step
		if len(chunks) > maxSteps {
			t.Errorf("size=%d overlap=%d: %d chunks exceeds bound %d", tc.size, tc.overlap, len(chunks), maxSteps)
		}
	}
}

func TestChunk_Deterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
	a, _ := Chunk(text, 120, 30)
	b, _ := Chunk(text, 120, 30)
	if len(a) != len(b) {
		t.Fatal("chunk count differs between runs")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestEffectiveParams(t *testing.T) {
	tests := []struct {
		name                 string
		size, overlap        int
		wantSize, wantOverlap int
	}{
		{"valid", 800, 100, 800, 100},
		{"zero size uses default", 0, 100, 800, 100},
		{"negative size uses default", -5, 10, 800, 10},
		{"negative overlap", 100, -1, 100, 0},
		{"overlap equal to size", 100, 100, 100, 25},
		{"overlap above size", 10, 50, 10, 2},
		{"size one", 1, 5, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, o := EffectiveParams(tt.size, tt.overlap)
			if s != tt.wantSize || o != tt.wantOverlap {
				t.Errorf("EffectiveParams(%d, %d) = %d, %d; want %d, %d",
					tt.size, tt.overlap, s, o, tt.wantSize, tt.wantOverlap)
			}
		})
	}
}

func TestChunk_EmptyContent(t *testing.T) {
	for _, in := range []string{"", "   ", "\r\r\n\t "} {
		_, err := Chunk(in, 10, 2)
		if !errors.Is(err, ErrEmptyContent) {
			t.Errorf("Chunk(%q) error = %v, want ErrEmptyContent", in, err)
		}
		if !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("empty content should be a validation error")
		}
	}
}

func TestChunk_SkipsBlankWindows(t *testing.T) {
	text := "a" + strings.Repeat(" ", 30) + "b"
	chunks, err := Chunk(text, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 || chunks[0] != "a" || chunks[1] != "b" {
		t.Errorf("chunks = %q", chunks)
	}
}

func TestChunk_Runes(t *testing.T) {
	text := strings.Repeat("日本語", 10)
	chunks, err := Chunk(text, 12, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got := len([]rune(chunks[0])); got != 12 {
		t.Errorf("first chunk has %d runes, want 12", got)
	}
	if len(chunks) != 3 {
		t.Errorf("expected 3 chunks for 30 runes, got %d", len(chunks))
	}
}

func TestChunker_Defaults(t *testing.T) {
	c := NewChunker(0, -1)
	if c.Size() != DefaultChunkSize || c.Overlap() != 0 {
		t.Errorf("NewChunker(0, -1) = %d/%d", c.Size(), c.Overlap())
	}
	chunks, err := c.Chunk("hello world")
	if err != nil || len(chunks) != 1 || chunks[0] != "hello world" {
		t.Errorf("Chunk = %q, %v", chunks, err)
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  line1\r\nline2\r "); got != "line1 \nline2" {
		t.Errorf("Normalize = %q", got)
	}
}

func BenchmarkChunk(b *testing.B) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 2000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Chunk(text, DefaultChunkSize, 100)
	}
}
