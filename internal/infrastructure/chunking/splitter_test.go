package chunking

import (
	"fmt"
	"strings"
	"testing"
)

func words(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(out, " ")
}

func TestNewSplitterRejectsNonPositiveStep(t *testing.T) {
	if _, err := NewSplitter(100, 100); err == nil {
		t.Fatal("expected error when overlap equals window")
	}
	if _, err := NewSplitter(100, 150); err == nil {
		t.Fatal("expected error when overlap exceeds window")
	}
}

func TestSplitEmptyTextYieldsNoChunks(t *testing.T) {
	s, err := NewSplitter(250, 40)
	if err != nil {
		t.Fatalf("NewSplitter() error = %v", err)
	}
	if got := s.Split("D1", "warnings", ""); got != nil {
		t.Fatalf("expected nil for empty text, got %d chunks", len(got))
	}
	if got := s.Split("D1", "warnings", "   \n\t "); got != nil {
		t.Fatalf("expected nil for blank text, got %d chunks", len(got))
	}
}

func TestSplitOverlappingWindows(t *testing.T) {
	s, err := NewSplitter(250, 40)
	if err != nil {
		t.Fatalf("NewSplitter() error = %v", err)
	}

	// 600 words, step 210: windows [0,250) [210,460) [420,600).
	chunks := s.Split("D1", "warnings", words(600))
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].ChunkID != "D1::warnings::c001" {
		t.Fatalf("unexpected first chunk id: %s", chunks[0].ChunkID)
	}
	if chunks[2].Position != 3 {
		t.Fatalf("expected final position 3, got %d", chunks[2].Position)
	}

	// Consecutive windows share the trailing overlap words.
	first := strings.Fields(chunks[0].Text)
	second := strings.Fields(chunks[1].Text)
	if len(first) != 250 {
		t.Fatalf("expected full window of 250 words, got %d", len(first))
	}
	tail := strings.Join(first[210:], " ")
	head := strings.Join(second[:40], " ")
	if tail != head {
		t.Fatalf("windows do not overlap by 40 words")
	}
}

func TestSplitKeepsFinalPartialWindow(t *testing.T) {
	s, _ := NewSplitter(10, 2)
	chunks := s.Split("D1", "dosage", words(13))
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if got := len(strings.Fields(chunks[1].Text)); got != 5 {
		t.Fatalf("expected partial window of 5 words, got %d", got)
	}
}

func TestSplitDeterministic(t *testing.T) {
	s, _ := NewSplitter(25, 5)
	text := words(90)
	a := s.Split("setid-1", "adverse_reactions", text)
	b := s.Split("setid-1", "adverse_reactions", text)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs across runs", i)
		}
	}
}
