package textutil

import (
	"math"
	"testing"
)

func TestCosineSimilarityNil(t *testing.T) {
	tests := []struct {
		name string
		a    *Fingerprint
		b    *Fingerprint
	}{
		{"both nil", nil, nil},
		{"a nil", nil, NewFingerprint("hello world")},
		{"b nil", NewFingerprint("hello world"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CosineSimilarity(tt.a, tt.b); got != 0 {
				t.Errorf("CosineSimilarity() = %v, want 0", got)
			}
		})
	}
}

func TestCosineSimilarityIdentical(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog"
	got := CosineSimilarity(NewFingerprint(text), NewFingerprint(text))
	if math.Abs(got-1) > 1e-9 {
		t.Errorf("CosineSimilarity(identical) = %v, want 1.0", got)
	}
}

func TestCosineSimilarityDisjoint(t *testing.T) {
	got := CosineSimilarity(NewFingerprint("apple banana"), NewFingerprint("cherry grape"))
	if got != 0 {
		t.Errorf("CosineSimilarity(disjoint) = %v, want 0", got)
	}
}

func TestCosineSimilarityPartialOverlap(t *testing.T) {
	a := FingerprintFromWords([]string{"a", "b"})
	b := FingerprintFromWords([]string{"a", "c"})
	got := CosineSimilarity(a, b)
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("CosineSimilarity = %v, want 0.5", got)
	}
	if rev := CosineSimilarity(b, a); math.Abs(rev-got) > 1e-12 {
		t.Errorf("CosineSimilarity not symmetric: %v vs %v", got, rev)
	}
}

func TestFingerprintFromWordsNorm(t *testing.T) {
	fp := FingerprintFromWords([]string{"to", "be", "or", "not", "to", "be"})
	if fp.TokenCount() != 4 {
		t.Fatalf("TokenCount = %d, want 4", fp.TokenCount())
	}
	// counts: to=2 be=2 or=1 not=1
	if want := math.Sqrt(10); math.Abs(fp.norm-want) > 1e-9 {
		t.Errorf("norm = %v, want %v", fp.norm, want)
	}
	if FingerprintFromWords(nil) != nil {
		t.Error("expected nil fingerprint for no words")
	}
	if FingerprintFromWords([]string{""}) != nil {
		t.Error("expected nil fingerprint for blank words")
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"simple words", "Hello World", []string{"hello", "world"}},
		{"keeps short words", "a to the fox", []string{"a", "to", "the", "fox"}},
		{"handles punctuation", "Hello, World! How are you?", []string{"hello", "world", "how", "are", "you"}},
		{"keeps inner apostrophes", "'Don't' stop", []string{"don't", "stop"}},
		{"unicode letters", "Café crème", []string{"café", "crème"}},
		{"empty string", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("Tokenize() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
