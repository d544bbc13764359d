package fsname

import (
	"testing"

	"github.com/famomatic/tubefetch/internal/videoid"
)

func TestStem(t *testing.T) {
	id := videoid.ID("dQw4w9WgXcQ")
	cases := []struct {
		title string
		want  string
	}{
		{"Test Video", "Test_Video-dQw4w9WgXcQ"},
		{"Hello, World! (Official)", "Hello_World_Official-dQw4w9WgXcQ"},
		{"  padded   title  ", "padded_title-dQw4w9WgXcQ"},
		{"tabs\tand\nnewlines", "tabs_and_newlines-dQw4w9WgXcQ"},
		{"émoji 🎵 stripped", "moji_stripped-dQw4w9WgXcQ"},
		{"", "-dQw4w9WgXcQ"},
	}
	for _, tc := range cases {
		if got := Stem(tc.title, id); got != tc.want {
			t.Fatalf("Stem(%q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{"Test_Video", "already_clean_123", "One"}
	for _, in := range inputs {
		once := Sanitize(in)
		if once != in {
			t.Fatalf("Sanitize(%q) = %q, want unchanged", in, once)
		}
		if twice := Sanitize(once); twice != once {
			t.Fatalf("Sanitize not idempotent: %q -> %q", once, twice)
		}
	}
}

func TestStem_Deterministic(t *testing.T) {
	id := videoid.ID("abcDEF123-_")
	a := Stem("Some Title", id)
	b := Stem("Some Title", id)
	if a != b {
		t.Fatalf("Stem not deterministic: %q vs %q", a, b)
	}
}
