package slug

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Book", "book"},
		{"  Hello,   World!  ", "hello-world"},
		{"Chapter 1: The Beginning", "chapter-1-the-beginning"},
		{"v1.2.3", "v1.2.3"},
		{"snake_case/and-slash", "snake-case-and-slash"},
		{"Ünïcödé Café", "unicode-cafe"},
		{"---already--hyphenated---", "already-hyphenated"},
		{"日本語", ""},
		{"", ""},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tc.in); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
			if again := Normalize(Normalize(tc.in)); again != Normalize(tc.in) {
				t.Errorf("Normalize is not idempotent for %q: %q", tc.in, again)
			}
		})
	}
}

func TestSlug(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                   string
		title, author, version string
		want                   string
	}{
		{"all parts", "Book", "Jane", "1", "book-by-jane-v-1"},
		{"no author", "Book", "", "2", "book-v-2"},
		{"no version", "Book", "Jane Doe", "", "book-by-jane-doe"},
		{"title only", "My Great Book!", "", "", "my-great-book"},
		{"empty title", "", "Jane", "1", "by-jane-v-1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Slug(tc.title, tc.author, tc.version); got != tc.want {
				t.Errorf("Slug(%q, %q, %q) = %q, want %q", tc.title, tc.author, tc.version, got, tc.want)
			}
		})
	}
}

func TestSection(t *testing.T) {
	t.Parallel()

	if got := Section("Book", "Intro", 1, "Jane", "1"); got != "book-intro-1-by-jane-v-1" {
		t.Errorf("Section = %q", got)
	}
	if got := Section("Book", "Ch1", 2, "Jane", "1"); got != "book-ch1-2-by-jane-v-1" {
		t.Errorf("Section = %q", got)
	}
}

func TestSlug_LengthBounded(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("Very long title words ", 20)
	if len(long) <= 200 {
		t.Fatalf("fixture too short: %d", len(long))
	}

	cases := [][3]string{
		{long, "", ""},
		{long, "Jane", "1"},
		{long, strings.Repeat("author ", 20), strings.Repeat("9", 40)},
		{"", strings.Repeat("x", 200), ""},
	}
	for _, c := range cases {
		got := Slug(c[0], c[1], c[2])
		if len(got) > MaxLength {
			t.Errorf("len(Slug) = %d > %d: %q", len(got), MaxLength, got)
		}
		if strings.HasSuffix(got, "-") || strings.HasPrefix(got, "-") {
			t.Errorf("slug has dangling hyphen: %q", got)
		}
		if again := Slug(c[0], c[1], c[2]); again != got {
			t.Errorf("Slug not stable: %q vs %q", got, again)
		}
	}

	got := Slug(long, "Jane", "1")
	if !strings.HasSuffix(got, "-by-jane-v-1") {
		t.Errorf("truncation dropped the address suffix: %q", got)
	}
}
