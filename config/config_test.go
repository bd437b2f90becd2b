package config

import "testing"

// parseSize is exercised directly rather than through Parse, since Parse
// registers flags on getopt's process-global flag set and can only run once
// per process (matching the teacher's own avoidance of flag-parsing tests).
func TestParseSizePlainDigits(t *testing.T) {
	n, err := parseSize("4096")
	if err != nil {
		t.Fatalf("parseSize: %v", err)
	}
	if n != 4096 {
		t.Fatalf("parseSize(4096) = %d, want 4096", n)
	}
}

func TestParseSizeSuffixes(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"1K", 1 << 10},
		{"1k", 1 << 10},
		{"64M", 64 << 20},
		{"2G", 2 << 30},
	}
	for _, tc := range cases {
		got, err := parseSize(tc.in)
		if err != nil {
			t.Fatalf("parseSize(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parseSize(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseSizeRejectsUnknownSuffix(t *testing.T) {
	if _, err := parseSize("4X"); err == nil {
		t.Fatalf("parseSize(4X) should have failed")
	}
}

func TestParseSizeRejectsGarbage(t *testing.T) {
	if _, err := parseSize("not-a-size"); err == nil {
		t.Fatalf("parseSize(not-a-size) should have failed")
	}
}
