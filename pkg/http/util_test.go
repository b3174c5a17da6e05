package http

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	const stamp = "2025-03-07T09:30:00Z"
	got, ok := ParseTime(stamp)
	if !ok {
		t.Fatal("RFC3339 input should parse")
	}
	if got.UTC().Format(time.RFC3339) != stamp {
		t.Fatalf("parsed %v, want %s", got, stamp)
	}
}

func TestParseTimeUnixSeconds(t *testing.T) {
	want := time.Date(2025, 3, 7, 9, 30, 0, 0, time.UTC)
	got, ok := ParseTime(strconv.FormatInt(want.Unix(), 10))
	if !ok {
		t.Fatal("unix seconds input should parse")
	}
	if !got.Equal(want) {
		t.Fatalf("parsed %v, want %v", got, want)
	}
}

func TestParseTimeRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "yesterday", "-5"} {
		if _, ok := ParseTime(s); ok {
			t.Fatalf("expected %q to be rejected", s)
		}
	}
}

func TestParseIntDefault(t *testing.T) {
	cases := []struct {
		in   string
		def  int
		want int
	}{
		{"", 10, 10},
		{"abc", 10, 10},
		{"42", 10, 42},
		{"-3", 10, -3},
	}
	for _, tc := range cases {
		if got := ParseIntDefault(tc.in, tc.def); got != tc.want {
			t.Fatalf("ParseIntDefault(%q, %d) = %d, want %d", tc.in, tc.def, got, tc.want)
		}
	}
}
