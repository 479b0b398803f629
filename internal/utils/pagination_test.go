package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		in   string
		def  int
		want int
	}{
		{"42", 0, 42},
		{" 7 ", 0, 7},
		{"", 10, 10},
		{"x", 5, 5},
		{"-3", 1, -3},
	}
	for _, tc := range cases {
		if got := AtoiDefault(tc.in, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.in, tc.def, got, tc.want)
		}
	}
}

func TestParsePage(t *testing.T) {
	cases := []struct {
		number, size string
		want         Page
	}{
		{"", "", Page{1, 20}},
		{"3", "50", Page{3, 50}},
		{"0", "0", Page{1, 1}},
		{"-2", "500", Page{1, 100}},
		{"abc", "xyz", Page{1, 20}},
	}
	for _, tc := range cases {
		if got := ParsePage(tc.number, tc.size, 20, 100); got != tc.want {
			t.Fatalf("ParsePage(%q, %q) = %+v; want %+v", tc.number, tc.size, got, tc.want)
		}
	}
}

func TestPage_NormalizeAndOffset(t *testing.T) {
	p := Page{Number: 0, Size: 0}.Normalize(10)
	if p != (Page{1, 10}) || p.Offset() != 0 {
		t.Fatalf("normalized %+v offset %d", p, p.Offset())
	}
	if off := (Page{Number: 3, Size: 25}).Offset(); off != 50 {
		t.Fatalf("offset = %d; want 50", off)
	}
}

func TestTotalPages(t *testing.T) {
	for _, tc := range []struct {
		total int64
		size  int
		want  int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{5, 0, 0},
	} {
		if got := TotalPages(tc.total, tc.size); got != tc.want {
			t.Fatalf("TotalPages(%d, %d) = %d; want %d", tc.total, tc.size, got, tc.want)
		}
	}
}
