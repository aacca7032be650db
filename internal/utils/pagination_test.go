package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		{"", 10, 10},
		{"42", 0, 42},
		{"-13", 1, -13},
		{"x", 5, 5},
		{" 42", 7, 7},
		{"999999999999999999999999", -1, -1},
	}
	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestParseWindow(t *testing.T) {
	cases := []struct {
		page, size string
		want       Window
	}{
		{"", "", Window{1, DefaultPageSize}},
		{"0", "0", Window{1, 1}},
		{"-3", "abc", Window{1, DefaultPageSize}},
		{"4", "500", Window{4, MaxPageSize}},
		{"2", "15", Window{2, 15}},
	}
	for _, tc := range cases {
		if got := ParseWindow(tc.page, tc.size); got != tc.want {
			t.Fatalf("ParseWindow(%q, %q) = %+v; want %+v", tc.page, tc.size, got, tc.want)
		}
	}
}

func TestWindowMath(t *testing.T) {
	w := NewWindow(2, 0)
	if w.Size != DefaultPageSize || w.Offset() != 20 {
		t.Fatalf("unexpected window %+v offset=%d", w, w.Offset())
	}

	w = NewWindow(3, 10)
	if s, e := w.Bounds(25); s != 20 || e != 25 {
		t.Fatalf("Bounds(25) = %d,%d", s, e)
	}
	if s, e := w.Bounds(7); s != 7 || e != 7 {
		t.Fatalf("Bounds past end = %d,%d", s, e)
	}
	for total, want := range map[int64]int{0: 0, 1: 1, 10: 1, 11: 2, 30: 3} {
		if got := w.TotalPages(total); got != want {
			t.Fatalf("TotalPages(%d) = %d; want %d", total, got, want)
		}
	}
}
