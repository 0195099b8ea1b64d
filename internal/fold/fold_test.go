package fold

import "testing"

func TestFold(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Café Müller", "cafe muller"},
		{"GRAPH Theory", "graph theory"},
		{"  spaced \t out\n text ", "spaced out text"},
		{"naïve résumé", "naive resume"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := Fold(tc.in); got != tc.want {
			t.Errorf("Fold(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPad(t *testing.T) {
	got := Pad("graph theory")
	want := "   graph theory   "
	if got != want {
		t.Errorf("Pad = %q, want %q", got, want)
	}
}

func TestIndex(t *testing.T) {
	got := Index("Café  Theory")
	want := "   cafe theory   "
	if got != want {
		t.Errorf("Index = %q, want %q", got, want)
	}
}
