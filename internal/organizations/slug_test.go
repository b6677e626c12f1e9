package organizations

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Green Hands", "green-hands"},
		{"  Helping Hands!!  ", "helping-hands"},
		{"Café Solidarité", "caf-solidarit"},
		{"ALL CAPS ORG", "all-caps-org"},
		{"---", "org"},
		{"", "org"},
		{"a&b", "a-b"},
		{"123 Steps", "123-steps"},
	}
	for _, tc := range cases {
		if got := Slugify(tc.name); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestSlugifyLength(t *testing.T) {
	got := Slugify(strings.Repeat("volunteer ", 20))
	if len(got) > 64 {
		t.Fatalf("slug too long: %d", len(got))
	}
	if strings.HasSuffix(got, "-") || strings.HasPrefix(got, "-") {
		t.Fatalf("slug has dangling hyphen: %q", got)
	}
}
