package scan

import "testing"

func TestSelector_Match(t *testing.T) {
	n := &Node{Tag: "a", Attrs: map[string]string{
		"href":  "/profile/a/post/1",
		"class": "card link",
		"id":    "x1",
		"role":  "link",
	}}
	tests := []struct {
		sel  string
		want bool
	}{
		{"a", true},
		{"div", false},
		{"A", true},
		{"*", true},
		{".card", true},
		{".card.link", true},
		{".card.other", false},
		{"#x1", true},
		{"a#x2", false},
		{"[role]", true},
		{"[tabindex]", false},
		{`[role="link"]`, true},
		{`[role='button']`, false},
		{`a[href*="/post/"]`, true},
		{`a[href^="/profile"]`, true},
		{`a[href$="/1"]`, true},
		{`[class~=link]`, true},
		{`div, a[href*="/post/"]`, true},
		{`div, span`, false},
	}
	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			s, err := Compile(tt.sel)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if got := s.Match(n); got != tt.want {
				t.Errorf("Match: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelector_CompileErrors(t *testing.T) {
	for _, sel := range []string{"", "a,", "div a", "div > a", "[href", "a.", "[=x]"} {
		if _, err := Compile(sel); err == nil {
			t.Errorf("Compile(%q): expected error", sel)
		}
	}
}

func TestSelector_String(t *testing.T) {
	if got := MustCompile(DefaultContainer).String(); got != DefaultContainer {
		t.Errorf("String: got %q", got)
	}
}
