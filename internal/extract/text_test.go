package extract

import (
	"strings"
	"testing"
)

func TestVisibleText_SkipsScriptsAndStyles(t *testing.T) {
	doc := `
	<html>
	<head><title>ignored</title><style>p { color: red }</style></head>
	<body>
		<p>Laksa originated in Malaysia.</p>
		<script>var x = "not text";</script>
		<p>According to historians, it spread to coastal regions.</p>
	</body>
	</html>
	`

	text, err := VisibleText(doc)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if strings.Contains(text, "not text") {
		t.Errorf("Expected script content to be skipped, got %q", text)
	}
	if strings.Contains(text, "color") {
		t.Errorf("Expected style content to be skipped, got %q", text)
	}
	if strings.Contains(text, "ignored") {
		t.Errorf("Expected head content to be skipped, got %q", text)
	}

	want := "Laksa originated in Malaysia.\nAccording to historians, it spread to coastal regions."
	if text != want {
		t.Errorf("Expected %q, got %q", want, text)
	}
}

func TestVisibleText_CollapsesWhitespace(t *testing.T) {
	text, err := VisibleText("<div>  one\n\t two  </div><div>three</div>")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if text != "one two\nthree" {
		t.Errorf("Unexpected text: %q", text)
	}
}

func TestLooksLikeHTML(t *testing.T) {
	cases := map[string]bool{
		"<html><body>x</body></html>":  true,
		"<p>Paragraph</p>":             true,
		"<!DOCTYPE html><html></html>": true,
		"Plain text, 3 < 4 and 5 > 2.": false,
		"":                             false,
	}
	for in, want := range cases {
		if got := LooksLikeHTML(in); got != want {
			t.Errorf("LooksLikeHTML(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("Claim A. Claim B is false! Is it? yes")
	want := []string{"Claim A.", "Claim B is false!", "Is it?", "yes"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d sentences, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSnippet(t *testing.T) {
	text := "First sentence here. Second sentence is longer. Third."

	if got := Snippet(text, 1000); got != text {
		t.Errorf("Expected full text, got %q", got)
	}
	if got := Snippet(text, 25); got != "First sentence here." {
		t.Errorf("Expected first sentence, got %q", got)
	}
	if got := Snippet("abcdefghij", 4); got != "abcd" {
		t.Errorf("Expected hard cut, got %q", got)
	}
	if got := Snippet(text, 0); got != "" {
		t.Errorf("Expected empty snippet, got %q", got)
	}
}
