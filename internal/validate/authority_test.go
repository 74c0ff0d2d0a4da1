package validate

import (
	"testing"

	"github.com/ppiankov/clarifai/internal/model"
)

func TestAuthorityClassifier_Classify(t *testing.T) {
	config := &model.AuthorityConfig{
		PrimaryDomains:   []string{"legislation.gov.uk", "doi.org", "who.int"},
		SecondaryDomains: []string{"wikipedia.org", "bbc.co.uk", "doi.org"},
		DomainMap: map[string]string{
			"nytimes.com": "secondary",
			"myblog.com":  "tertiary",
		},
	}

	classifier := NewAuthorityClassifier(config)

	tests := []struct {
		url      string
		expected model.AuthorityTier
		desc     string
	}{
		{"https://legislation.gov.uk/ukpga/1998/42", model.TierPrimary, "primary domain exact match"},
		{"https://www.legislation.gov.uk/statute", model.TierPrimary, "primary domain with subdomain"},
		{"https://doi.org/10.1234/example", model.TierPrimary, "primary wins over secondary listing"},
		{"https://en.wikipedia.org/wiki/Laksa", model.TierSecondary, "secondary with subdomain"},
		{"https://www.bbc.co.uk/news", model.TierSecondary, "multi-label secondary suffix"},
		{"https://nytimes.com/article", model.TierSecondary, "explicit domain map"},
		{"https://myblog.com/post", model.TierTertiary, "explicit domain map to tertiary"},
		{"https://whitehouse.gov/statements", model.TierPrimary, ".gov heuristic"},
		{"https://mit.edu/research", model.TierPrimary, ".edu heuristic"},
		{"https://oxford.ac.uk/research", model.TierPrimary, ".ac.uk heuristic"},
		{"https://who.int:8443/page", model.TierPrimary, "port is ignored"},
		{"https://notwikipedia.org/x", model.TierTertiary, "suffix must match on a label boundary"},
		{"https://randomsite.com/page", model.TierTertiary, "unknown domain"},
		{"not-a-url", model.TierTertiary, "no host"},
		{"", model.TierTertiary, "empty URL"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			result := classifier.Classify(tt.url)
			if result != tt.expected {
				t.Errorf("Expected %v for %s, got %v", tt.expected, tt.url, result)
			}
		})
	}
}

func TestAuthorityClassifier_Defaults(t *testing.T) {
	classifier := NewAuthorityClassifier(nil)

	if got := classifier.Classify("https://en.wikipedia.org/wiki/Go"); got != model.TierSecondary {
		t.Errorf("Expected secondary for wikipedia with defaults, got %v", got)
	}
	if got := classifier.Classify("https://www.nih.gov/health"); got != model.TierPrimary {
		t.Errorf("Expected primary for nih.gov with defaults, got %v", got)
	}
}

func TestAuthorityClassifier_Annotate(t *testing.T) {
	classifier := NewAuthorityClassifier(nil)

	evidence := []model.Evidence{
		{URL: "https://en.wikipedia.org/wiki/Laksa"},
		{URL: "https://someblog.example/post"},
	}
	classifier.Annotate(evidence)

	if evidence[0].Host != "en.wikipedia.org" || evidence[0].Authority != model.TierSecondary {
		t.Errorf("Unexpected annotation: %+v", evidence[0])
	}
	if evidence[1].Host != "someblog.example" || evidence[1].Authority != model.TierTertiary {
		t.Errorf("Unexpected annotation: %+v", evidence[1])
	}
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		input    string
		expected model.AuthorityTier
	}{
		{"primary", model.TierPrimary},
		{"PRIMARY", model.TierPrimary},
		{"1", model.TierPrimary},
		{"secondary", model.TierSecondary},
		{"2", model.TierSecondary},
		{"tertiary", model.TierTertiary},
		{"unknown", model.TierTertiary},
		{"", model.TierTertiary},
	}

	for _, tt := range tests {
		if got := ParseTier(tt.input); got != tt.expected {
			t.Errorf("ParseTier(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}
