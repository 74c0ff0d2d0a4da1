// Package validate classifies the sources gathered during web verification.
package validate

import (
	"net/url"
	"strings"

	"github.com/ppiankov/clarifai/internal/model"
)

// AuthorityClassifier classifies sources into authority tiers
type AuthorityClassifier struct {
	domainMap map[string]model.AuthorityTier
	suffixes  map[string]model.AuthorityTier
}

// NewAuthorityClassifier creates a classifier. A nil config uses the defaults.
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		config = &model.DefaultConfig().Authority
	}

	a := &AuthorityClassifier{
		domainMap: make(map[string]model.AuthorityTier),
		suffixes:  make(map[string]model.AuthorityTier),
	}
	for host, tier := range config.DomainMap {
		a.domainMap[strings.ToLower(host)] = ParseTier(tier)
	}
	for _, d := range config.SecondaryDomains {
		a.suffixes[strings.ToLower(d)] = model.TierSecondary
	}
	// Primary wins when a domain is listed twice
	for _, d := range config.PrimaryDomains {
		a.suffixes[strings.ToLower(d)] = model.TierPrimary
	}
	return a
}

// Classify classifies a URL into an authority tier. The most specific
// configured domain suffix decides; unknown hosts are tertiary.
func (a *AuthorityClassifier) Classify(rawURL string) model.AuthorityTier {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return model.TierTertiary
	}
	host := strings.ToLower(parsed.Hostname())

	if tier, ok := a.domainMap[host]; ok {
		return tier
	}

	// Walk from the full host towards the TLD: www.bbc.co.uk, bbc.co.uk, co.uk, uk
	for h := host; h != ""; {
		if tier, ok := a.suffixes[h]; ok {
			return tier
		}
		i := strings.IndexByte(h, '.')
		if i < 0 {
			break
		}
		h = h[i+1:]
	}

	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk") {
		return model.TierPrimary
	}

	return model.TierTertiary
}

// Annotate fills in Host and Authority for each evidence item in place
func (a *AuthorityClassifier) Annotate(evidence []model.Evidence) {
	for i := range evidence {
		if u, err := url.Parse(evidence[i].URL); err == nil {
			evidence[i].Host = u.Hostname()
		}
		evidence[i].Authority = a.Classify(evidence[i].URL)
	}
}

// ParseTier converts a tier name or number to an AuthorityTier
func ParseTier(tier string) model.AuthorityTier {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case "primary", "1":
		return model.TierPrimary
	case "secondary", "2":
		return model.TierSecondary
	default:
		return model.TierTertiary
	}
}
