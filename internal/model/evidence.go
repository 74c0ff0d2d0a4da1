package model

// Evidence is a web source gathered while verifying a claim
type Evidence struct {
	URL       string        `json:"url"`                 // Full URL of the fetched page
	Title     string        `json:"title,omitempty"`     // Search result title
	Host      string        `json:"host,omitempty"`      // Domain name
	Snippet   string        `json:"snippet,omitempty"`   // Visible text excerpt used as context
	Authority AuthorityTier `json:"authority,omitempty"` // Source authority classification
	Fetched   bool          `json:"fetched"`             // Whether the page body was retrieved
	Error     string        `json:"error,omitempty"`     // Why the page could not be used
}

// ClaimEvidence groups the evidence gathered for one claim
type ClaimEvidence struct {
	Claim    Claim      `json:"claim"`
	Evidence []Evidence `json:"evidence"`
}

// AuthorityTier represents the classification of source authority
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not yet classified
	TierPrimary   AuthorityTier = 1 // Laws, statutes, academic papers, official documents
	TierSecondary AuthorityTier = 2 // Encyclopedias, major publishers, reputable media
	TierTertiary  AuthorityTier = 3 // Blogs, personal websites, forums
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}
