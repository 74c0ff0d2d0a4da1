package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var htmlTagPattern = regexp.MustCompile(`(?i)<(html|body|div|p|article|span|br|h[1-6]|!doctype)[\s>/]`)

// LooksLikeHTML reports whether content appears to be an HTML document or fragment
func LooksLikeHTML(content string) bool {
	return htmlTagPattern.MatchString(content)
}

// VisibleText extracts the human-visible text of an HTML document, skipping
// scripts and styles. Block elements end with a newline so paragraphs survive.
func VisibleText(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			// Skip script, style, noscript tags
			switch n.Data {
			case "script", "style", "noscript", "iframe", "svg", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.Join(strings.Fields(n.Data), " ")
			if text != "" {
				if buf.Len() > 0 && !strings.HasSuffix(buf.String(), "\n") {
					buf.WriteString(" ")
				}
				buf.WriteString(text)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && isBlock(n.Data) && buf.Len() > 0 && !strings.HasSuffix(buf.String(), "\n") {
			buf.WriteString("\n")
		}
	}

	walk(doc)
	return strings.TrimSpace(buf.String()), nil
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "ul", "ol", "section", "article", "header", "footer",
		"h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "pre", "table", "tr":
		return true
	}
	return false
}

// SplitSentences splits text into sentences (simple heuristic)
func SplitSentences(text string) []string {
	// Replace newlines with spaces
	text = strings.ReplaceAll(text, "\n", " ")

	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			// Look ahead to avoid splitting on abbreviations
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\t') {
				if sentence := strings.TrimSpace(current.String()); sentence != "" {
					sentences = append(sentences, sentence)
				}
				current.Reset()
			}
		}
	}

	if sentence := strings.TrimSpace(current.String()); sentence != "" {
		sentences = append(sentences, sentence)
	}

	return sentences
}

// Snippet returns at most maxChars characters of text, cut on a sentence boundary when possible
func Snippet(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	r := []rune(text)
	if len(r) <= maxChars {
		return text
	}

	var buf strings.Builder
	n := 0
	for _, s := range SplitSentences(text) {
		l := len([]rune(s)) + 1
		if n+l > maxChars {
			break
		}
		buf.WriteString(s)
		buf.WriteString(" ")
		n += l
	}
	if buf.Len() == 0 {
		return string(r[:maxChars])
	}
	return strings.TrimSpace(buf.String())
}
