package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	whitespaceRegex = regexp.MustCompile(`[^\S\n]+`)
	newlineRegex    = regexp.MustCompile(`\n{3,}`)
	// Invisible Unicode characters (zero-width spaces, etc.) that HTML mail
	// loves to sprinkle around
	invisibleRegex = regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00AD}\x{2060}-\x{2064}\x{206A}-\x{206F}\x{FE00}-\x{FE0F}]+`)
)

// StripHTML converts an HTML body to clean plain text: scripts, styles and
// metadata are dropped with their content, block elements become line
// breaks, list items become bullet lines, entities are decoded, and runs of
// three or more newlines collapse to two.
func StripHTML(html string) string {
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	// Remove script and style elements with their content
	doc.Find("script, style, head, meta, link").Remove()

	// List items become bullet lines
	doc.Find("li").Each(func(i int, s *goquery.Selection) {
		s.PrependHtml("\n• ")
	})

	// Newlines before the remaining block elements
	doc.Find("p, div, br, h1, h2, h3, h4, h5, h6, tr").Each(func(i int, s *goquery.Selection) {
		s.PrependHtml("\n")
	})

	// Text extraction decodes entities and drops all remaining tags
	text := doc.Text()

	text = invisibleRegex.ReplaceAllString(text, "")

	// Clean up whitespace (but preserve newlines)
	text = whitespaceRegex.ReplaceAllString(text, " ")

	// Trim each line, keeping blank lines as paragraph separators
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	text = strings.Join(lines, "\n")

	// Normalize newlines (max 2 consecutive)
	text = newlineRegex.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
