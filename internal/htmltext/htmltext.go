// Package htmltext reduces feed HTML to a single line of plain text.
package htmltext

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const blockElements = "address,article,aside,blockquote,br,dd,div,dl,dt,figcaption,figure,footer,h1,h2,h3,h4,h5,h6,header,hr,li,ol,p,pre,section,table,td,th,tr,ul"

// ToText returns the visible text of an HTML fragment with entities decoded,
// scripts and styles removed, and every run of whitespace collapsed to one
// space. Block elements are treated as word boundaries.
func ToText(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script,style,noscript,template").Remove()

	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
		s.PrependHtml(" ")
	})

	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

// MustText is ToText for callers that prefer the raw input over an error.
func MustText(html string) string {
	text, err := ToText(html)
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}

	return text
}
