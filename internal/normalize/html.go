package normalize

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// htmlToText returns the visible text of an HTML body with whitespace
// collapsed. Script and style contents are dropped.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, head").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
