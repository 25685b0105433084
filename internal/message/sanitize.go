package message

import (
	"github.com/microcosm-cc/bluemonday"
)

// htmlPolicy is safe for concurrent use once built.
var htmlPolicy = newHTMLPolicy()

func newHTMLPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "b", "i", "u", "strong", "em", "a",
		"ul", "ol", "li",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"blockquote", "pre", "code",
		"table", "thead", "tbody", "tr", "th", "td",
		"div", "span", "img", "hr", "sub", "sup",
	)

	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowAttrs("width", "height").Matching(bluemonday.NumberOrPercent).OnElements("img")
	p.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Integer).OnElements("td", "th")

	p.AllowAttrs("style").OnElements("div", "span")
	p.AllowStyles(
		"color", "background-color",
		"font-family", "font-size", "font-style", "font-weight",
		"text-align", "text-decoration",
	).OnElements("div", "span")

	// Only script and style lose their content with the tag.
	p.AllowElementsContent(
		"frame", "frameset", "iframe", "noembed", "noframes",
		"noscript", "nostyle", "object", "title",
	)
	p.SkipElementsContent("script", "style")

	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("http", "https", "mailto", "cid")

	return p
}

// Sanitize restricts HTML to the allow-listed tags and attributes. Disallowed markup
// is stripped and its text kept in place, except for script and style elements,
// which are dropped together with their content.
func Sanitize(html string) string {
	if html == "" {
		return ""
	}
	return htmlPolicy.Sanitize(html)
}
