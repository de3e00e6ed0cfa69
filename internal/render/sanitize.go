package render

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// contentPolicy keeps what DeltaToHTML produces and drops scripts, event
	// handlers and foreign markup.
	contentPolicy = newContentPolicy()
	// stripPolicy removes every tag.
	stripPolicy = bluemonday.StrictPolicy()
)

func newContentPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^[a-z0-9 -]+$`)).Globally()
	p.AllowAttrs("data-value").OnElements("span")
	p.AllowAttrs("spellcheck").OnElements("pre")
	p.AllowStyles("color", "background-color").Globally()
	p.AllowElements("iframe")
	p.AllowAttrs("src", "frameborder", "allowfullscreen").OnElements("iframe")
	p.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
	p.RequireNoFollowOnLinks(false)
	return p
}

// Sanitize cleans HTML for display.
func Sanitize(markup string) string {
	return contentPolicy.Sanitize(markup)
}

// StripTags reduces HTML to its text, keeping paragraph breaks.
func StripTags(markup string) string {
	res := strings.ReplaceAll(markup, "</p>", "</p>\n")
	res = strings.ReplaceAll(res, "</li>", "</li>\n")
	res = strings.ReplaceAll(res, "<br>", "\n")
	res = stripPolicy.Sanitize(res)
	return strings.TrimSpace(html.UnescapeString(res))
}
