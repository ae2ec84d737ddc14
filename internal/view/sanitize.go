package view

import (
	"html/template"

	"github.com/microcosm-cc/bluemonday"
)

// richText admits the markup bug-report descriptions are written in:
// paragraphs, lists, links and http(s) images. Scripts, handlers and
// styles are stripped.
var richText = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowURLSchemes("http", "https")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}()

// SanitizeHTML returns backend-supplied HTML that is safe to inline.
func SanitizeHTML(raw string) template.HTML {
	return template.HTML(richText.Sanitize(raw))
}
