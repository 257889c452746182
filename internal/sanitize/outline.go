package sanitize

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// Outliner renders the readable structure of a page as Markdown: headings,
// paragraphs, lists, links and tables. Styling, scripts and inline SVG
// icons are dropped.
type Outliner struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

// NewOutliner creates an Outliner.
func NewOutliner() *Outliner {
	return &Outliner{
		policy: structuralPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

func structuralPolicy() *bluemonday.Policy {
	policy := bluemonday.NewPolicy()

	policy.AllowElements("header", "nav", "main", "section", "article", "footer",
		"div", "p", "h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "blockquote",
		"table", "thead", "tbody", "tr", "td", "th",
		"a", "strong", "em", "b", "i", "br", "hr")

	policy.AllowAttrs("href").OnElements("a")
	policy.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
	policy.RequireParseableURLs(true)
	policy.AllowRelativeURLs(true)
	policy.AllowURLSchemes("http", "https", "mailto")
	policy.SkipElementsContent("svg")

	return policy
}

// Outline converts content to Markdown.
func (o *Outliner) Outline(content string) (string, error) {
	markdown, err := o.conv.ConvertString(o.policy.Sanitize(content))
	if err != nil {
		return "", fmt.Errorf("failed to convert outline: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}
