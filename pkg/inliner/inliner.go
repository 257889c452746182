// Package inliner flattens a page's <style> rules into style attributes so
// the page survives being pasted somewhere that drops stylesheets.
package inliner

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"pagesmith/internal/css"
	"pagesmith/internal/html"
	"pagesmith/internal/resolver"
)

// Options controls how a page is flattened.
type Options struct {
	// KeepStyleTags leaves the original <style> tags in place after their
	// rules have been copied onto elements.
	KeepStyleTags bool
}

// Stats describes what Inline did.
type Stats struct {
	RulesParsed     int `json:"rulesParsed"`
	ElementsStyled  int `json:"elementsStyled"`
	DeclarationsSet int `json:"declarationsSet"`
	StyleTagsKept   int `json:"styleTagsKept"`
}

// Result is the flattened page.
type Result struct {
	HTML  string `json:"html"`
	Stats Stats  `json:"stats"`
}

// Inliner copies cascaded declarations onto elements.
type Inliner struct {
	opts     Options
	parser   html.Parser
	resolver *resolver.Resolver
	log      *zap.Logger
}

// New creates an Inliner.
func New(opts Options, log *zap.Logger) *Inliner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Inliner{
		opts:     opts,
		parser:   html.NewParser(),
		resolver: resolver.New(log),
		log:      log.Named("inliner"),
	}
}

// Inline parses content, resolves the cascade for every renderable element
// and writes the winners into its style attribute.
func (i *Inliner) Inline(content string) (*Result, error) {
	doc, err := i.parser.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	sheet, err := i.resolver.Stylesheet(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to collect style rules: %w", err)
	}

	result := &Result{Stats: Stats{RulesParsed: len(sheet.Rules)}}
	if len(sheet.Rules) > 0 {
		for _, element := range doc.Elements() {
			n, err := i.inlineElement(sheet, element)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				result.Stats.ElementsStyled++
				result.Stats.DeclarationsSet += n
			}
		}
	}

	kept, err := i.handleStyleTags(doc)
	if err != nil {
		return nil, err
	}
	result.Stats.StyleTagsKept = kept

	if result.HTML, err = doc.HTML(); err != nil {
		return nil, fmt.Errorf("failed to serialize HTML: %w", err)
	}
	i.log.Debug("Page inlined",
		zap.Int("rules", result.Stats.RulesParsed),
		zap.Int("elements", result.Stats.ElementsStyled),
		zap.Int("declarations", result.Stats.DeclarationsSet))
	return result, nil
}

// inlineElement returns how many declarations came from style rules.
func (i *Inliner) inlineElement(sheet *css.Stylesheet, element html.Node) (int, error) {
	if skipElement(element.TagName()) {
		return 0, nil
	}

	inline := element.GetInlineStyle()
	winners := i.resolver.Apply(sheet, element)
	if len(winners) == 0 {
		return 0, nil
	}

	// existing inline order first, then new properties alphabetically
	style := &css.Style{}
	changed := 0
	for _, d := range inline.Declarations() {
		w := winners[d.Property]
		if w != d {
			changed++
		}
		style.Set(w.Property, w.Value, w.Important)
		delete(winners, d.Property)
	}
	properties := make([]string, 0, len(winners))
	for property := range winners {
		properties = append(properties, property)
	}
	sort.Strings(properties)
	for _, property := range properties {
		w := winners[property]
		style.Set(w.Property, w.Value, w.Important)
	}
	changed += len(properties)

	if changed == 0 {
		return 0, nil
	}
	if err := element.SetInlineStyle(style); err != nil {
		return 0, fmt.Errorf("failed to set inline style on <%s>: %w", element.TagName(), err)
	}
	return changed, nil
}

// handleStyleTags drops the inlined tags. Tags carrying at-rules stay since
// @media and @keyframes cannot live in an attribute.
func (i *Inliner) handleStyleTags(doc html.Document) (int, error) {
	tags, err := doc.GetStyleTags()
	if err != nil {
		return 0, fmt.Errorf("failed to list style tags: %w", err)
	}

	kept := 0
	for _, tag := range tags {
		if i.opts.KeepStyleTags || strings.Contains(tag.Text(), "@") {
			kept++
			continue
		}
		if err := tag.Remove(); err != nil {
			return 0, fmt.Errorf("failed to remove style tag: %w", err)
		}
	}
	return kept, nil
}

func skipElement(tag string) bool {
	switch strings.ToLower(tag) {
	case "html", "head", "title", "meta", "link", "script", "style", "noscript", "base", "template":
		return true
	}
	return false
}
