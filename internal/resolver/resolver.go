package resolver

import (
	"fmt"

	"go.uber.org/zap"

	"pagesmith/internal/css"
	"pagesmith/internal/html"
)

// Resolver handles CSS cascade resolution and computes final styles for HTML
// elements from the document's own <style> tags
type Resolver struct {
	parser *css.Parser
	log    *zap.Logger
}

// New creates a new style resolver
func New(log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		parser: css.NewParser(log),
		log:    log.Named("resolver"),
	}
}

// Stylesheet collects every <style> tag of doc into a single stylesheet.
// Source order follows document order of the tags.
func (r *Resolver) Stylesheet(doc html.Document) (*css.Stylesheet, error) {
	tags, err := doc.GetStyleTags()
	if err != nil {
		return nil, fmt.Errorf("failed to list style tags: %w", err)
	}

	combined := &css.Stylesheet{}
	for _, tag := range tags {
		sheet, err := r.parser.Parse(tag.Text())
		if err != nil {
			r.log.Debug("Skipping unparsable style tag", zap.String("id", tag.ID()), zap.Error(err))
			continue
		}
		offset := len(combined.Rules)
		for _, rule := range sheet.Rules {
			rule.SourceOrder += offset
			combined.Rules = append(combined.Rules, rule)
		}
	}
	return combined, nil
}

// ResolveStyles computes the final styles for an HTML element following CSS
// cascade rules. Returns a map of property -> winning declaration.
func (r *Resolver) ResolveStyles(doc html.Document, node html.Node) (map[string]css.Declaration, error) {
	sheet, err := r.Stylesheet(doc)
	if err != nil {
		return nil, err
	}
	return r.Apply(sheet, node), nil
}

// Apply resolves node against an already collected stylesheet.
func (r *Resolver) Apply(sheet *css.Stylesheet, node html.Node) map[string]css.Declaration {
	return r.Cascade(sheet, node, node.GetInlineStyle())
}

// Cascade resolves node with inline standing in for its style attribute.
// A nil inline style resolves stylesheet rules only.
func (r *Resolver) Cascade(sheet *css.Stylesheet, node html.Node, inline *css.Style) map[string]css.Declaration {
	return applyCascade(findMatchingRules(sheet, node), inline)
}

// findMatchingRules finds all CSS rules that match the given HTML element
func findMatchingRules(sheet *css.Stylesheet, node html.Node) []*css.Rule {
	raw := node.Raw()
	if raw == nil || sheet == nil {
		return nil
	}

	var matches []*css.Rule
	for i := range sheet.Rules {
		rule := &sheet.Rules[i]
		if rule.Matcher != nil && rule.Matcher.Match(raw) {
			matches = append(matches, rule)
		}
	}
	return matches
}

// cascadeEntry tracks the cascade information for a declaration
type cascadeEntry struct {
	specificity css.Specificity
	sourceOrder int
}

// applyCascade determines which declarations win. Author rules are ordered
// by importance, then specificity, then source order; inline declarations
// carry inline specificity and come last.
func applyCascade(matches []*css.Rule, inline *css.Style) map[string]css.Declaration {
	winningDeclarations := make(map[string]css.Declaration)
	winningSpecs := make(map[string]cascadeEntry)

	consider := func(property string, declaration css.Declaration, entry cascadeEntry) {
		existing, seen := winningSpecs[property]
		if !seen || shouldReplace(entry, existing) {
			winningDeclarations[property] = declaration
			winningSpecs[property] = entry
		}
	}

	for _, rule := range matches {
		for property, declaration := range rule.Declarations {
			spec := rule.Specificity
			spec.Important = declaration.Important
			consider(property, declaration, cascadeEntry{specificity: spec, sourceOrder: rule.SourceOrder})
		}
	}

	if inline != nil {
		for _, declaration := range inline.Declarations() {
			consider(declaration.Property, declaration, cascadeEntry{
				specificity: css.SpecificityFromInline(declaration.Important),
				sourceOrder: int(^uint(0) >> 1),
			})
		}
	}

	return winningDeclarations
}

// shouldReplace determines if a new declaration should replace the existing winning declaration
func shouldReplace(newEntry, existingEntry cascadeEntry) bool {
	// Compare handles !important first, then specificity
	switch newEntry.specificity.Compare(existingEntry.specificity) {
	case 1:
		return true
	case -1:
		return false
	}

	// equal specificity: later source order wins
	return newEntry.sourceOrder >= existingEntry.sourceOrder
}
