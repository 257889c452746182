package editor

import (
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"pagesmith/internal/html"
)

// Rule names the resolver step that picked a selection.
type Rule int

const (
	// RuleTextual: the target is a text-bearing tag with text.
	RuleTextual Rule = iota + 1
	// RuleDirectText: the target is a container with its own text.
	RuleDirectText
	// RuleDescendant: the first text-bearing descendant with text.
	RuleDescendant
	// RuleFallback: nothing better, the target itself.
	RuleFallback
	// RuleExplicit: selected directly by the host.
	RuleExplicit
)

func (r Rule) String() string {
	switch r {
	case RuleTextual:
		return "textual"
	case RuleDirectText:
		return "direct-text"
	case RuleDescendant:
		return "descendant"
	case RuleFallback:
		return "fallback"
	case RuleExplicit:
		return "explicit"
	default:
		return "unknown"
	}
}

var textualTags = map[atom.Atom]bool{
	atom.H1:     true,
	atom.H2:     true,
	atom.H3:     true,
	atom.H4:     true,
	atom.H5:     true,
	atom.H6:     true,
	atom.P:      true,
	atom.Span:   true,
	atom.A:      true,
	atom.Button: true,
	atom.Li:     true,
}

func isTextual(n *xhtml.Node) bool {
	return n.Type == xhtml.ElementNode && textualTags[n.DataAtom]
}

// ResolveTarget picks the element a click on target most likely means.
// A div holding its own text is checked before its descendants. Searching
// descendants first would make <div>Loose text<span>X</span></div>
// unselectable as a whole, since the span always wins.
func ResolveTarget(target *xhtml.Node) (*xhtml.Node, Rule) {
	if target == nil || target.Type != xhtml.ElementNode {
		return target, RuleFallback
	}

	if isTextual(target) && html.HasText(target) {
		return target, RuleTextual
	}

	if target.DataAtom == atom.Div && html.HasDirectText(target) {
		return target, RuleDirectText
	}

	if found := firstTextualDescendant(target); found != nil {
		return found, RuleDescendant
	}

	return target, RuleFallback
}

// firstTextualDescendant walks target's subtree in document order.
func firstTextualDescendant(target *xhtml.Node) *xhtml.Node {
	for c := target.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xhtml.ElementNode {
			continue
		}
		if isTextual(c) && html.HasText(c) {
			return c
		}
		if found := firstTextualDescendant(c); found != nil {
			return found
		}
	}
	return nil
}
