package html

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// compile turns a selector group into a goquery matcher.
func compile(selector string) (cascadia.Selector, error) {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return matcher, nil
}

// PlainText projects an element's content to plain text. Text nodes
// contribute their data and every <br> becomes a newline.
func PlainText(n *xhtml.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	writePlainText(&b, n)
	return b.String()
}

func writePlainText(b *strings.Builder, n *xhtml.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xhtml.TextNode:
			b.WriteString(c.Data)
		case xhtml.ElementNode:
			if c.DataAtom == atom.Br {
				b.WriteByte('\n')
				continue
			}
			writePlainText(b, c)
		}
	}
}

// SetPlainText replaces all children of n with text. Newlines become <br>
// elements; markup in text is kept literal and escaped on render.
func SetPlainText(n *xhtml.Node, text string) {
	if n == nil {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}

	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			n.AppendChild(&xhtml.Node{Type: xhtml.ElementNode, Data: "br", DataAtom: atom.Br})
		}
		if line != "" {
			n.AppendChild(&xhtml.Node{Type: xhtml.TextNode, Data: line})
		}
	}
}

// HasText reports whether n contains any non-whitespace text at any depth.
func HasText(n *xhtml.Node) bool {
	if n == nil {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xhtml.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return true
			}
		case xhtml.ElementNode:
			if HasText(c) {
				return true
			}
		}
	}
	return false
}

// HasDirectText reports whether one of n's own text children is non-blank.
func HasDirectText(n *xhtml.Node) bool {
	if n == nil {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xhtml.TextNode && strings.TrimSpace(c.Data) != "" {
			return true
		}
	}
	return false
}

// Contains reports whether n is root or one of its descendants.
func Contains(root, n *xhtml.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}
