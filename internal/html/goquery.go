package html

import (
	"fmt"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"pagesmith/internal/css"
)

// styleParser reads style attributes. Inline style parsing has no state
// worth logging per document.
var styleParser = css.NewParser(nil)

// GoQueryDocument wraps goquery.Document to implement our Document interface
type GoQueryDocument struct {
	doc *goquery.Document
}

// GoQueryNode wraps goquery.Selection to implement our Node interface
type GoQueryNode struct {
	selection *goquery.Selection
	doc       *GoQueryDocument
}

// GoQueryParser implements our Parser interface using goquery
type GoQueryParser struct{}

// NewParser creates a new GoQuery-based HTML parser
func NewParser() *GoQueryParser {
	return &GoQueryParser{}
}

// Parse parses HTML string into a Document. Fragments are placed into the
// body of a synthesized document, the same way a browser would.
func (p *GoQueryParser) Parse(htmlStr string) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return &GoQueryDocument{doc: doc}, nil
}

// Document implementation

// Root returns the root HTML element
func (d *GoQueryDocument) Root() Node {
	selection := d.doc.Find("html").First()
	if selection.Length() == 0 {
		selection = d.doc.Selection
	}
	return &GoQueryNode{selection: selection, doc: d}
}

// Head returns the head element
func (d *GoQueryDocument) Head() Node {
	return &GoQueryNode{selection: d.doc.Find("head").First(), doc: d}
}

// Body returns the body element
func (d *GoQueryDocument) Body() Node {
	return &GoQueryNode{selection: d.doc.Find("body").First(), doc: d}
}

// QuerySelector returns the first element matching the selector
func (d *GoQueryDocument) QuerySelector(selector string) (Node, error) {
	matcher, err := compile(selector)
	if err != nil {
		return nil, err
	}
	selection := d.doc.FindMatcher(matcher).First()
	if selection.Length() == 0 {
		return nil, fmt.Errorf("no element found for selector: %s", selector)
	}
	return &GoQueryNode{selection: selection, doc: d}, nil
}

// Elements returns every element of the document in document order.
func (d *GoQueryDocument) Elements() []Node {
	return d.nodes(d.doc.Find("*"))
}

// Wrap returns the Node for a raw element of this document.
func (d *GoQueryDocument) Wrap(n *xhtml.Node) Node {
	return &GoQueryNode{selection: d.doc.FindNodes(n), doc: d}
}

// GetStyleTags returns all <style> elements
func (d *GoQueryDocument) GetStyleTags() ([]Node, error) {
	return d.nodes(d.doc.Find("style")), nil
}

// CreateStyleTag creates a new <style> element with content at the end of head
func (d *GoQueryDocument) CreateStyleTag(id, content string) (Node, error) {
	head := d.doc.Find("head").First()
	if head.Length() == 0 {
		return nil, fmt.Errorf("no head element found")
	}

	style := &xhtml.Node{
		Type:     xhtml.ElementNode,
		Data:     "style",
		DataAtom: atom.Style,
	}
	if id != "" {
		style.Attr = append(style.Attr, xhtml.Attribute{Key: "id", Val: id})
	}
	style.AppendChild(&xhtml.Node{Type: xhtml.TextNode, Data: content})
	head.Get(0).AppendChild(style)

	return d.Wrap(style), nil
}

// StyleTagByID returns the <style> element carrying id, or nil.
func (d *GoQueryDocument) StyleTagByID(id string) Node {
	selection := d.doc.Find("style").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, ok := s.Attr("id")
		return ok && v == id
	}).First()
	if selection.Length() == 0 {
		return nil
	}
	return &GoQueryNode{selection: selection, doc: d}
}

// HTML returns the complete HTML document as string
func (d *GoQueryDocument) HTML() (string, error) {
	var buf strings.Builder
	for n := d.doc.Get(0).FirstChild; n != nil; n = n.NextSibling {
		if err := xhtml.Render(&buf, n); err != nil {
			return "", fmt.Errorf("failed to serialize HTML: %w", err)
		}
	}
	return buf.String(), nil
}

func (d *GoQueryDocument) nodes(selection *goquery.Selection) []Node {
	nodes := make([]Node, selection.Length())
	selection.Each(func(i int, s *goquery.Selection) {
		nodes[i] = &GoQueryNode{selection: s, doc: d}
	})
	return nodes
}

// Node implementation

// TagName returns the element's tag name
func (n *GoQueryNode) TagName() string {
	if n.selection.Length() == 0 {
		return ""
	}
	return goquery.NodeName(n.selection)
}

// ID returns the element's ID attribute
func (n *GoQueryNode) ID() string {
	id, _ := n.selection.Attr("id")
	return id
}

// Classes returns the element's class list
func (n *GoQueryNode) Classes() []string {
	class, exists := n.selection.Attr("class")
	if !exists || class == "" {
		return []string{}
	}
	return strings.Fields(class)
}

// Attr returns an attribute value and whether it is present
func (n *GoQueryNode) Attr(name string) (string, bool) {
	return n.selection.Attr(name)
}

// Text returns the text content
func (n *GoQueryNode) Text() string {
	return n.selection.Text()
}

// Parent returns the parent element
func (n *GoQueryNode) Parent() Node {
	parent := n.selection.Parent()
	if parent.Length() == 0 {
		return nil
	}
	return &GoQueryNode{selection: parent, doc: n.doc}
}

// Raw returns the underlying html node
func (n *GoQueryNode) Raw() *xhtml.Node {
	if n.selection.Length() == 0 {
		return nil
	}
	return n.selection.Get(0)
}

// GetInlineStyle parses and returns the inline style attribute
func (n *GoQueryNode) GetInlineStyle() *css.Style {
	styleAttr, _ := n.selection.Attr("style")
	return styleParser.ParseInlineStyle(styleAttr)
}

// SetInlineStyle sets the complete inline style attribute. An empty style
// removes the attribute rather than leaving style="".
func (n *GoQueryNode) SetInlineStyle(style *css.Style) error {
	if n.selection.Length() == 0 {
		return fmt.Errorf("no element to set style on")
	}

	if style == nil || style.Len() == 0 {
		n.selection.RemoveAttr("style")
		return nil
	}
	n.selection.SetAttr("style", style.String())
	return nil
}

// SetAttribute sets an attribute on the element
func (n *GoQueryNode) SetAttribute(name, value string) error {
	if n.selection.Length() == 0 {
		return fmt.Errorf("no element to set attribute on")
	}
	n.selection.SetAttr(name, value)
	return nil
}

// RemoveAttribute removes an attribute from the element
func (n *GoQueryNode) RemoveAttribute(name string) error {
	if n.selection.Length() == 0 {
		return fmt.Errorf("no element to remove attribute from")
	}
	n.selection.RemoveAttr(name)
	return nil
}

// RemoveClasses drops the given class names and returns how many were
// present. The class attribute is removed once it would be empty.
func (n *GoQueryNode) RemoveClasses(names ...string) int {
	classes := n.Classes()
	kept := classes[:0:0]
	for _, c := range classes {
		if !slices.Contains(names, c) {
			kept = append(kept, c)
		}
	}
	removed := len(classes) - len(kept)
	if removed == 0 {
		return 0
	}
	if len(kept) == 0 {
		n.selection.RemoveAttr("class")
	} else {
		n.selection.SetAttr("class", strings.Join(kept, " "))
	}
	return removed
}

// Remove detaches the element from the document
func (n *GoQueryNode) Remove() error {
	if n.selection.Length() == 0 {
		return fmt.Errorf("no element to remove")
	}
	n.selection.Remove()
	return nil
}
