package html

import (
	xhtml "golang.org/x/net/html"

	"pagesmith/internal/css"
)

// Node represents an HTML element in the live document.
// This interface can be implemented by any HTML parsing library
type Node interface {
	// Core node information
	TagName() string
	ID() string
	Classes() []string
	Attr(name string) (string, bool)

	// Content access
	Text() string

	// Tree navigation
	Parent() Node
	Raw() *xhtml.Node

	// Style manipulation
	GetInlineStyle() *css.Style
	SetInlineStyle(style *css.Style) error

	// Modification
	SetAttribute(name, value string) error
	RemoveAttribute(name string) error
	RemoveClasses(names ...string) int
	Remove() error
}

// Document represents the complete HTML document
type Document interface {
	// Root access
	Root() Node
	Head() Node
	Body() Node

	// Element selection
	QuerySelector(selector string) (Node, error)
	Elements() []Node
	Wrap(n *xhtml.Node) Node

	// Style tag management
	GetStyleTags() ([]Node, error)
	CreateStyleTag(id, content string) (Node, error)
	StyleTagByID(id string) Node

	// Serialization
	HTML() (string, error)
}

// Parser handles parsing HTML documents
type Parser interface {
	Parse(html string) (Document, error)
}
