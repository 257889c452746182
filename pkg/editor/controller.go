package editor

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	xhtml "golang.org/x/net/html"

	"pagesmith/internal/css"
	"pagesmith/internal/html"
)

const (
	editorIDAttr   = "data-editor-id"
	editorIDPrefix = "editor-element-"
	ruleIDPrefix   = "editor-style-"
)

// record is the shadow state the controller keeps for one element. The live
// style attribute is always base layered with overlay.
type record struct {
	node html.Node

	// original attribute text, written back verbatim while base is unedited
	original string
	hadStyle bool
	edited   bool

	base    *css.Style
	overlay *css.Style

	editorID string
	ruleID   string
}

func (r *record) baseAttr() (string, bool) {
	if !r.edited {
		return r.original, r.hadStyle
	}
	return r.base.String(), r.base.Len() > 0
}

// controller owns every editor side effect on the document. All mutations
// of style attributes, identifiers and injected rules go through it so
// teardown can be driven from its records.
type controller struct {
	doc     html.Document
	records map[*xhtml.Node]*record
	order   []*xhtml.Node
	log     *zap.Logger
}

func newController(doc html.Document, log *zap.Logger) *controller {
	return &controller{
		doc:     doc,
		records: make(map[*xhtml.Node]*record),
		log:     log,
	}
}

// record returns the shadow record for n, adopting the element on first use.
func (c *controller) record(n *xhtml.Node) *record {
	if rec, ok := c.records[n]; ok {
		return rec
	}

	node := c.doc.Wrap(n)
	original, hadStyle := node.Attr("style")
	rec := &record{
		node:     node,
		original: original,
		hadStyle: hadStyle,
		base:     node.GetInlineStyle(),
		overlay:  &css.Style{},
	}

	// identifiers and rules left by an earlier session are adopted so new
	// edits replace them instead of piling up next to them
	if id, ok := node.Attr(editorIDAttr); ok && strings.HasPrefix(id, editorIDPrefix) {
		rec.editorID = id
		if c.doc.StyleTagByID(ruleIDPrefix+id) != nil {
			rec.ruleID = ruleIDPrefix + id
		}
	}

	c.records[n] = rec
	c.order = append(c.order, n)
	return rec
}

// sync writes base ⊕ overlay to the live style attribute.
func (c *controller) sync(rec *record) error {
	if rec.overlay.Len() == 0 {
		return c.writeBase(rec)
	}
	return rec.node.SetInlineStyle(rec.base.Merge(rec.overlay))
}

func (c *controller) writeBase(rec *record) error {
	attr, ok := rec.baseAttr()
	if !ok {
		return rec.node.RemoveAttribute("style")
	}
	return rec.node.SetAttribute("style", attr)
}

func (c *controller) setOverlay(rec *record, decls ...css.Declaration) error {
	for _, d := range decls {
		rec.overlay.Set(d.Property, d.Value, d.Important)
	}
	return c.sync(rec)
}

func (c *controller) clearOverlay(rec *record, properties ...string) error {
	changed := false
	for _, p := range properties {
		if rec.overlay.Remove(p) {
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return c.sync(rec)
}

func (c *controller) setBase(rec *record, property, value string, important bool) error {
	rec.base.Set(property, value, important)
	rec.edited = true
	return c.sync(rec)
}

func (c *controller) removeBase(rec *record, property string) error {
	if !rec.base.Remove(property) {
		return nil
	}
	rec.edited = true
	return c.sync(rec)
}

// withoutOverlay runs fn while every live style attribute shows only its
// base declarations.
func (c *controller) withoutOverlay(fn func() (string, error)) (string, error) {
	var decorated []*record
	for _, n := range c.order {
		rec := c.records[n]
		if rec.overlay.Len() == 0 {
			continue
		}
		if err := c.writeBase(rec); err != nil {
			return "", err
		}
		decorated = append(decorated, rec)
	}

	out, err := fn()

	for _, rec := range decorated {
		err = multierr.Append(err, c.sync(rec))
	}
	return out, err
}

// removeRule drops the injected rule node of rec, if any.
func (c *controller) removeRule(rec *record) error {
	if rec.ruleID == "" {
		return nil
	}
	id := rec.ruleID
	rec.ruleID = ""
	if tag := c.doc.StyleTagByID(id); tag != nil {
		if err := tag.Remove(); err != nil {
			return fmt.Errorf("failed to remove rule %s: %w", id, err)
		}
	}
	return nil
}

// forget releases n: its rule node goes away and its record is dropped.
// Used for elements detached by a text edit.
func (c *controller) forget(n *xhtml.Node) error {
	rec, ok := c.records[n]
	if !ok {
		return nil
	}
	delete(c.records, n)
	for i, o := range c.order {
		if o == n {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return c.removeRule(rec)
}

// injectedRules counts the rule nodes currently owned by records.
func (c *controller) injectedRules() int {
	count := 0
	for _, n := range c.order {
		rec, ok := c.records[n]
		if ok && rec.ruleID != "" && c.doc.StyleTagByID(rec.ruleID) != nil {
			count++
		}
	}
	return count
}

// teardown restores every element to its base style and strips all
// identifiers and injected rules. It visits every record even when some
// fail.
func (c *controller) teardown() error {
	var err error
	for _, n := range c.order {
		rec, ok := c.records[n]
		if !ok {
			continue
		}
		rec.overlay = &css.Style{}
		err = multierr.Append(err, c.writeBase(rec))
		err = multierr.Append(err, c.removeRule(rec))
		if rec.editorID != "" {
			err = multierr.Append(err, rec.node.RemoveAttribute(editorIDAttr))
			rec.editorID = ""
		}
	}

	// rules whose element was already gone
	if tags, tagErr := c.doc.GetStyleTags(); tagErr == nil {
		for _, tag := range tags {
			if strings.HasPrefix(tag.ID(), ruleIDPrefix+editorIDPrefix) {
				err = multierr.Append(err, tag.Remove())
			}
		}
	}

	c.records = make(map[*xhtml.Node]*record)
	c.order = nil
	if err != nil {
		c.log.Warn("Teardown incomplete", zap.Error(err))
	}
	return err
}
