package editor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pagesmith/internal/css"
)

// sizeUtilities lists the font size utility classes a framework stylesheet
// may already apply with forced precedence, responsive variants included.
var sizeUtilities = func() []string {
	sizes := []string{"xs", "sm", "base", "lg", "xl", "2xl", "3xl", "4xl", "5xl", "6xl", "7xl", "8xl", "9xl"}
	prefixes := []string{"", "sm:", "md:", "lg:", "xl:", "2xl:"}

	classes := make([]string, 0, len(sizes)*len(prefixes))
	for _, prefix := range prefixes {
		for _, size := range sizes {
			classes = append(classes, prefix+"text-"+size)
		}
	}
	return classes
}()

// applyStyle sets property on the element. Font size goes through an
// injected rule, every other property becomes an !important inline
// declaration on the base style.
func (c *controller) applyStyle(rec *record, property, value string) error {
	property = css.NormalizePropertyName(property)
	value = strings.TrimSpace(value)
	if property == "" {
		return fmt.Errorf("empty style property")
	}

	if property == "font-size" {
		return c.overrideFontSize(rec, NormalizeFontSize(value))
	}
	return c.setBase(rec, property, value, true)
}

// overrideFontSize replaces the element's font size rule. The element keeps
// one identifier for its lifetime in the session and owns at most one rule
// node.
func (c *controller) overrideFontSize(rec *record, value string) error {
	if removed := rec.node.RemoveClasses(sizeUtilities...); removed > 0 {
		c.log.Debug("Stripped size utilities", zap.String("tag", rec.node.TagName()), zap.Int("count", removed))
	}

	// an inline !important font size would still beat the rule
	if err := c.removeBase(rec, "font-size"); err != nil {
		return err
	}

	id, err := c.assignID(rec)
	if err != nil {
		return err
	}
	if err := c.removeRule(rec); err != nil {
		return err
	}

	ruleID := ruleIDPrefix + id
	content := css.FormatRule(scopedSelectors(id), css.Declaration{
		Property:  "font-size",
		Value:     value,
		Important: true,
	})
	if _, err := c.doc.CreateStyleTag(ruleID, content); err != nil {
		return fmt.Errorf("failed to inject font size rule: %w", err)
	}
	rec.ruleID = ruleID
	return nil
}

// assignID gives rec an editor identifier, reusing the one it already has.
func (c *controller) assignID(rec *record) (string, error) {
	if rec.editorID == "" {
		rec.editorID = editorIDPrefix + uuid.NewString()
	}
	if err := rec.node.SetAttribute(editorIDAttr, rec.editorID); err != nil {
		return "", fmt.Errorf("failed to assign editor id: %w", err)
	}
	return rec.editorID, nil
}

// scopedSelectors returns the attribute selector for id at three ascending
// specificities.
func scopedSelectors(id string) []string {
	attr := fmt.Sprintf(`[%s="%s"]`, editorIDAttr, id)
	return []string{attr, "html " + attr, "html body " + attr}
}

// NormalizeFontSize appends px to a bare number. Anything else is returned
// unchanged.
func NormalizeFontSize(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return value + "px"
	}
	return value
}
