package css

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Specificity represents CSS specificity with individual components
// Following CSS specification: inline, IDs, classes/attributes/pseudo-classes, elements/pseudo-elements
type Specificity struct {
	Inline    int  // style="" attribute (always 1000 when present)
	IDs       int  // #id selectors
	Classes   int  // .class, [attr], :pseudo-class
	Elements  int  // element, ::pseudo-element
	Important bool // !important flag
}

// Compare returns -1 if s < other, 0 if equal, 1 if s > other
// Important declarations always win regardless of specificity
func (s Specificity) Compare(other Specificity) int {
	if s.Important != other.Important {
		if s.Important {
			return 1
		}
		return -1
	}

	for _, pair := range [][2]int{
		{s.Inline, other.Inline},
		{s.IDs, other.IDs},
		{s.Classes, other.Classes},
		{s.Elements, other.Elements},
	} {
		if pair[0] != pair[1] {
			if pair[0] > pair[1] {
				return 1
			}
			return -1
		}
	}

	return 0
}

func (s Specificity) String() string {
	important := ""
	if s.Important {
		important = " !important"
	}
	return fmt.Sprintf("(%d,%d,%d,%d)%s", s.Inline, s.IDs, s.Classes, s.Elements, important)
}

// SpecificityOf converts a compiled selector's specificity.
func SpecificityOf(sel cascadia.Sel) Specificity {
	spec := sel.Specificity()
	return Specificity{IDs: spec[0], Classes: spec[1], Elements: spec[2]}
}

// SpecificityFromInline creates a specificity for inline styles
func SpecificityFromInline(important bool) Specificity {
	return Specificity{Inline: 1000, Important: important}
}

// Rule represents a single CSS rule with its selector and declarations
type Rule struct {
	Selector     string                 // Original selector text
	Matcher      cascadia.Sel           // Compiled selector
	Specificity  Specificity            // Calculated specificity
	Declarations map[string]Declaration // property -> declaration mapping
	SourceOrder  int                    // Order in original CSS (for tie-breaking)
}

// Declaration represents a single CSS property declaration
type Declaration struct {
	Property  string // CSS property name (normalized)
	Value     string // CSS property value
	Important bool   // !important flag
}

// String renders the declaration without a trailing semicolon.
func (d Declaration) String() string {
	if d.Important {
		return d.Property + ": " + d.Value + " !important"
	}
	return d.Property + ": " + d.Value
}

// Stylesheet represents the complete parsed CSS with all rules
type Stylesheet struct {
	Rules []Rule // All CSS rules in source order
}

// Style is an ordered inline declaration list, the model behind a style
// attribute. Order is preserved so serialization is stable.
type Style struct {
	decls []Declaration
}

// Len returns the number of declarations.
func (s *Style) Len() int { return len(s.decls) }

// Declarations returns a copy of the declarations in order.
func (s *Style) Declarations() []Declaration {
	out := make([]Declaration, len(s.decls))
	copy(out, s.decls)
	return out
}

// Get returns the declaration for property, if present.
func (s *Style) Get(property string) (Declaration, bool) {
	property = NormalizePropertyName(property)
	for _, d := range s.decls {
		if d.Property == property {
			return d, true
		}
	}
	return Declaration{}, false
}

// Set replaces property in place or appends it.
func (s *Style) Set(property, value string, important bool) {
	property = NormalizePropertyName(property)
	d := Declaration{Property: property, Value: value, Important: important}
	for i := range s.decls {
		if s.decls[i].Property == property {
			s.decls[i] = d
			return
		}
	}
	s.decls = append(s.decls, d)
}

// Remove deletes property. Reports whether it was present.
func (s *Style) Remove(property string) bool {
	property = NormalizePropertyName(property)
	for i := range s.decls {
		if s.decls[i].Property == property {
			s.decls = append(s.decls[:i], s.decls[i+1:]...)
			return true
		}
	}
	return false
}

// Merge returns a new Style with other's declarations layered over s.
func (s *Style) Merge(other *Style) *Style {
	out := &Style{decls: s.Declarations()}
	if other == nil {
		return out
	}
	for _, d := range other.decls {
		out.Set(d.Property, d.Value, d.Important)
	}
	return out
}

// Clone returns an independent copy.
func (s *Style) Clone() *Style {
	return &Style{decls: s.Declarations()}
}

// String formats the style as an attribute value.
func (s *Style) String() string {
	if len(s.decls) == 0 {
		return ""
	}
	parts := make([]string, 0, len(s.decls))
	for _, d := range s.decls {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, "; ")
}
