package css

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/andybalholm/cascadia"
	cssast "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"go.uber.org/zap"
)

// Parser handles CSS parsing and specificity calculation
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse parses CSS text into a Stylesheet. At-rules are not evaluated: the
// editor has no viewport, so @media and friends never match.
func (p *Parser) Parse(cssText string) (*Stylesheet, error) {
	sheet, err := parser.Parse(cssText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSS: %w", err)
	}

	stylesheet := &Stylesheet{Rules: make([]Rule, 0, len(sheet.Rules))}
	order := 0

	for _, rule := range sheet.Rules {
		if rule.Kind != cssast.QualifiedRule {
			p.log.Debug("Skipping @-rule", zap.String("rule", rule.Name))
			continue
		}

		declarations := convertDeclarations(rule.Declarations)
		if len(declarations) == 0 {
			continue
		}

		for _, selector := range rule.Selectors {
			sel, err := cascadia.Parse(selector)
			if err != nil {
				// unknown pseudo-classes and malformed selectors
				p.log.Debug("Skipping selector", zap.String("selector", selector), zap.Error(err))
				continue
			}
			stylesheet.Rules = append(stylesheet.Rules, Rule{
				Selector:     selector,
				Matcher:      sel,
				Specificity:  SpecificityOf(sel),
				Declarations: declarations,
				SourceOrder:  order,
			})
			order++
		}
	}

	return stylesheet, nil
}

// ParseInlineStyle parses inline style attribute into an ordered Style.
// Malformed input yields the declarations that could be read.
func (p *Parser) ParseInlineStyle(styleAttr string) *Style {
	style := &Style{}
	if strings.TrimSpace(styleAttr) == "" {
		return style
	}

	// the declaration parser drops a final declaration lacking its ';'
	text := strings.TrimSpace(styleAttr)
	if !strings.HasSuffix(text, ";") {
		text += ";"
	}

	decls, err := parser.ParseDeclarations(text)
	if err != nil {
		p.log.Debug("Malformed inline style", zap.String("style", styleAttr), zap.Error(err))
	}
	for _, d := range decls {
		if d == nil || d.Property == "" || d.Value == "" {
			continue
		}
		style.Set(d.Property, d.Value, d.Important)
	}
	return style
}

func convertDeclarations(list []*cssast.Declaration) map[string]Declaration {
	declarations := make(map[string]Declaration, len(list))
	for _, d := range list {
		if d == nil {
			continue
		}
		property := NormalizePropertyName(d.Property)
		value := strings.TrimSpace(d.Value)
		if property == "" || value == "" {
			continue
		}
		declarations[property] = Declaration{
			Property:  property,
			Value:     value,
			Important: d.Important,
		}
	}
	return declarations
}

// NormalizePropertyName normalizes CSS property names. Script-style
// camelCase names (fontSize, backgroundColor) are converted to their
// hyphenated form; custom properties are left alone.
func NormalizePropertyName(property string) string {
	property = strings.TrimSpace(property)
	if strings.HasPrefix(property, "--") {
		return property
	}

	var b strings.Builder
	b.Grow(len(property) + 4)
	prev := '-'
	for _, r := range property {
		if unicode.IsUpper(r) {
			if prev != '-' {
				b.WriteByte('-')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// FormatRule renders selectors sharing one declaration list, one block per
// selector, in the given order.
func FormatRule(selectors []string, decls ...Declaration) string {
	var b strings.Builder
	for _, sel := range selectors {
		b.WriteString(sel)
		b.WriteString(" { ")
		for _, d := range decls {
			b.WriteString(d.String())
			b.WriteString("; ")
		}
		b.WriteString("}\n")
	}
	return b.String()
}
