package editor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	xhtml "golang.org/x/net/html"

	"pagesmith/internal/css"
	"pagesmith/internal/html"
)

// Panel is the edit state published for the selected element.
type Panel struct {
	Tag             string `json:"tag"`
	Rule            string `json:"rule"`
	Text            string `json:"text"`
	Color           string `json:"color"`
	BackgroundColor string `json:"backgroundColor"`
	FontSize        string `json:"fontSize"`
	FontWeight      string `json:"fontWeight"`
	FontStyle       string `json:"fontStyle"`
	TextDecoration  string `json:"textDecoration"`
	Dirty           bool   `json:"dirty"`
}

// inherited properties fall back to the nearest ancestor that sets them.
var inherited = map[string]bool{
	"color":       true,
	"font-size":   true,
	"font-weight": true,
	"font-style":  true,
}

// styleValue reads property for rec: its own inline declaration first, then
// the document's style rules, then ancestors for inherited properties.
func (s *Session) styleValue(rec *record, property string, sheet *css.Stylesheet) string {
	property = css.NormalizePropertyName(property)

	for n := rec.node.Raw(); n != nil && n.Type == xhtml.ElementNode; n = n.Parent {
		node := s.doc.Wrap(n)

		inline := node.GetInlineStyle()
		if r, ok := s.ctrl.records[n]; ok {
			inline = r.base
		}
		value := ""
		if d, ok := inline.Get(property); ok {
			value = d.Value
		} else if d, ok := s.resolver.Cascade(sheet, node, nil)[property]; ok {
			value = d.Value
		}

		if value != "" && value != "inherit" {
			return value
		}
		if !inherited[property] && value != "inherit" {
			break
		}
	}
	return ""
}

// panel captures the current values of rec. Callers hold s.mu.
func (s *Session) panel(rec *record, rule Rule) Panel {
	sheet, err := s.resolver.Stylesheet(s.doc)
	if err != nil {
		s.log.Debug("Style rules unavailable", zap.Error(err))
		sheet = &css.Stylesheet{}
	}

	return Panel{
		Tag:             rec.node.TagName(),
		Rule:            rule.String(),
		Text:            html.PlainText(rec.node.Raw()),
		Color:           s.styleValue(rec, "color", sheet),
		BackgroundColor: s.styleValue(rec, "background-color", sheet),
		FontSize:        s.styleValue(rec, "font-size", sheet),
		FontWeight:      s.styleValue(rec, "font-weight", sheet),
		FontStyle:       s.styleValue(rec, "font-style", sheet),
		TextDecoration:  s.styleValue(rec, "text-decoration", sheet),
		Dirty:           s.dirty,
	}
}

// styleActive mirrors the toolbar state: weights of 600 and up count as
// bold, decorations match by substring, everything else by equality.
func styleActive(property, current, value string) bool {
	switch css.NormalizePropertyName(property) {
	case "font-weight":
		bold := isBold(current)
		if value == "bold" {
			return bold
		}
		return !bold
	case "text-decoration":
		return strings.Contains(current, value)
	default:
		return current == value
	}
}

func isBold(weight string) bool {
	weight = strings.TrimSpace(weight)
	if weight == "bold" || weight == "700" {
		return true
	}
	end := 0
	for end < len(weight) && weight[end] >= '0' && weight[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(weight[:end])
	return err == nil && n >= 600
}

var rgbPattern = regexp.MustCompile(`rgb\((\d+),\s*(\d+),\s*(\d+)\)`)

// ColorHex converts a color value for a color picker. Transparent and empty
// values map to white, unreadable ones to black.
func ColorHex(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || value == "transparent" || value == "rgba(0, 0, 0, 0)" {
		return "#ffffff"
	}
	if strings.HasPrefix(value, "#") {
		return value
	}

	m := rgbPattern.FindStringSubmatch(value)
	if m == nil {
		return "#000000"
	}
	var rgb [3]int
	for i := range rgb {
		v, _ := strconv.Atoi(m[i+1])
		rgb[i] = min(v, 255)
	}
	return fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2])
}
