package html

import (
	"strings"
	"testing"
)

func TestPlainText(t *testing.T) {
	doc := mustParse(t, `<p>one<br>two <b>bold</b><br></p>`)
	p, _ := doc.QuerySelector("p")

	if got := PlainText(p.Raw()); got != "one\ntwo bold\n" {
		t.Errorf("PlainText = %q", got)
	}
}

func TestSetPlainText(t *testing.T) {
	doc := mustParse(t, `<p>old <i>content</i></p>`)
	p, _ := doc.QuerySelector("p")

	SetPlainText(p.Raw(), "Line one\nLine <two>\n\nend")
	page, err := doc.HTML()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(page, "<p>Line one<br/>Line &lt;two&gt;<br/><br/>end</p>") {
		t.Errorf("rendered = %q", page)
	}
	if got := PlainText(p.Raw()); got != "Line one\nLine <two>\n\nend" {
		t.Errorf("round trip = %q", got)
	}
}

func TestSetPlainTextEmpty(t *testing.T) {
	doc := mustParse(t, `<span>x</span>`)
	span, _ := doc.QuerySelector("span")
	SetPlainText(span.Raw(), "")
	if span.Raw().FirstChild != nil {
		t.Error("expected no children")
	}
}

func TestHasText(t *testing.T) {
	doc := mustParse(t, `<div id="a">  <span> </span></div><div id="b"><span>x</span></div><div id="c">loose<span></span></div>`)

	tests := []struct {
		sel          string
		text, direct bool
	}{
		{"#a", false, false},
		{"#b", true, false},
		{"#c", true, true},
	}
	for _, tt := range tests {
		n, err := doc.QuerySelector(tt.sel)
		if err != nil {
			t.Fatal(err)
		}
		if got := HasText(n.Raw()); got != tt.text {
			t.Errorf("HasText(%s) = %v", tt.sel, got)
		}
		if got := HasDirectText(n.Raw()); got != tt.direct {
			t.Errorf("HasDirectText(%s) = %v", tt.sel, got)
		}
	}
}

func TestContains(t *testing.T) {
	doc := mustParse(t, `<div><section><a>x</a></section></div>`)
	a, _ := doc.QuerySelector("a")
	div, _ := doc.QuerySelector("div")

	if !Contains(div.Raw(), a.Raw()) || Contains(a.Raw(), div.Raw()) {
		t.Error("Contains mismatch")
	}
	if !Contains(a.Raw(), a.Raw()) {
		t.Error("a node contains itself")
	}
}
