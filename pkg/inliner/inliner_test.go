package inliner

import (
	"strings"
	"testing"
)

const page = `<html><head>
<style>p { color: red; } .big { font-size: 20px; } @media (max-width: 600px) { p { color: blue; } }</style>
<style>h1 { margin: 0; }</style>
</head><body><h1>Title</h1><p class="big" style="margin: 4px">x</p><span>y</span></body></html>`

func TestInline(t *testing.T) {
	res, err := New(Options{}, nil).Inline(page)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		`<h1 style="margin: 0">Title</h1>`,
		`<p class="big" style="margin: 4px; color: red; font-size: 20px">x</p>`,
		`<span>y</span>`,
		`@media`,
	} {
		if !strings.Contains(res.HTML, want) {
			t.Errorf("output lacks %q:\n%s", want, res.HTML)
		}
	}
	if strings.Contains(res.HTML, "h1 { margin: 0; }") {
		t.Error("fully inlined style tag kept")
	}

	want := Stats{RulesParsed: 3, ElementsStyled: 2, DeclarationsSet: 3, StyleTagsKept: 1}
	if res.Stats != want {
		t.Errorf("stats = %+v, want %+v", res.Stats, want)
	}
}

func TestInline_KeepStyleTags(t *testing.T) {
	res, err := New(Options{KeepStyleTags: true}, nil).Inline(page)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.StyleTagsKept != 2 || !strings.Contains(res.HTML, "h1 { margin: 0; }") {
		t.Errorf("stats = %+v\n%s", res.Stats, res.HTML)
	}
}

func TestInline_ImportantRuleBeatsInline(t *testing.T) {
	res, err := New(Options{}, nil).Inline(
		`<html><head><style>p { color: red !important; }</style></head><body><p style="color: blue">x</p></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.HTML, `style="color: red !important"`) {
		t.Errorf("output:\n%s", res.HTML)
	}
	if res.Stats.DeclarationsSet != 1 {
		t.Errorf("stats = %+v", res.Stats)
	}
}

func TestInline_NoRules(t *testing.T) {
	res, err := New(Options{}, nil).Inline(`<p style="color: blue">x</p>`)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats != (Stats{}) || !strings.Contains(res.HTML, `<p style="color: blue">x</p>`) {
		t.Errorf("result = %+v", res)
	}
}
