package sanitize

import (
	"errors"
	"strings"
	"testing"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"html fence", "```html\n<p>x</p>\n```", "<p>x</p>"},
		{"upper case", "```HTML\n<p>x</p>```", "<p>x</p>"},
		{"bare fence", "```\n<div></div>\n```\n", "<div></div>"},
		{"no fence", "  <p>plain</p>  ", "<p>plain</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.in); got != tt.want {
				t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	page := "<!DOCTYPE html><HTML><body>x</body></HTML>"
	if got := Wrap(page); got != page {
		t.Errorf("complete page was rewrapped: %q", got)
	}

	got := Wrap("<h1>Hello</h1>")
	for _, want := range []string{"<!DOCTYPE html>", `<script src="https://cdn.tailwindcss.com"></script>`, "<body>\n<h1>Hello</h1>\n</body>"} {
		if !strings.Contains(got, want) {
			t.Errorf("wrapped page is missing %q:\n%s", want, got)
		}
	}
	if err := Validate(got); err != nil {
		t.Errorf("wrapped page fails validation: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"plain page", "<p>hello</p>", false},
		{"tailwind loader", `<head><script src="https://cdn.tailwindcss.com"></script></head>`, false},
		{"tailwind config", `<script>tailwind.config = { theme: {} }</script>`, false},
		{"empty", "   ", true},
		{"too large", strings.Repeat("a", MaxHTMLSize+1), true},
		{"inline script", `<script>alert(1)</script>`, true},
		{"remote script", `<script src="https://evil.example/x.js"></script>`, true},
		{"iframe", `<IFRAME src="x"></IFRAME>`, true},
		{"object", `<object data="x"></object>`, true},
		{"embed", `<embed src="x">`, true},
		{"javascript url", `<a href="JavaScript:void(0)">x</a>`, true},
		{"data url", `<a href="data:text/html;base64,AAAA">x</a>`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.content)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("error %T is not a *ValidationError", err)
				}
			}
		})
	}
}

func TestPrompt(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr string
	}{
		{"plain", "  A landing page for a bakery  ", "A landing page for a bakery", ""},
		{"markup stripped", "<b>Coffee</b> shop & roastery<script>x()</script>", "Coffee shop & roastery", ""},
		{"empty", " ", "", "required"},
		{"too short", "tiny", "", "at least 10"},
		{"short after stripping", "<div><span>abc</span></div>", "", "at least 10"},
		{"too long", strings.Repeat("é", MaxPromptLength+1), "", "maximum length"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Prompt(tt.in)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Prompt() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Prompt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOutline(t *testing.T) {
	page := Wrap(`<nav class="flex"><a href="/pricing">Pricing</a></nav>
<section class="hero"><h1 style="color:red">Fresh bread</h1>
<p>Baked <strong>daily</strong>.</p>
<svg viewBox="0 0 10 10"><title>icon</title><path d="M0 0"/></svg>
<ul><li>Rye</li><li>Sourdough</li></ul></section>`)

	got, err := NewOutliner().Outline(page)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"[Pricing](/pricing)", "# Fresh bread", "Baked **daily**.", "- Rye", "- Sourdough"} {
		if !strings.Contains(got, want) {
			t.Errorf("outline is missing %q:\n%s", want, got)
		}
	}
	for _, unwanted := range []string{"Landing Page", "icon", "tailwindcss", "color:red"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("outline contains %q:\n%s", unwanted, got)
		}
	}
}
