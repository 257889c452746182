package sanitize

import (
	"fmt"
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"
)

// MaxHTMLSize is the largest document accepted for storage or deployment.
const MaxHTMLSize = 1_000_000

// TailwindCDN is the only script a page may carry.
const TailwindCDN = "https://cdn.tailwindcss.com"

var fencePattern = regexp.MustCompile("(?i)```(html)?\n?")

// StripFences removes Markdown code fences a model wraps around its output.
func StripFences(content string) string {
	content = fencePattern.ReplaceAllString(content, "")
	content = strings.ReplaceAll(content, "```", "")
	return strings.TrimSpace(content)
}

const skeleton = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Landing Page</title>
  <script src="` + TailwindCDN + `"></script>
</head>
<body>
%s
</body>
</html>`

// Wrap turns a fragment into a complete page. Content that already has an
// <html> element is returned unchanged.
func Wrap(content string) string {
	if strings.Contains(strings.ToLower(content), "<html") {
		return content
	}
	return fmt.Sprintf(skeleton, content)
}

// ValidationError explains why content was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

var (
	errEmpty     = &ValidationError{Reason: "HTML content is required and must be a string"}
	errTooLarge  = &ValidationError{Reason: "HTML content exceeds maximum size limit"}
	errDangerous = &ValidationError{Reason: "HTML content contains potentially dangerous elements"}
)

var dangerousMarkers = []string{"<iframe", "<object", "<embed", "javascript:", "data:text/html"}

// Validate rejects empty, oversized and unsafe documents. Scripts are
// allowed only when they load the Tailwind CDN.
func Validate(content string) error {
	if strings.TrimSpace(content) == "" {
		return errEmpty
	}
	if len(content) > MaxHTMLSize {
		return errTooLarge
	}

	lower := strings.ToLower(content)
	for _, marker := range dangerousMarkers {
		if strings.Contains(lower, marker) {
			return errDangerous
		}
	}
	if hasForeignScript(content) {
		return errDangerous
	}
	return nil
}

// hasForeignScript walks the token stream looking for a script element that
// is not the Tailwind loader.
func hasForeignScript(content string) bool {
	z := xhtml.NewTokenizer(strings.NewReader(content))
	inScript := false
	for {
		switch z.Next() {
		case xhtml.ErrorToken:
			return false
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "script" {
				continue
			}
			src := ""
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "src" {
					src = string(val)
				}
			}
			if src != "" && !strings.Contains(src, "tailwindcss") {
				return true
			}
			inScript = true
		case xhtml.TextToken:
			if inScript && strings.TrimSpace(string(z.Text())) != "" && !strings.Contains(string(z.Text()), "tailwind") {
				return true
			}
		case xhtml.EndTagToken:
			if name, _ := z.TagName(); string(name) == "script" {
				inScript = false
			}
		}
	}
}
