package deploy

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"
)

// headersFile forces the served page to be read as UTF-8 HTML.
const headersFile = `/*
  Content-Type: text/html; charset=UTF-8
`

// Bundle packs page as index.html next to a _headers file, the layout a
// static host expects for a single page site.
func Bundle(page string, modified time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	files := []struct {
		name, content string
	}{
		{"_headers", headersFile},
		{"index.html", page},
	}
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", f.name, err)
		}
		if _, err := w.Write([]byte(f.content)); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish bundle: %w", err)
	}
	return buf.Bytes(), nil
}
