// Package htmlstrip converts HTML message bodies to plain text suitable
// for task notes, using a streaming tokenizer.
package htmlstrip

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// skipElements are elements whose text content is discarded.
var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"head":     true,
	"title":    true,
}

// blockElements are elements that force a line break in the output.
var blockElements = map[string]bool{
	"p": true, "div": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "li": true, "blockquote": true,
	"pre": true, "table": true, "tr": true,
	"section": true, "article": true, "header": true, "footer": true,
}

// reader wraps an HTML stream and emits plain text.
type reader struct {
	tokenizer *html.Tokenizer
	buf       bytes.Buffer
	done      bool
	skipDepth int // depth counter for elements being skipped
	lastBreak bool
	lastSpace bool
	hasOutput bool
}

// NewReader wraps an HTML io.Reader and returns a reader that emits
// plain text incrementally.
func NewReader(r io.Reader) io.Reader {
	return &reader{
		tokenizer: html.NewTokenizer(r),
	}
}

// Strip converts an HTML string to plain text, trimming surrounding
// whitespace.
func Strip(s string) string {
	out, err := io.ReadAll(NewReader(strings.NewReader(s)))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(out))
}

func (r *reader) Read(p []byte) (int, error) {
	for r.buf.Len() < len(p) && !r.done {
		if !r.next() {
			break
		}
	}
	if r.buf.Len() == 0 && r.done {
		return 0, io.EOF
	}
	return r.buf.Read(p)
}

func (r *reader) next() bool {
	tt := r.tokenizer.Next()
	switch tt {
	case html.ErrorToken:
		r.done = true
		trimmed := strings.TrimRight(r.buf.String(), " \n")
		r.buf.Reset()
		r.buf.WriteString(trimmed)
		return false

	case html.StartTagToken:
		tn, hasAttr := r.tokenizer.TagName()
		tagName := string(tn)

		if skipElements[tagName] {
			r.skipDepth++
			return true
		}
		if tagName == "br" {
			r.writeBreak()
		}
		if blockElements[tagName] {
			r.writeBreak()
		}
		if tagName == "img" && hasAttr && r.skipDepth == 0 {
			r.extractAlt()
		}
		return true

	case html.EndTagToken:
		tn, _ := r.tokenizer.TagName()
		tagName := string(tn)

		if skipElements[tagName] && r.skipDepth > 0 {
			r.skipDepth--
		}
		if blockElements[tagName] {
			r.writeBreak()
		}
		return true

	case html.SelfClosingTagToken:
		tn, hasAttr := r.tokenizer.TagName()
		tagName := string(tn)

		if tagName == "br" {
			r.writeBreak()
		}
		if tagName == "img" && hasAttr && r.skipDepth == 0 {
			r.extractAlt()
		}
		return true

	case html.TextToken:
		if r.skipDepth > 0 {
			return true
		}
		r.writeText(r.tokenizer.Text())
		return true
	}
	return true
}

// extractAlt emits the alt text of an img tag in place of the image.
func (r *reader) extractAlt() {
	for {
		key, val, more := r.tokenizer.TagAttr()
		if string(key) == "alt" && len(val) > 0 {
			r.writeText(val)
		}
		if !more {
			break
		}
	}
}

// writeBreak emits a single newline at a block boundary, collapsing
// runs of boundaries.
func (r *reader) writeBreak() {
	if r.hasOutput && !r.lastBreak {
		r.buf.WriteByte('\n')
		r.lastBreak = true
		r.lastSpace = true
	}
}

// writeSpace emits a single collapsing space.
func (r *reader) writeSpace() {
	if r.hasOutput && !r.lastSpace {
		r.buf.WriteByte(' ')
		r.lastSpace = true
	}
}

func (r *reader) writeText(text []byte) {
	for _, b := range text {
		isSpace := b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
		if isSpace {
			r.writeSpace()
		} else {
			r.buf.WriteByte(b)
			r.lastSpace = false
			r.lastBreak = false
			r.hasOutput = true
		}
	}
}
