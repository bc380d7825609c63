package utils

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	sanitizer = bluemonday.UGCPolicy()
	stripper  = bluemonday.StrictPolicy()
	markdown  = goldmark.New(goldmark.WithExtensions(extension.GFM))
)

// Sanitize cleans HTML content to prevent XSS attacks.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}

// StripTags removes all markup, leaving plain text.
func StripTags(input string) string {
	return strings.TrimSpace(stripper.Sanitize(input))
}

// Markdown renders markdown to sanitized HTML.
func Markdown(src string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return Sanitize(src)
	}
	return sanitizer.Sanitize(buf.String())
}

// TruncateWords keeps the first n words of s, appending an ellipsis when cut.
func TruncateWords(s string, n int) string {
	words := strings.Fields(s)
	if n <= 0 || len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + " …"
}

// PlainText strips all markup and decodes entities, for user text that is escaped again on output.
func PlainText(input string) string {
	return html.UnescapeString(StripTags(input))
}

// Excerpt renders markdown to plain text and keeps its first n words.
func Excerpt(src string, n int) string {
	return TruncateWords(PlainText(Markdown(src)), n)
}
