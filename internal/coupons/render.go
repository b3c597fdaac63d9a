package coupons

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	markdown   = goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Linkify))
	htmlPolicy = bluemonday.UGCPolicy()
)

// RenderDescription renders a markdown description into sanitized HTML for previews.
func RenderDescription(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return string(htmlPolicy.SanitizeBytes(buf.Bytes())), nil
}
