// Package render converts operator-authored markdown (HumanApproval.Comment,
// ExecutionTrace.Error) into sanitized HTML, for any external UI embedding
// this core to display without doing its own XSS defense.
package render

import (
	"bytes"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	md     goldmark.Markdown
	policy *bluemonday.Policy
)

func init() {
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithUnsafe(),
		),
	)
	policy = bluemonday.UGCPolicy()
}

// Markdown converts s from markdown to sanitized HTML. Conversion
// failures fall back to HTML-escaped plain text rather than erroring,
// since this only ever feeds a display surface.
func Markdown(s string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(s), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(s))
	}
	return template.HTML(policy.SanitizeBytes(buf.Bytes()))
}
