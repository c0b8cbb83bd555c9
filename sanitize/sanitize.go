// Package sanitize strips unsafe markup from free-text fields that cross
// the agent/operator boundary — tool descriptions, approval comments —
// before this core hands them back out through a control surface it
// doesn't own.
package sanitize

import "github.com/microcosm-cc/bluemonday"

var policy = bluemonday.StrictPolicy()

// PlainText strips all markup from s, leaving plain text. Use this for
// fields that are never meant to carry formatting, such as
// ToolDefinition.Description and HumanApproval.Comment.
func PlainText(s string) string {
	return policy.Sanitize(s)
}
