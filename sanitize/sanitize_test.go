package sanitize

import (
	"strings"
	"testing"
)

func TestPlainText(t *testing.T) {
	if got := PlainText("looks fine"); got != "looks fine" {
		t.Errorf("PlainText(plain) = %q, want unchanged", got)
	}

	if got := PlainText("<b>bold</b> comment"); got != "bold comment" {
		t.Errorf("PlainText(bold) = %q, want tags stripped", got)
	}

	if got := PlainText(`<script>alert(1)</script>next`); strings.Contains(got, "alert") {
		t.Errorf("PlainText(script) = %q, want script contents removed", got)
	}
}
