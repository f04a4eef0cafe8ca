package notify

import (
	"net/url"
	"strings"
	"testing"
)

func TestShareLinkEscapesMessage(t *testing.T) {
	link := ShareLink("*Leave Request Update*\n\nApproved & done")
	if !strings.HasPrefix(link, "https://wa.me/?text=") {
		t.Fatalf("unexpected link %s", link)
	}
	parsed, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	text := parsed.Query().Get("text")
	if text != "*Leave Request Update*\n\nApproved & done" {
		t.Fatalf("round trip mismatch: %q", text)
	}
}

func TestDisabledNotifierNeverDispatches(t *testing.T) {
	// Must not panic or block; dispatch is skipped entirely.
	n := New(false)
	n.send("hello")
}
