package preview

import (
	"strings"
	"testing"
)

func TestCleanTextCollapsesWhitespaceAndPreservesParagraphs(t *testing.T) {
	input := "  First   paragraph \n\n Second\tparagraph \r\n\r\nThird line "
	got := CleanText(input)
	want := "First paragraph\n\nSecond paragraph\n\nThird line"
	if got != want {
		t.Fatalf("CleanText mismatch\nwant: %q\ngot:  %q", want, got)
	}
}

func TestTruncateText(t *testing.T) {
	input := "abcdefghijklmnopqrstuvwxyz"

	got, truncated := TruncateText(input, 10)
	if !truncated {
		t.Fatalf("expected truncated=true")
	}
	if got != "abcdefghi…" {
		t.Fatalf("unexpected truncated text: %q", got)
	}

	full, wasTruncated := TruncateText("short", 10)
	if wasTruncated {
		t.Fatalf("expected truncated=false for short text")
	}
	if full != "short" {
		t.Fatalf("unexpected short text: %q", full)
	}
}

func TestExtractBodyPlainText(t *testing.T) {
	got, err := ExtractBody("  Reset your   password now ")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got != "Reset your password now" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestExtractBodyHTML(t *testing.T) {
	got, err := ExtractBody("<html><body><p>Your account has been <b>locked</b>.</p><p>Click here to restore access.</p></body></html>")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(got, "locked") || !strings.Contains(got, "restore access") {
		t.Fatalf("unexpected text: %q", got)
	}
	if strings.Contains(got, "<") {
		t.Fatalf("text still contains markup: %q", got)
	}
}

func TestExtractBodyEmpty(t *testing.T) {
	if _, err := ExtractBody("   "); err == nil {
		t.Fatalf("expected empty body to fail")
	}
}

func TestFromMailboxRendersEveryMessage(t *testing.T) {
	doc := map[string]any{
		"subject": "Inbox simulation",
		"messages": []any{
			map[string]any{
				"from":    "it@example.com",
				"subject": "Password expiry",
				"body":    "<p>Your password expires today.</p>",
			},
			map[string]any{
				"from": "hr@example.com",
				"body": "Please review the attached policy.",
			},
		},
	}

	previews, err := FromMailbox(doc, 0)
	if err != nil {
		t.Fatalf("from mailbox: %v", err)
	}
	if len(previews) != 2 {
		t.Fatalf("previews = %d, want 2", len(previews))
	}
	if previews[0].From != "it@example.com" || previews[0].Subject != "Password expiry" {
		t.Fatalf("first preview header = %+v", previews[0])
	}
	if !strings.Contains(previews[0].Text, "expires today") {
		t.Fatalf("first preview text = %q", previews[0].Text)
	}
	if previews[1].Text != "Please review the attached policy." {
		t.Fatalf("second preview text = %q", previews[1].Text)
	}
}

func TestFromMailboxTruncates(t *testing.T) {
	doc := map[string]any{
		"messages": []any{
			map[string]any{"body": strings.Repeat("phish ", 400)},
		},
	}

	previews, err := FromMailbox(doc, 40)
	if err != nil {
		t.Fatalf("from mailbox: %v", err)
	}
	if !previews[0].Truncated {
		t.Fatalf("expected truncation")
	}
	if got := len([]rune(previews[0].Text)); got > 40 {
		t.Fatalf("text length = %d runes, want <= 40", got)
	}
}

func TestFromMailboxRejectsEmpty(t *testing.T) {
	if _, err := FromMailbox(nil, 0); err == nil {
		t.Fatalf("expected empty document to fail")
	}
	if _, err := FromMailbox(map[string]any{"messages": []any{}}, 0); err == nil {
		t.Fatalf("expected message-free document to fail")
	}
}
