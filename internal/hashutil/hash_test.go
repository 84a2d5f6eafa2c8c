package hashutil

import "testing"

func TestContentSHA256Idempotent(t *testing.T) {
	a := "Sample.\nSecond line.\t\tThird."
	b := "Sample. Second line. Third."
	if ContentSHA256(a) != ContentSHA256(b) {
		t.Fatalf("whitespace rewrite changed content hash: %s vs %s", ContentSHA256(a), ContentSHA256(b))
	}
}

func TestContentSHA256Length(t *testing.T) {
	h := ContentSHA256("hello world")
	if len(h) != 64 {
		t.Fatalf("expected 64-char hex digest, got %d chars", len(h))
	}
}

func TestNormalizeEvidenceTextStripsTimestampsAndQuery(t *testing.T) {
	raw := "Fetched at 2024-01-02T03:04:05Z from https://example.test/page?cache=2024-01-02 for license info."
	got := NormalizeEvidenceText(raw)
	if got == raw {
		t.Fatalf("expected normalization to change text")
	}
	if containsAny(got, "2024-01-02", "T03:04:05Z", "?cache=") {
		t.Fatalf("normalized text retained timestamp/query fragments: %q", got)
	}
}

func TestNormalizeEvidenceTextDeterministic(t *testing.T) {
	raw := "License updated 01/02/2024, see https://x.test/a?b=1#frag"
	a := NormalizeEvidenceText(raw)
	b := NormalizeEvidenceText(raw)
	if a != b {
		t.Fatalf("normalization is not deterministic: %q vs %q", a, b)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if len(sub) == 0 {
			continue
		}
		if idx := indexOf(s, sub); idx >= 0 {
			return true
		}
	}
	return false
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
