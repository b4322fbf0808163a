package textnorm

import "testing"

func TestNormalizeTable(t *testing.T) {
	n := New()

	tests := []struct {
		name string
		in   string
		out  string
	}{
		{name: "empty", in: "", out: ""},
		{name: "identity ascii", in: "request for quotation", out: "request for quotation"},
		{name: "utf8 repair drops invalid bytes", in: string([]byte{0xff, 'r', 'f', 'q', 0x80, ' ', 'n', 'o'}), out: "rfq no"},
		{name: "case fold", in: "PURCHASE Order", out: "purchase order"},
		{name: "remove zero-widths", in: "in\u200bvoi\u200dce", out: "invoice"},
		{name: "strip control characters", in: "total\x00 due\x07", out: "total due"},
		{name: "width fold fullwidth", in: "\uff22\uff2f\uff31 sheet", out: "boq sheet"},
		{name: "nfkc ligature", in: "o\ufb03ce supplies", out: "office supplies"},
		{name: "collapse inline whitespace", in: "qty\t\t 10   pcs", out: "qty 10 pcs"},
		{name: "keep one newline per break", in: "line one  \n\n\t line two\r\n", out: "line one\nline two"},
	}

	for _, tc := range tests {
		if got := n.Normalize(tc.in); got != tc.out {
			t.Fatalf("%s: Normalize(%q) = %q, want %q", tc.name, tc.in, got, tc.out)
		}
	}
}

func TestNormalizeCasePreserving(t *testing.T) {
	got := NewCasePreserving().Normalize("  ACME  Trading\ufeff LLC \n\n Riyadh ")
	if got != "ACME Trading LLC\nRiyadh" {
		t.Fatalf("unexpected normalized text: %q", got)
	}
}

func TestLinesSkipsBlank(t *testing.T) {
	lines := Lines("a\n\n b \n")
	if len(lines) != 2 || lines[0] != "a" || lines[1] != "b" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
}
