package plaintext

import (
	"testing"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

func TestDecodeStripsBOMAndCRLF(t *testing.T) {
	src, err := Decode([]byte("\xEF\xBB\xBFPURCHASE ORDER\r\nPO No: 7\r\n"), "po.txt")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if src.Text != "PURCHASE ORDER\nPO No: 7" || src.Filename != "po.txt" {
		t.Fatalf("unexpected source %+v", src)
	}
}

func TestDecodeRejectsBinary(t *testing.T) {
	if _, err := Decode([]byte{0xff, 0xfe, 0x00}, "blob.bin"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
