package plaintext

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode accepts UTF-8 text only; normalization is left to the pipeline.
func Decode(raw []byte, filename string) (domain.DocumentTextSource, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		return domain.DocumentTextSource{}, domain.WrapError(domain.ErrInvalidInput, "decode plain text",
			fmt.Errorf("not valid UTF-8: %s", filename))
	}
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	return domain.DocumentTextSource{
		Text:     strings.TrimSpace(text),
		Filename: filename,
	}, nil
}
