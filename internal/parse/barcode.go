package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var barcodeRe = regexp.MustCompile(`^KC(\d{4,})$`)

// FormatBarcode renders a child sequence number as a scannable badge ID.
func FormatBarcode(seq int64) string {
	return fmt.Sprintf("KC%04d", seq)
}

// ParseBarcode extracts the child sequence number from a scanned badge
// ID. Scanners occasionally deliver surrounding whitespace or lowercase
// prefixes, so input is normalized first.
func ParseBarcode(raw string) (int64, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	m := barcodeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("unable to parse barcode: %q", raw)
	}
	seq, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse barcode: %q", raw)
	}
	return seq, nil
}
