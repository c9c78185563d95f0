package certificate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	apperrors "audiolicense/internal/errors"
)

// DefaultPrefix is used when no serial prefix is configured
const DefaultPrefix = "PFX"

var serialPattern = regexp.MustCompile(`^([A-Z0-9]+)-(\d{4})-(\d{5,})-(\d{5,})$`)

// Serial is the parsed form of a certificate serial
type Serial struct {
	Prefix  string
	Year    int
	OrderID int64
	ItemID  int64
}

// String formats the serial in its canonical form
func (s Serial) String() string {
	return FormatSerial(s.Prefix, s.Year, s.OrderID, s.ItemID)
}

// FormatSerial builds {prefix}-{year}-{orderID:05d}-{itemID:05d}
func FormatSerial(prefix string, year int, orderID, itemID int64) string {
	return fmt.Sprintf("%s-%04d-%05d-%05d", prefix, year, orderID, itemID)
}

// ParseSerial parses a serial in canonical form. Zero ids, non-canonical
// zero padding and lower-case prefixes are rejected.
func ParseSerial(s string) (Serial, error) {
	const op = "certificate.ParseSerial"

	s = strings.TrimSpace(s)
	m := serialPattern.FindStringSubmatch(s)
	if m == nil {
		return Serial{}, apperrors.Validation(op, "malformed serial %q", s)
	}

	year, _ := strconv.Atoi(m[2])
	orderID, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil || orderID <= 0 {
		return Serial{}, apperrors.Validation(op, "malformed serial %q", s)
	}
	itemID, err := strconv.ParseInt(m[4], 10, 64)
	if err != nil || itemID <= 0 {
		return Serial{}, apperrors.Validation(op, "malformed serial %q", s)
	}

	parsed := Serial{Prefix: m[1], Year: year, OrderID: orderID, ItemID: itemID}
	if parsed.String() != s {
		return Serial{}, apperrors.Validation(op, "serial %q is not in canonical form", s)
	}
	return parsed, nil
}

// ArtifactPath returns the storage path of the certificate document
func ArtifactPath(serial string, issuedAt time.Time) string {
	issuedAt = issuedAt.UTC()
	return fmt.Sprintf("%04d/%02d/license-%s.html", issuedAt.Year(), int(issuedAt.Month()), serial)
}
