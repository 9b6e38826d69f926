package lending

import (
	"fmt"
	"strconv"
	"strings"
)

// idDigits is the zero-padded width of every generated identifier.
const idDigits = 10

// Identifier prefixes. Each family has its own counter.
const (
	PrefixBook         = "L"
	PrefixMagazine     = "R"
	PrefixMovie        = "P"
	PrefixMember       = "S"
	PrefixLoan         = "PREST-"
	PrefixConsultation = "CON-"
)

// sequence issues monotonic identifiers like L0000000001. Values are never
// reused, even after the record they named is deleted.
type sequence struct {
	prefix string
	last   int64
}

func (s *sequence) next() string {
	s.last++
	return formatID(s.prefix, s.last)
}

// observe raises the counter so it never issues id again. Used on load.
func (s *sequence) observe(id string) error {
	n, err := parseID(s.prefix, id)
	if err != nil {
		return err
	}
	if n > s.last {
		s.last = n
	}
	return nil
}

func formatID(prefix string, n int64) string {
	return fmt.Sprintf("%s%0*d", prefix, idDigits, n)
}

func parseID(prefix, id string) (int64, error) {
	digits, ok := strings.CutPrefix(id, prefix)
	if !ok || len(digits) != idDigits {
		return 0, &InputError{Field: "id", Value: id, Reason: fmt.Sprintf("want %s followed by %d digits", prefix, idDigits)}
	}
	if strings.TrimLeft(digits, "0123456789") != "" {
		return 0, &InputError{Field: "id", Value: id, Reason: "sequence must be digits"}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 {
		return 0, &InputError{Field: "id", Value: id, Reason: "sequence must be a positive number"}
	}
	return n, nil
}
