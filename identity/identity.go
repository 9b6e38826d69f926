/*
Package identity validates Spanish national identity numbers.

PURPOSE:
  Patrons are keyed by their NIF (citizens) or NIE (foreign residents).
  Both carry a trailing check letter derived from the numeric part, so a
  mistyped digit is caught before a patron record is created.

FORMAT:
  NIF: 8 digits + check letter          e.g. 12345678Z
  NIE: X/Y/Z + 7 digits + check letter  e.g. X0000000T

  For NIE the leading letter maps to a digit (X=0, Y=1, Z=2) which is
  prepended to the seven digits before the modulo.

CHECK LETTER:
  "TRWAGMYFPDXBNJZSQVHLCKE"[number mod 23]

The validator is a pure predicate. The lending registry consumes it as a
func(string) bool and never depends on this package's internals.
*/
package identity

import "strings"

const checkLetters = "TRWAGMYFPDXBNJZSQVHLCKE"

const nieLetters = "XYZ"

// Kind distinguishes the two document families.
type Kind string

const (
	KindInvalid Kind = ""
	KindNIF     Kind = "NIF"
	KindNIE     Kind = "NIE"
)

// Normalize upper-cases and trims an ID as typed by an operator.
func Normalize(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Classify reports which document family a valid ID belongs to, or
// KindInvalid when the ID fails the format or checksum.
func Classify(id string) Kind {
	id = Normalize(id)
	if len(id) != 9 {
		return KindInvalid
	}
	last := id[8]
	if last < 'A' || last > 'Z' {
		return KindInvalid
	}

	if i := strings.IndexByte(nieLetters, id[0]); i >= 0 {
		digits := id[1:8]
		if !allDigits(digits) {
			return KindInvalid
		}
		if checkLetter(uint64(i)*10_000_000+parse(digits)) != last {
			return KindInvalid
		}
		return KindNIE
	}

	digits := id[:8]
	if !allDigits(digits) {
		return KindInvalid
	}
	if checkLetter(parse(digits)) != last {
		return KindInvalid
	}
	return KindNIF
}

// Valid is the predicate form of Classify.
func Valid(id string) bool {
	return Classify(id) != KindInvalid
}

// CheckLetter returns the control letter for the numeric part of a NIF.
// Exposed for fixtures and the check-id command.
func CheckLetter(number uint64) byte {
	return checkLetter(number)
}

func checkLetter(n uint64) byte {
	return checkLetters[n%23]
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func parse(s string) uint64 {
	var n uint64
	for i := 0; i < len(s); i++ {
		n = n*10 + uint64(s[i]-'0')
	}
	return n
}
