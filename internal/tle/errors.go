package tle

import "fmt"

// FormatError reports a structural problem with a TLE line: wrong length,
// wrong line marker, a non-blank separator column or an unparsable field.
type FormatError struct {
	Line   int // 0 for the name line
	Column int // 1-based, 0 when the whole line is at fault
	Field  string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Column == 0 {
		return fmt.Sprintf("tle line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("tle line %d column %d (%s): %s", e.Line, e.Column, e.Field, e.Reason)
}

// ChecksumError reports a line whose recorded checksum digit does not match
// the digit sum of its first 68 characters.
type ChecksumError struct {
	Line     int
	Computed int
	Recorded int
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("tle line %d: checksum mismatch: computed %d, recorded %d", e.Line, e.Computed, e.Recorded)
}

// InconsistentIDError reports differing satellite numbers on lines 1 and 2.
type InconsistentIDError struct {
	Line1ID int
	Line2ID int
}

func (e *InconsistentIDError) Error() string {
	return fmt.Sprintf("tle satellite number mismatch: line 1 has %d, line 2 has %d", e.Line1ID, e.Line2ID)
}
