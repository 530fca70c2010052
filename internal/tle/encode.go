package tle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Lines encodes the element set back into its two fixed-column lines with
// freshly computed checksums. Parsing the result yields an identical set:
// a field whose value still matches the line it was parsed from keeps its
// original spelling (explicit '+' signs, "00000+0" zeros, blank fields).
func (es ElementSet) Lines() (string, string, error) {
	id, err := encodeCatalogNumber(es.CatalogNumber)
	if err != nil {
		return "", "", err
	}
	ndot, err := encodeNDot(es.MeanMotionDot)
	if err != nil {
		return "", "", err
	}
	nddot, err := encodeExponential(es.MeanMotionDDot)
	if err != nil {
		return "", "", err
	}
	bstar, err := encodeExponential(es.BStar)
	if err != nil {
		return "", "", err
	}
	ecc := int(math.Round(es.Eccentricity * 1e7))
	if es.Eccentricity < 0 || ecc > 9999999 {
		return "", "", &FormatError{Line: 2, Column: 27, Field: "eccentricity", Reason: fmt.Sprintf("%v not encodable", es.Eccentricity)}
	}
	class := es.Classification
	if class == 0 {
		class = 'U'
	}

	var b strings.Builder
	b.Grow(lineLength)
	fmt.Fprintf(&b, "1 %s%c %-8s %02d%012.8f %s %s %s %d %4d",
		id, class, es.Designator, es.EpochYear%100, es.EpochDay,
		ndot, nddot, bstar, es.EphemerisType%10, es.ElementSetNo%10000)
	line1 := withChecksum(keepWritten(b.String(), es.Line1, line1Fields))

	b.Reset()
	fmt.Fprintf(&b, "2 %s %8.4f %8.4f %07d %8.4f %8.4f %11.8f%5d",
		id, es.Inclination, es.RAAN, ecc, es.ArgPerigee, es.MeanAnomaly, es.MeanMotion, es.RevNumber%100000)
	line2 := withChecksum(keepWritten(b.String(), es.Line2, line2Fields))

	if len(line1) != lineLength {
		return "", "", &FormatError{Line: 1, Reason: fmt.Sprintf("encoded length %d", len(line1))}
	}
	if len(line2) != lineLength {
		return "", "", &FormatError{Line: 2, Reason: fmt.Sprintf("encoded length %d", len(line2))}
	}
	return line1, line2, nil
}

// Format renders the element set as a catalog record: the name line, when
// there is one, followed by both lines.
func (es ElementSet) Format() (string, error) {
	l1, l2, err := es.Lines()
	if err != nil {
		return "", err
	}
	if es.Name == "" {
		return l1 + "\n" + l2 + "\n", nil
	}
	return es.Name + "\n" + l1 + "\n" + l2 + "\n", nil
}

// writtenField pairs a column range with the test for "same value".
type writtenField struct {
	f    field
	same func(f field, a, b string) bool
}

func sameText(f field, a, b string) bool {
	return strings.TrimSpace(f.text(a)) == strings.TrimSpace(f.text(b))
}

func sameInt(f field, a, b string) bool {
	x, errA := f.int(a, true)
	y, errB := f.int(b, true)
	return errA == nil && errB == nil && x == y
}

func sameFloat(f field, a, b string) bool {
	x, errA := f.float(a)
	y, errB := f.float(b)
	return errA == nil && errB == nil && x == y
}

func sameExponential(f field, a, b string) bool {
	x, errA := f.exponential(a)
	y, errB := f.exponential(b)
	return errA == nil && errB == nil && x == y
}

func sameImpliedDecimal(f field, a, b string) bool {
	x, errA := f.impliedDecimal(a)
	y, errB := f.impliedDecimal(b)
	return errA == nil && errB == nil && x == y
}

func sameCatalogNumber(f field, a, b string) bool {
	x, errA := f.catalogNumber(a)
	y, errB := f.catalogNumber(b)
	return errA == nil && errB == nil && x == y
}

var (
	line1Fields = []writtenField{
		{l1CatalogNumber, sameCatalogNumber},
		{field{1, "classification", 7, 8}, sameText},
		{field{1, "international designator", 9, 17}, sameText},
		{l1EpochYear, sameInt},
		{l1EpochDay, sameFloat},
		{l1NDot, sameFloat},
		{l1NDDot, sameExponential},
		{l1BStar, sameExponential},
		{l1EphemerisType, sameInt},
		{l1ElementSetNo, sameInt},
	}
	line2Fields = []writtenField{
		{l2CatalogNumber, sameCatalogNumber},
		{l2Inclination, sameFloat},
		{l2RAAN, sameFloat},
		{l2Eccentricity, sameImpliedDecimal},
		{l2ArgPerigee, sameFloat},
		{l2MeanAnomaly, sameFloat},
		{l2MeanMotion, sameFloat},
		{l2RevNumber, sameInt},
	}
)

// keepWritten copies each field of orig over fresh (both without checksum)
// when the two spell the same value.
func keepWritten(fresh, orig string, fields []writtenField) string {
	if len(orig) < lineLength-1 || len(fresh) != lineLength-1 {
		return fresh
	}
	out := []byte(fresh)
	for _, wf := range fields {
		if wf.same(wf.f, fresh, orig) {
			copy(out[wf.f.start:wf.f.end], orig[wf.f.start:wf.f.end])
		}
	}
	return string(out)
}

func withChecksum(s string) string {
	return s + strconv.Itoa(Checksum(s))
}

func encodeCatalogNumber(n int) (string, error) {
	switch {
	case n < 0:
	case n < 100000:
		return fmt.Sprintf("%05d", n), nil
	case n < 340000:
		v := n / 10000
		c := byte('A' + v - 10)
		if c >= 'I' {
			c++
		}
		if c >= 'O' {
			c++
		}
		return fmt.Sprintf("%c%04d", c, n%10000), nil
	}
	return "", &FormatError{Line: 1, Column: 3, Field: "satellite number", Reason: fmt.Sprintf("%d not encodable", n)}
}

// encodeNDot renders the first-derivative field as "±.NNNNNNNN".
func encodeNDot(v float64) (string, error) {
	if math.Abs(v) >= 1 {
		return "", &FormatError{Line: 1, Column: 34, Field: "first derivative of mean motion", Reason: fmt.Sprintf("%v not encodable", v)}
	}
	s := strconv.FormatFloat(math.Abs(v), 'f', 8, 64)
	sign := " "
	if v < 0 && s != "0.00000000" {
		sign = "-"
	}
	return sign + strings.TrimPrefix(s, "0"), nil
}

// encodeExponential renders the compact "±NNNNN±E" notation.
func encodeExponential(v float64) (string, error) {
	sign := " "
	if v < 0 {
		sign = "-"
	}
	a := math.Abs(v)
	if a == 0 {
		return " 00000-0", nil
	}
	exp := int(math.Floor(math.Log10(a))) + 1
	m := int(math.Round(a / pow10(exp) * 1e5))
	if m >= 100000 {
		m /= 10
		exp++
	}
	if exp < -9 || exp > 9 {
		return "", &FormatError{Line: 1, Field: "exponent", Reason: fmt.Sprintf("%v not encodable", v)}
	}
	expSign := "-"
	if exp >= 0 {
		expSign = "+"
	}
	if exp < 0 {
		exp = -exp
	}
	return fmt.Sprintf("%s%05d%s%d", sign, m, expSign, exp), nil
}
