package tle

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	lineLength    = 69
	maxNameLength = 24
)

// Blank separator columns (0-indexed).
var (
	line1Blanks = []int{1, 8, 17, 32, 43, 52, 61, 63}
	line2Blanks = []int{1, 7, 16, 25, 33, 42, 51}
)

// Parse decodes a two-line element set. Both lines must be exactly 69
// characters once trailing whitespace is removed, carry valid checksums and
// name the same satellite. Nothing is partially accepted: any failure
// returns a zero ElementSet and a *FormatError, *ChecksumError or
// *InconsistentIDError.
func Parse(line1, line2 string) (ElementSet, error) {
	return ParseWithName("", line1, line2)
}

// ParseWithName decodes a three-line element set. The name line may carry
// the "0 " prefix used by 3LE feeds and is limited to 24 characters.
func ParseWithName(name, line1, line2 string) (ElementSet, error) {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "0 ") {
		name = strings.TrimSpace(name[2:])
	}
	if len(name) > maxNameLength {
		return ElementSet{}, &FormatError{Line: 0, Reason: fmt.Sprintf("name is %d characters, limit %d", len(name), maxNameLength)}
	}

	line1 = strings.TrimRight(line1, "\r\n ")
	line2 = strings.TrimRight(line2, "\r\n ")
	if err := checkLine(1, line1, line1Blanks); err != nil {
		return ElementSet{}, err
	}
	if err := checkLine(2, line2, line2Blanks); err != nil {
		return ElementSet{}, err
	}

	es := ElementSet{Name: name, Line1: line1, Line2: line2}
	if err := decodeLine1(line1, &es); err != nil {
		return ElementSet{}, err
	}
	id2, err := decodeLine2(line2, &es)
	if err != nil {
		return ElementSet{}, err
	}
	if id2 != es.CatalogNumber {
		return ElementSet{}, &InconsistentIDError{Line1ID: es.CatalogNumber, Line2ID: id2}
	}
	return es, nil
}

func checkLine(lineNo int, line string, blanks []int) error {
	if len(line) != lineLength {
		return &FormatError{Line: lineNo, Reason: fmt.Sprintf("length %d, expected %d", len(line), lineLength)}
	}
	if line[0] != byte('0'+lineNo) {
		return &FormatError{Line: lineNo, Column: 1, Field: "line number", Reason: fmt.Sprintf("expected '%d', got %q", lineNo, line[0])}
	}
	if err := verifyChecksum(lineNo, line); err != nil {
		return err
	}
	for _, i := range blanks {
		if line[i] != ' ' {
			return &FormatError{Line: lineNo, Column: i + 1, Field: "separator", Reason: fmt.Sprintf("expected blank, got %q", line[i])}
		}
	}
	return nil
}

// field slices a fixed-column field. start and end are 0-indexed, end exclusive.
type field struct {
	line       int
	name       string
	start, end int
}

func (f field) text(s string) string { return s[f.start:f.end] }

func (f field) errorf(format string, args ...any) error {
	return &FormatError{Line: f.line, Column: f.start + 1, Field: f.name, Reason: fmt.Sprintf(format, args...)}
}

func (f field) int(s string, blankOK bool) (int, error) {
	v := strings.TrimSpace(f.text(s))
	if v == "" {
		if blankOK {
			return 0, nil
		}
		return 0, f.errorf("field is blank")
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, f.errorf("invalid integer %q", v)
	}
	return n, nil
}

func (f field) float(s string) (float64, error) {
	v := strings.TrimSpace(f.text(s))
	if v == "" {
		return 0, f.errorf("field is blank")
	}
	x, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, f.errorf("invalid number %q", v)
	}
	return x, nil
}

// impliedDecimal reads digits preceded by an assumed "0.", as used by the
// eccentricity field.
func (f field) impliedDecimal(s string) (float64, error) {
	v := f.text(s)
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return 0, f.errorf("invalid digits %q", v)
		}
	}
	x, err := strconv.ParseFloat("0."+v, 64)
	if err != nil {
		return 0, f.errorf("invalid digits %q", v)
	}
	return x, nil
}

// exponential reads the compact "±NNNNN±E" notation with an assumed leading
// decimal point, e.g. "-11606-4" is -0.11606e-4.
func (f field) exponential(s string) (float64, error) {
	v := strings.TrimSpace(f.text(s))
	if v == "" {
		return 0, nil
	}
	sign := 1.0
	switch v[0] {
	case '-':
		sign = -1
		v = v[1:]
	case '+':
		v = v[1:]
	}
	cut := strings.LastIndexAny(v, "+-")
	if cut <= 0 || cut != len(v)-2 {
		return 0, f.errorf("invalid exponential notation %q", f.text(s))
	}
	mantissa, exp := strings.TrimPrefix(v[:cut], "."), v[cut:]
	for i := 0; i < len(mantissa); i++ {
		if mantissa[i] < '0' || mantissa[i] > '9' {
			return 0, f.errorf("invalid mantissa %q", mantissa)
		}
	}
	m, err := strconv.ParseFloat("0."+mantissa, 64)
	if err != nil {
		return 0, f.errorf("invalid mantissa %q", mantissa)
	}
	e, err := strconv.Atoi(exp)
	if err != nil {
		return 0, f.errorf("invalid exponent %q", exp)
	}
	return sign * m * pow10(e), nil
}

func pow10(e int) float64 {
	x := 1.0
	for ; e > 0; e-- {
		x *= 10
	}
	for ; e < 0; e++ {
		x /= 10
	}
	return x
}

func (f field) catalogNumber(s string) (int, error) {
	v := strings.TrimSpace(f.text(s))
	if v == "" {
		return 0, f.errorf("field is blank")
	}
	if n, ok := decodeAlpha5(v); ok {
		return n, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, f.errorf("invalid satellite number %q", v)
	}
	return n, nil
}

// ParseCatalogNumber decodes a catalog number written either in plain
// digits or in Alpha-5 form.
func ParseCatalogNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, ok := decodeAlpha5(s); ok {
		return n, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 99999 {
		return 0, false
	}
	return n, true
}

// decodeAlpha5 decodes catalog numbers above 99999 written with a leading
// letter (I and O are skipped), e.g. "A0001" is 100001.
func decodeAlpha5(s string) (int, bool) {
	if len(s) != 5 {
		return 0, false
	}
	c := s[0]
	if c < 'A' || c > 'Z' || c == 'I' || c == 'O' {
		return 0, false
	}
	rest, err := strconv.Atoi(s[1:])
	if err != nil || rest < 0 {
		return 0, false
	}
	v := int(c-'A') + 10
	if c > 'I' {
		v--
	}
	if c > 'O' {
		v--
	}
	return v*10000 + rest, true
}

var (
	l1CatalogNumber = field{1, "satellite number", 2, 7}
	l1EpochYear     = field{1, "epoch year", 18, 20}
	l1EpochDay      = field{1, "epoch day", 20, 32}
	l1NDot          = field{1, "first derivative of mean motion", 33, 43}
	l1NDDot         = field{1, "second derivative of mean motion", 44, 52}
	l1BStar         = field{1, "bstar", 53, 61}
	l1EphemerisType = field{1, "ephemeris type", 62, 63}
	l1ElementSetNo  = field{1, "element set number", 64, 68}

	l2CatalogNumber = field{2, "satellite number", 2, 7}
	l2Inclination   = field{2, "inclination", 8, 16}
	l2RAAN          = field{2, "right ascension of ascending node", 17, 25}
	l2Eccentricity  = field{2, "eccentricity", 26, 33}
	l2ArgPerigee    = field{2, "argument of perigee", 34, 42}
	l2MeanAnomaly   = field{2, "mean anomaly", 43, 51}
	l2MeanMotion    = field{2, "mean motion", 52, 63}
	l2RevNumber     = field{2, "revolution number", 63, 68}
)

func decodeLine1(line string, es *ElementSet) error {
	var err error
	if es.CatalogNumber, err = l1CatalogNumber.catalogNumber(line); err != nil {
		return err
	}
	switch c := line[7]; c {
	case 'U', 'C', 'S', ' ':
		es.Classification = c
	default:
		return &FormatError{Line: 1, Column: 8, Field: "classification", Reason: fmt.Sprintf("unknown classification %q", c)}
	}
	es.Designator = strings.TrimSpace(line[9:17])

	if es.EpochYear, err = l1EpochYear.int(line, false); err != nil {
		return err
	}
	if es.EpochDay, err = l1EpochDay.float(line); err != nil {
		return err
	}
	if es.EpochDay < 1 || es.EpochDay >= 367 {
		return l1EpochDay.errorf("day of year %v out of range", es.EpochDay)
	}
	es.Epoch = epochTime(es.EpochYear, es.EpochDay)

	if es.MeanMotionDot, err = l1NDot.float(line); err != nil {
		return err
	}
	if es.MeanMotionDDot, err = l1NDDot.exponential(line); err != nil {
		return err
	}
	if es.BStar, err = l1BStar.exponential(line); err != nil {
		return err
	}
	if es.EphemerisType, err = l1EphemerisType.int(line, true); err != nil {
		return err
	}
	if es.ElementSetNo, err = l1ElementSetNo.int(line, true); err != nil {
		return err
	}
	return nil
}

func decodeLine2(line string, es *ElementSet) (int, error) {
	id, err := l2CatalogNumber.catalogNumber(line)
	if err != nil {
		return 0, err
	}
	if es.Inclination, err = l2Inclination.float(line); err != nil {
		return 0, err
	}
	if es.RAAN, err = l2RAAN.float(line); err != nil {
		return 0, err
	}
	if es.Eccentricity, err = l2Eccentricity.impliedDecimal(line); err != nil {
		return 0, err
	}
	if es.ArgPerigee, err = l2ArgPerigee.float(line); err != nil {
		return 0, err
	}
	if es.MeanAnomaly, err = l2MeanAnomaly.float(line); err != nil {
		return 0, err
	}
	if es.MeanMotion, err = l2MeanMotion.float(line); err != nil {
		return 0, err
	}
	if es.RevNumber, err = l2RevNumber.int(line, true); err != nil {
		return 0, err
	}
	return id, nil
}

// FullYear expands a two-digit epoch year: 57-99 → 1900s, 00-56 → 2000s.
func FullYear(yy int) int {
	if yy >= 57 {
		return 1900 + yy
	}
	return 2000 + yy
}

// epochTime converts a two-digit year and 1-based fractional day of year to
// an absolute UTC time.
func epochTime(yy int, day float64) time.Time {
	t := time.Date(FullYear(yy), 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((day - 1) * float64(24*time.Hour)))
}
