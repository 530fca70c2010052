package tle

// Checksum returns the modulo-10 checksum of a TLE line: the sum of all
// digits in the first 68 characters, with each '-' counting as 1.
func Checksum(line string) int {
	n := len(line)
	if n > lineLength-1 {
		n = lineLength - 1
	}
	sum := 0
	for i := 0; i < n; i++ {
		c := line[i]
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

func verifyChecksum(lineNo int, line string) error {
	c := line[lineLength-1]
	if c < '0' || c > '9' {
		return &FormatError{Line: lineNo, Column: lineLength, Field: "checksum", Reason: "checksum is not a digit"}
	}
	recorded := int(c - '0')
	if computed := Checksum(line); computed != recorded {
		return &ChecksumError{Line: lineNo, Computed: computed, Recorded: recorded}
	}
	return nil
}
