package tle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ErrUnpairedLine marks a catalog line that is neither part of a line 1 /
// line 2 pair nor a name line directly preceding one.
var ErrUnpairedLine = errors.New("unpaired TLE line")

// CatalogEntry is one record read from a catalog. Exactly one of Set and Err
// is meaningful.
type CatalogEntry struct {
	LineIndex int // index of the record's first non-blank line, 0-based
	Name      string
	Set       ElementSet
	Err       error
}

// ReadCatalog splits a catalog in either the two-line or the three-line
// (name + two lines) layout into records, decoding each. Both layouts may be
// mixed in one stream. Blank lines are ignored.
func ReadCatalog(r io.Reader) ([]CatalogEntry, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []CatalogEntry
	for i := 0; i < len(lines); {
		var name, line1, line2 string
		var consumed int
		switch {
		case i+1 < len(lines) && isLine(lines[i], '1') && isLine(lines[i+1], '2'):
			line1, line2, consumed = lines[i], lines[i+1], 2
		case i+2 < len(lines) && isLine(lines[i+1], '1') && isLine(lines[i+2], '2'):
			name, line1, line2, consumed = lines[i], lines[i+1], lines[i+2], 3
		default:
			entries = append(entries, CatalogEntry{
				LineIndex: i,
				Name:      lines[i],
				Err:       fmt.Errorf("%w: %q", ErrUnpairedLine, lines[i]),
			})
			i++
			continue
		}

		es, err := ParseWithName(name, line1, line2)
		entries = append(entries, CatalogEntry{
			LineIndex: i,
			Name:      strings.TrimSpace(strings.TrimPrefix(name, "0 ")),
			Set:       es,
			Err:       err,
		})
		i += consumed
	}
	return entries, nil
}

// ParseCatalog reads a catalog and returns its valid element sets.
// Malformed entries are skipped with a warning log.
func ParseCatalog(r io.Reader, logger *slog.Logger) ([]ElementSet, error) {
	entries, err := ReadCatalog(r)
	if err != nil {
		return nil, err
	}
	sets := make([]ElementSet, 0, len(entries))
	for _, e := range entries {
		switch {
		case errors.Is(e.Err, ErrUnpairedLine):
			logger.Warn("skipping unpaired TLE line", "line_index", e.LineIndex, "line", e.Name)
		case e.Err != nil:
			logger.Warn("skipping malformed TLE entry", "line_index", e.LineIndex, "name", e.Name, "error", e.Err)
		default:
			sets = append(sets, e.Set)
		}
	}
	return sets, nil
}

func isLine(s string, marker byte) bool {
	return len(s) > 2 && s[0] == marker && s[1] == ' '
}
