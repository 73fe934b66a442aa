package tle

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/lowfreq/meridian/internal/logging"
)

// Parse reads 3-line NORAD TLE text from r. Malformed entries are skipped
// with a warning so one bad satellite cannot poison a whole catalog fetch.
func Parse(r io.Reader, logger *logging.Logger) ([]Entry, error) {
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

	var entries []Entry
	for i := 0; i+2 < len(lines); {
		if !strings.HasPrefix(lines[i+1], "1 ") || !strings.HasPrefix(lines[i+2], "2 ") {
			// Resync on the next plausible triplet.
			logger.Warnw("skipping malformed TLE entry", "line_index", i, "name", lines[i])
			i++
			continue
		}
		entry, err := parseTriplet(lines[i], lines[i+1], lines[i+2])
		if err != nil {
			logger.Warnw("skipping TLE entry", "name", lines[i], "error", err)
			i += 3
			continue
		}
		entries = append(entries, entry)
		i += 3
	}

	return entries, nil
}

func parseTriplet(name, line1, line2 string) (Entry, error) {
	if len(line1) < 32 {
		return Entry{}, fmt.Errorf("line 1 too short (%d chars)", len(line1))
	}

	// NORAD ID sits in line 1 columns 3-7.
	noradStr := strings.TrimSpace(line1[2:7])
	noradID, err := strconv.Atoi(noradStr)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid NORAD ID %q", noradStr)
	}

	// Epoch sits in line 1 columns 19-32.
	epoch, err := parseEpoch(strings.TrimSpace(line1[18:32]))
	if err != nil {
		return Entry{}, err
	}

	return Entry{
		NORADID: noradID,
		Name:    strings.TrimSpace(name),
		Epoch:   epoch,
		Line1:   line1,
		Line2:   line2,
	}, nil
}

// parseEpoch converts a TLE epoch in YYDDD.DDDDDDDD form. Two-digit years
// 00-56 mean the 2000s, 57-99 the 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}

	// Day numbers are 1-based: day 1.0 is Jan 1 00:00 UTC.
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return start.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}
