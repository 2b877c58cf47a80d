package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// ReportIDSequenceWidth is the zero padded width of the per-year sequence
const ReportIDSequenceWidth = 4

// FormatReportID builds an identifier of the form YYYY-NNNN
func FormatReportID(year, seq int) string {
	return fmt.Sprintf("%04d-%0*d", year, ReportIDSequenceWidth, seq)
}

// ParseReportID splits an identifier into its year and sequence
func ParseReportID(id string) (year, seq int, err error) {
	yearPart, seqPart, ok := strings.Cut(id, "-")
	if !ok || len(yearPart) != 4 || seqPart == "" {
		return 0, 0, fmt.Errorf("malformed report id %q", id)
	}
	if year, err = strconv.Atoi(yearPart); err != nil {
		return 0, 0, fmt.Errorf("malformed report year in %q: %w", id, err)
	}
	if seq, err = strconv.Atoi(seqPart); err != nil || seq < 1 {
		return 0, 0, fmt.Errorf("malformed report sequence in %q", id)
	}
	return year, seq, nil
}

// NextReportID returns the id following the highest sequence already used in
// the given year. Ids from other years and malformed ids are ignored, so the
// first report of a year is always NNNN=0001.
func NextReportID(year int, existing []string) string {
	maxSeq := 0
	for _, id := range existing {
		y, seq, err := ParseReportID(id)
		if err != nil || y != year {
			continue
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	return FormatReportID(year, maxSeq+1)
}
