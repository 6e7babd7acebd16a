// Package datefile derives the logical collection date of an export file
// from its name. Collector exports are named {family}_{YYYYMMDD}_{HHMMSS}.csv;
// the embedded date is the sole source of collection_date for every row in
// the file, independent of row content.
package datefile

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrNoDate is returned when a filename carries no usable date token.
// Files without a date are skipped entirely: defaulting to "today" would
// corrupt every downstream daily aggregate.
var ErrNoDate = errors.New("datefile: no date token in filename")

// ExtractDate scans the underscore-delimited segments of name for an
// 8-digit YYYYMMDD token and returns it normalized as YYYY-MM-DD.
func ExtractDate(name string) (string, error) {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}

	for _, part := range strings.Split(base, "_") {
		if len(part) != 8 || !allDigits(part) {
			continue
		}
		month := part[4:6]
		day := part[6:8]
		if !validMonth(month) || !validDay(day) {
			continue
		}
		return fmt.Sprintf("%s-%s-%s", part[:4], month, day), nil
	}

	return "", ErrNoDate
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func validMonth(m string) bool {
	return m >= "01" && m <= "12"
}

func validDay(d string) bool {
	return d >= "01" && d <= "31"
}
