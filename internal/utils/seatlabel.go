package utils

import (
	"strconv"
	"strings"
)

// RowLabel converts a zero-based row index to its spreadsheet-style label:
// 0 -> A, 25 -> Z, 26 -> AA, 27 -> AB.
func RowLabel(i int) string {
	if i < 0 {
		return ""
	}
	res := []byte{}
	for {
		res = append(res, byte('A'+i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

// RowIndex is the inverse of RowLabel.  It reports false for labels that
// contain anything other than ASCII letters.
func RowIndex(label string) (int, bool) {
	s := strings.ToUpper(strings.TrimSpace(label))
	if s == "" {
		return -1, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch < 'A' || ch > 'Z' {
			return -1, false
		}
		n = n*26 + int(ch-'A'+1)
	}
	return n - 1, true
}

// SeatLabel joins a row label and a 1-based column: ("B", 7) -> "B7".
func SeatLabel(row string, col int) string {
	return row + strconv.Itoa(col)
}
