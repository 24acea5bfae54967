package service

import (
	"fmt"
	"strconv"
	"strings"
)

const codeWidth = 3

// FormatIDCode renders <LAB>-<NNN>; numbers past 999 keep all their digits.
func FormatIDCode(lab string, n int) string {
	return fmt.Sprintf("%s-%0*d", lab, codeWidth, n)
}

// NextIDCodes allocates n sequential codes for lab, continuing after the highest numeric suffix in existing.
// Codes whose suffix is not a positive integer are ignored.
func NextIDCodes(lab string, existing []string, n int) []string {
	prefix := lab + "-"
	highest := 0
	for _, code := range existing {
		suffix, ok := strings.CutPrefix(code, prefix)
		if !ok {
			continue
		}
		v, err := strconv.Atoi(suffix)
		if err != nil || v <= 0 {
			continue
		}
		highest = max(highest, v)
	}

	codes := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		codes = append(codes, FormatIDCode(lab, highest+i))
	}
	return codes
}

func lockKey(lab string) string {
	return "labinventory:alloc:" + lab
}
