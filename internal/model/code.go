package model

import (
	"fmt"
	"strconv"
	"strings"
)

const CounterpartCodePrefix = "AGC"

var siteCodePrefixes = map[SiteKind]string{
	SiteKindWarehouse: "WH",
	SiteKindFactory:   "FC",
}

// SiteCodePrefix returns the code prefix for kind.
func SiteCodePrefix(kind SiteKind) (string, bool) {
	p, ok := siteCodePrefixes[kind]
	return p, ok
}

// NextCode returns the code following last for prefix ("WH-007" -> "WH-008").
// An empty or malformed last code starts the sequence at 001.
func NextCode(prefix, last string) string {
	n := 0
	if i := strings.LastIndex(last, "-"); i >= 0 {
		if parsed, err := strconv.Atoi(last[i+1:]); err == nil {
			n = parsed
		}
	}
	return fmt.Sprintf("%s-%03d", prefix, n+1)
}
