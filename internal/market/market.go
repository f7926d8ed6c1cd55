// Package market classifies ticker strings into the trading venues the
// system supports and normalizes them into their canonical form.
package market

import (
	"fmt"
	"strconv"
	"strings"
)

// Market identifies one of the supported trading venues.
type Market string

const (
	// US covers US equities (plain alphabetic tickers such as TSLA).
	US Market = "US"
	// HK covers Hong Kong equities (HK.00700 style codes).
	HK Market = "HK"
	// CN covers Mainland China A-shares (six digit codes such as 600519).
	CN Market = "CN"
)

// Classify maps a raw ticker to its market and canonical form. It is pure
// and never fails: anything unrecognized falls back to US. Precedence:
// explicit HK. prefix, then 4-5 digit numeric codes (padded to HK.%05d),
// then 6 digit numeric codes (CN), then US.
func Classify(ticker string) (Market, string) {
	code := strings.TrimSpace(ticker)

	if strings.HasPrefix(code, "HK.") {
		digits := code[len("HK."):]
		if n, err := strconv.Atoi(digits); err == nil {
			return HK, fmt.Sprintf("HK.%05d", n)
		}
		return HK, code
	}

	if isDigits(code) {
		switch {
		case len(code) >= 4 && len(code) <= 5:
			n, _ := strconv.Atoi(code)
			return HK, fmt.Sprintf("HK.%05d", n)
		case len(code) == 6:
			return CN, code
		}
	}

	return US, strings.ToUpper(code)
}

// Currency returns the display currency symbol for a market.
func Currency(m Market) string {
	switch m {
	case HK:
		return "HK$"
	case CN:
		return "¥"
	default:
		return "$"
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
