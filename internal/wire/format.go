// Package wire encodes finalized customs declarations into the T12
// fixed-field document format accepted by the CAPS host system.
package wire

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// Delimiter separates fields within a T12 record. The format has no
// quoting, so the delimiter must never appear inside field values.
const Delimiter = "|"

// countryAlpha2 maps ISO 3166-1 alpha-3 codes to the alpha-2 codes the
// host system expects. Codes missing from this table degrade to their
// first two characters.
var countryAlpha2 = map[string]string{
	"ATG": "AG",
	"BHS": "BS",
	"BRB": "BB",
	"BLZ": "BZ",
	"BRA": "BR",
	"CAN": "CA",
	"CHN": "CN",
	"COL": "CO",
	"CRI": "CR",
	"CUB": "CU",
	"DEU": "DE",
	"DMA": "DM",
	"DOM": "DO",
	"ESP": "ES",
	"FRA": "FR",
	"GBR": "GB",
	"GRD": "GD",
	"GTM": "GT",
	"GUY": "GY",
	"HND": "HN",
	"HTI": "HT",
	"IND": "IN",
	"ITA": "IT",
	"JPN": "JP",
	"KNA": "KN",
	"KOR": "KR",
	"LCA": "LC",
	"MEX": "MX",
	"NLD": "NL",
	"PAN": "PA",
	"PER": "PE",
	"SUR": "SR",
	"TTO": "TT",
	"TWN": "TW",
	"USA": "US",
	"VCT": "VC",
	"VEN": "VE",
	"VNM": "VN",
	"ZAF": "ZA",
}

// Text scrubs the delimiter out of a free-text value and truncates it
// to maxLen characters. It never pads.
func Text(value string, maxLen int) string {
	v := strings.ReplaceAll(value, Delimiter, " ")
	if maxLen >= 0 && utf8.RuneCountInString(v) > maxLen {
		v = string([]rune(v)[:maxLen])
	}
	return v
}

// Numeric clamps a value to the largest integer expressible in
// maxDigits digits and renders it as a plain integer string.
func Numeric(value int64, maxDigits int) string {
	if value < 0 {
		value = 0
	}
	limit := int64(math.Pow10(maxDigits)) - 1
	if value > limit {
		value = limit
	}
	return fmt.Sprintf("%d", value)
}

// Decimal renders a fixed-point value with exactly places digits after
// the point. No thousands separators.
func Decimal(value float64, places int) string {
	return fmt.Sprintf("%.*f", places, value)
}

// Date renders a timestamp as DD/MM/YYYY. Zero timestamps render as
// the empty string rather than an epoch date.
func Date(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.Format("02/01/2006")
}

// CountryCode normalizes a country value to the 2-letter code the host
// expects. Known alpha-3 codes are remapped; anything else is
// uppercased, trimmed and cut to its first two characters. It is total:
// no input errors.
func CountryCode(value string) string {
	v := strings.ToUpper(strings.TrimSpace(value))
	if mapped, ok := countryAlpha2[v]; ok {
		return mapped
	}
	if len(v) > 2 {
		return v[:2]
	}
	return v
}

// TariffNumber strips everything except digits and right-pads with
// zeros (or truncates) to exactly 7 digits.
func TariffNumber(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) >= 7 {
		return digits[:7]
	}
	return digits + strings.Repeat("0", 7-len(digits))
}
