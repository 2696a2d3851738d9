package util

import (
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountFromMinorUnits renders an integer amount of minor currency units
// (cents) as a decimal string, e.g. 13647 -> "136.47".
func AmountFromMinorUnits(v int64) string {
	return decimal.New(v, -2).String()
}

// DateDMYToYMD converts "14.02.2019" to ISO "2019-02-14". Input that is not
// dot-separated is returned with its segments reversed as-is; callers feed it
// provider dates that already match the DD.MM.YYYY shape.
func DateDMYToYMD(s string) string {
	parts := strings.Split(s, ".")
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "-")
}

// SameIBAN compares two IBANs ignoring any whitespace. Two empty values do
// not match.
func SameIBAN(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return stripSpace(a) == stripSpace(b)
}

func stripSpace(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// AddQuery appends URL-encoded parameters to a URI that may or may not
// already carry a query string.
func AddQuery(uri string, params map[string]string) string {
	if len(params) == 0 {
		return uri
	}
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	return uri + sep + values.Encode()
}

// ContainsOnlyDigits reports whether s is non-empty and consists of ASCII
// digits only.
func ContainsOnlyDigits(s string) bool {
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
