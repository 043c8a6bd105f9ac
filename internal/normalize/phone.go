package normalize

import (
	"strings"

	"golang.org/x/text/width"
)

// mobilePrefixes are the 11-digit number prefixes hyphenated as 3-4-4.
// 050 (IP phones) shares the grouping of the mobile prefixes.
var mobilePrefixes = map[string]bool{
	"090": true,
	"080": true,
	"070": true,
	"050": true,
}

// Phone normalizes a phone number to half-width digits and hyphens.
//
// Full-width digits (０１２...) are narrowed, every character other than a
// digit or hyphen is removed, and numbers that arrive without hyphens are
// re-grouped by area-code pattern:
//
//	03/06 + 8 digits  -> 03-xxxx-xxxx
//	mobile 11 digits  -> 090-xxxx-xxxx
//	other 10 digits   -> 0xx-xxx-xxxx
//	other 11 digits   -> 0xxx-xxx-xxxx
//
// A number that already contains hyphens keeps its grouping. Phone is
// idempotent: Phone(Phone(s)) == Phone(s).
func Phone(s string) string {
	if s == "" {
		return ""
	}

	// Full-width digits and hyphens appear on Japanese sites.
	s = width.Narrow.String(s)

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	phone := b.String()
	if phone == "" {
		return ""
	}

	digits := strings.ReplaceAll(phone, "-", "")

	// Some sources drop the leading 0 from the area code.
	if !strings.HasPrefix(digits, "0") && len(digits) >= 10 {
		digits = "0" + digits
		phone = "0" + phone
	}

	// Already grouped; keep the caller's hyphenation.
	if strings.Contains(phone, "-") {
		return phone
	}

	switch {
	case len(digits) == 10 && (strings.HasPrefix(digits, "03") || strings.HasPrefix(digits, "06")):
		// Tokyo and Osaka use a 2-digit area code.
		return digits[:2] + "-" + digits[2:6] + "-" + digits[6:]
	case len(digits) == 10:
		return digits[:3] + "-" + digits[3:6] + "-" + digits[6:]
	case len(digits) == 11 && mobilePrefixes[digits[:3]]:
		return digits[:3] + "-" + digits[3:7] + "-" + digits[7:]
	case len(digits) == 11:
		// 4-digit area codes such as 0120.
		return digits[:4] + "-" + digits[4:7] + "-" + digits[7:]
	default:
		return digits
	}
}
