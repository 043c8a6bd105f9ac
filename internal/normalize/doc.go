// Package normalize cleans scraped field values.
//
// Phone numbers are reduced to half-width digits and hyphens and re-hyphenated
// by Japanese area-code pattern. Addresses lose their postal mark and
// relocation notes and can be checked for a prefecture name. Free text is
// collapsed to single spaces with control characters removed.
//
// All functions are idempotent: applying them twice gives the same result
// as applying them once.
package normalize
