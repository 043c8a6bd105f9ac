// Package dedup removes duplicate listings collected from multiple
// sources. Two listings are duplicates when they share a URL, a shop
// name, or a normalized phone number. The first-seen listing always
// wins; later duplicates are discarded.
package dedup
