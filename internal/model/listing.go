package model

import (
	"errors"
	"strings"
	"time"
)

// Source identifies where a listing was scraped from.
type Source string

// Known listing sources.
const (
	// SourceTabelog marks listings scraped from Tabelog HTML pages.
	SourceTabelog Source = "tabelog"

	// SourceHotPepper marks listings fetched from the Hot Pepper gourmet API.
	SourceHotPepper Source = "hotpepper"
)

// Label returns the Japanese display name used in spreadsheet output.
func (s Source) Label() string {
	switch s {
	case SourceTabelog:
		return "食べログ"
	case SourceHotPepper:
		return "ホットペッパーグルメ"
	default:
		return string(s)
	}
}

// ErrMissingName is returned by Validate when a listing has no shop name.
// Listings without a name are always dropped; every other field may be empty.
var ErrMissingName = errors.New("listing has no shop name")

// Listing is one scraped restaurant record.
//
// The JSON field names match the checkpoint file format, so checkpoints
// written by earlier runs remain readable.
type Listing struct {
	// Name is the shop name. This is the only required field.
	Name string `json:"shop_name"`

	// Phone is the phone number, normalized to digits and hyphens.
	Phone string `json:"phone"`

	// Address is the street address. Postal marks and relocation notes
	// are stripped during normalization.
	Address string `json:"address"`

	// Genre is the cuisine genre (居酒屋, イタリアン, ...).
	Genre string `json:"genre"`

	// Station is the nearest station.
	Station string `json:"station"`

	// OpenTime is the operating hours as free text.
	OpenTime string `json:"open_time"`

	// Source names the site or API the listing came from.
	Source Source `json:"source"`

	// URL is the listing's detail page URL. It is the primary
	// deduplication key.
	URL string `json:"url"`

	// ScrapedAt is when the listing was fetched.
	ScrapedAt time.Time `json:"scraped_at"`
}

// Validate reports whether the listing is usable.
// A listing missing a name is always rejected; all other fields are optional
// and default to empty strings when the source page omits them.
func (l *Listing) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return ErrMissingName
	}
	return nil
}
