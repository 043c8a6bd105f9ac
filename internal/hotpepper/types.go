package hotpepper

import (
	"strings"
	"time"

	"github.com/Tohoso/restaurant-scraper/internal/model"
	"github.com/Tohoso/restaurant-scraper/internal/normalize"
)

// response is the top-level API response envelope.
type response struct {
	Results results `json:"results"`
}

// results holds the search results or an API error. Numeric fields come
// back inconsistently typed (results_available is a number,
// results_returned a string), matching the live API.
type results struct {
	Available int        `json:"results_available"`
	Returned  string     `json:"results_returned"`
	Start     int        `json:"results_start"`
	Shops     []Shop     `json:"shop"`
	Errors    []apiError `json:"error"`
}

// apiError is one entry of the API's error array.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Shop is one restaurant as returned by the gourmet API. Only the fields
// the scraper consumes are mapped.
type Shop struct {
	Name        string `json:"name"`
	Tel         string `json:"tel"`
	KtaiTel     string `json:"ktai_tel"`
	Address     string `json:"address"`
	StationName string `json:"station_name"`
	Access      string `json:"access"`
	Open        string `json:"open"`
	Close       string `json:"close"`

	Genre struct {
		Name string `json:"name"`
	} `json:"genre"`

	Budget struct {
		Name string `json:"name"`
	} `json:"budget"`

	URLs struct {
		PC string `json:"pc"`
	} `json:"urls"`
}

// Listing converts the shop to a normalized listing. It returns false
// when the shop lacks a name or address, the two fields the API
// guarantees for usable records.
func (s Shop) Listing() (model.Listing, bool) {
	name := strings.TrimSpace(s.Name)
	address := normalize.Address(s.Address)
	if name == "" || address == "" {
		return model.Listing{}, false
	}

	// The mobile-optimized number (ktai_tel) is populated more reliably
	// than tel.
	phone := s.KtaiTel
	if phone == "" {
		phone = s.Tel
	}

	station := s.StationName
	if station != "" && !strings.HasSuffix(station, "駅") {
		station += "駅"
	}

	return model.Listing{
		Name:      name,
		Phone:     normalize.Phone(phone),
		Address:   address,
		Genre:     normalize.Text(s.Genre.Name),
		Station:   station,
		OpenTime:  normalize.Text(s.Open),
		Source:    model.SourceHotPepper,
		URL:       s.URLs.PC,
		ScrapedAt: time.Now(),
	}, true
}
