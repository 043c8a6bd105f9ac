package tabelog

import (
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Tohoso/restaurant-scraper/internal/model"
	"github.com/Tohoso/restaurant-scraper/internal/normalize"
)

// detailURLRe matches restaurant detail page paths, e.g.
// /tokyo/A1301/A130101/13000001/.
var detailURLRe = regexp.MustCompile(`/A\d+/A\d+/\d+/?$`)

// trailingParenRe matches a parenthesized suffix on shop names, e.g.
// "店名 (旧店名)".
var trailingParenRe = regexp.MustCompile(`\s*[(（][^)）]*[)）]\s*$`)

// listSelectors locate detail page links on a list page, newest markup
// first.
var listSelectors = []string{
	"a.list-rst__rst-name-target",
	"h3.list-rst__rst-name a",
	`div.list-rst__wrap a[href*="/A"]`,
	`a[class*="rst-name"]`,
}

// Field selector cascades for detail pages. Order matters: earlier
// entries match current markup, later ones older generations.
var (
	nameSelectors = []string{
		"h2.display-name span",
		"h2.display-name",
		"h1.display-name span",
		"h1.display-name",
		".rstinfo-table__name",
	}
	phoneSelectors = []string{
		"span.rstinfo-table__tel-num",
		"p.rstinfo-table__tel",
		"div.rstinfo-table__tel",
	}
	addressSelectors = []string{
		"p.rstinfo-table__address",
		"span.rstinfo-table__address",
		"div.rstinfo-table__address",
		"p.rstdtl-side-address__text",
	}
	genreSelectors = []string{
		".rstinfo-table__genre",
		`span[property="v:category"]`,
	}
	stationSelectors = []string{
		".rstinfo-table__access",
		"dl.rdheader-subinfo__item--station",
	}
	openTimeSelectors = []string{
		"p.rstinfo-table__open-hours",
		".rstinfo-table__open-hours",
		"dl.rdheader-subinfo__item--open-hours",
	}
)

// genreKeywords recognize genre text when it has to be fished out of
// generic link elements.
var genreKeywords = []string{
	"料理", "焼", "鍋", "寿司", "鮨", "そば", "うどん", "ラーメン",
	"カレー", "イタリアン", "フレンチ", "中華", "和食", "洋食",
	"カフェ", "バー", "居酒屋", "食堂", "レストラン", "ビストロ",
	"焼肉", "焼鳥", "ステーキ", "ハンバーグ", "とんかつ",
	"天ぷら", "串カツ", "串焼き", "ホルモン", "餃子",
	"パスタ", "ピザ", "バーガー", "パン", "スイーツ", "ケーキ",
}

// ParseListPage extracts restaurant detail URLs from a list page.
// Relative links are resolved against baseURL. The result preserves
// page order with duplicates removed.
func ParseListPage(baseURL string, r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var urls []string

	for _, selector := range listSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			if !ok || !detailURLRe.MatchString(href) {
				return
			}
			if !strings.HasPrefix(href, "http") {
				href = strings.TrimSuffix(baseURL, "/") + href
			}
			if _, ok := seen[href]; ok {
				return
			}
			seen[href] = struct{}{}
			urls = append(urls, href)
		})
	}

	return urls, nil
}

// ParseDetail extracts a listing from a detail page. The URL, source,
// and timestamp are left for the caller to fill in. Missing fields stay
// empty; validation happens downstream.
func ParseDetail(r io.Reader) (model.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return model.Listing{}, err
	}

	return model.Listing{
		Name:     extractName(doc),
		Phone:    extractPhone(doc),
		Address:  extractAddress(doc),
		Genre:    extractGenre(doc),
		Station:  extractStation(doc),
		OpenTime: extractOpenTime(doc),
	}, nil
}

// firstText returns the first non-empty text matched by the selector
// cascade.
func firstText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		if text := strings.TrimSpace(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// textByLabel finds a th (or dt) cell whose text contains one of the
// labels and returns the text of the matching td (or dd).
func textByLabel(doc *goquery.Document, labels ...string) string {
	var result string
	doc.Find("th, dt").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		cell := strings.TrimSpace(sel.Text())
		for _, label := range labels {
			if !strings.Contains(cell, label) {
				continue
			}
			value := strings.TrimSpace(sel.NextFiltered("td, dd").Text())
			if value != "" {
				result = value
				return false
			}
		}
		return true
	})
	return result
}

func extractName(doc *goquery.Document) string {
	name := firstText(doc, nameSelectors)
	if name == "" {
		return ""
	}
	name = trailingParenRe.ReplaceAllString(name, "")
	name = normalize.Text(name)
	if name == "食べログ" {
		return ""
	}
	return name
}

func extractPhone(doc *goquery.Document) string {
	if text := firstText(doc, phoneSelectors); text != "" {
		if phone := normalize.Phone(text); phone != "" {
			return phone
		}
	}
	if text := textByLabel(doc, "電話番号", "TEL", "Tel"); text != "" {
		return normalize.Phone(text)
	}
	return ""
}

func extractAddress(doc *goquery.Document) string {
	if text := firstText(doc, addressSelectors); text != "" {
		return normalize.Address(text)
	}
	if text := textByLabel(doc, "住所", "所在地"); text != "" {
		return normalize.Address(text)
	}
	return ""
}

func extractGenre(doc *goquery.Document) string {
	if genre := firstText(doc, genreSelectors); genre != "" && genre != "飲食店" {
		return normalize.Text(genre)
	}
	if genre := textByLabel(doc, "ジャンル", "カテゴリー"); genre != "" {
		return normalize.Text(genre)
	}

	// Last resort: breadcrumb-style links, skipping stations and rail
	// lines.
	var genre string
	doc.Find("span.linktree__parent-target-text").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if text == "" || strings.Contains(text, "駅") || strings.HasSuffix(text, "線") {
			return true
		}
		for _, keyword := range genreKeywords {
			if strings.Contains(text, keyword) {
				genre = text
				return false
			}
		}
		return true
	})
	return genre
}

func extractStation(doc *goquery.Document) string {
	if text := firstText(doc, stationSelectors); text != "" {
		return trimStation(text)
	}
	if text := textByLabel(doc, "交通手段", "最寄り駅", "最寄駅", "アクセス"); text != "" {
		return trimStation(text)
	}

	var station string
	doc.Find("span.linktree__parent-target-text").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if strings.Contains(text, "駅") {
			station = text
			return false
		}
		return true
	})
	return station
}

// trimStation keeps only the station name out of access descriptions
// like "渋谷駅から徒歩5分、他".
func trimStation(s string) string {
	s, _, _ = strings.Cut(s, "から")
	s, _, _ = strings.Cut(s, "、")
	return normalize.Text(s)
}

func extractOpenTime(doc *goquery.Document) string {
	if text := firstText(doc, openTimeSelectors); text != "" {
		return normalize.Text(text)
	}
	if text := textByLabel(doc, "営業時間", "営業"); text != "" {
		return normalize.Text(text)
	}
	return ""
}
