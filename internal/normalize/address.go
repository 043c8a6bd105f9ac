package normalize

import (
	"regexp"
	"strings"
)

// postalMarkRe matches the Japanese postal mark with its code (〒150-0002)
// that Tabelog prepends to addresses.
var postalMarkRe = regexp.MustCompile(`〒\d{3}-\d{4}\s*`)

// relocationMarkers introduce trailing notes that are not part of the
// address ("このお店は移転しました", "※..." remarks).
var relocationMarkers = []string{"このお店は", "※"}

// prefectures are the 47 Japanese prefecture names used to sanity-check
// scraped addresses.
var prefectures = []string{
	"北海道", "青森県", "岩手県", "宮城県", "秋田県", "山形県", "福島県",
	"茨城県", "栃木県", "群馬県", "埼玉県", "千葉県", "東京都", "神奈川県",
	"新潟県", "富山県", "石川県", "福井県", "山梨県", "長野県", "岐阜県",
	"静岡県", "愛知県", "三重県", "滋賀県", "京都府", "大阪府", "兵庫県",
	"奈良県", "和歌山県", "鳥取県", "島根県", "岡山県", "広島県", "山口県",
	"徳島県", "香川県", "愛媛県", "高知県", "福岡県", "佐賀県", "長崎県",
	"熊本県", "大分県", "宮崎県", "鹿児島県", "沖縄県",
}

// Address normalizes a scraped street address.
// The postal mark is stripped and trailing relocation or footnote text
// is cut off.
func Address(s string) string {
	if s == "" {
		return ""
	}

	s = strings.TrimSpace(s)
	s = postalMarkRe.ReplaceAllString(s, "")

	for _, marker := range relocationMarkers {
		if idx := strings.Index(s, marker); idx >= 0 {
			s = s[:idx]
		}
	}

	return strings.TrimSpace(s)
}

// ValidAddress reports whether an address looks plausible.
// An empty address is allowed (missing fields default to empty strings);
// a non-empty one must be at least a few characters long and contain a
// prefecture name.
func ValidAddress(s string) bool {
	if s == "" {
		return true
	}
	if len([]rune(s)) < 5 {
		return false
	}
	for _, pref := range prefectures {
		if strings.Contains(s, pref) {
			return true
		}
	}
	return false
}
