package config

import (
	"fmt"
	"regexp"
	"sort"
)

// Area is one Tabelog search area: a human-readable name and the code
// that appears in Tabelog URLs (e.g. https://tabelog.com/tokyo/A1301/).
type Area struct {
	Name string
	Code string
}

// areaCodeRe matches raw Tabelog area codes passed directly on the
// command line.
var areaCodeRe = regexp.MustCompile(`^A\d{4}$`)

// tokyoAreas maps Tokyo area names to Tabelog area codes. Codes A1314
// and A1321 are skipped on Tabelog itself.
var tokyoAreas = map[string]string{
	"銀座・新橋・有楽町":      "A1301",
	"東京・丸の内・日本橋":     "A1302",
	"渋谷":             "A1303",
	"新宿・代々木・大久保":     "A1304",
	"池袋～高田馬場・早稲田":    "A1305",
	"原宿・表参道・青山":      "A1306",
	"六本木・麻布・広尾":      "A1307",
	"赤坂・永田町・溜池":      "A1308",
	"四ツ谷・市ヶ谷・飯田橋":    "A1309",
	"秋葉原・神田・水道橋":     "A1310",
	"上野・浅草・日暮里":      "A1311",
	"錦糸町・押上・新小岩":     "A1312",
	"葛飾・江戸川・江東":      "A1313",
	"蒲田・大森・羽田周辺":     "A1315",
	"恵比寿・目黒・品川":      "A1316",
	"自由が丘・中目黒・学芸大学":  "A1317",
	"下北沢・明大前・成城学園前":  "A1318",
	"中野・吉祥寺・三鷹":      "A1319",
	"西荻窪・荻窪・阿佐ヶ谷":    "A1320",
	"板橋・東武練馬・下赤塚":    "A1322",
	"大塚・巣鴨・駒込・赤羽":    "A1323",
	"千住・綾瀬・葛飾":       "A1324",
}

// Coordinate is a latitude/longitude pair for Hot Pepper API searches,
// which are coordinate-based rather than area-code based.
type Coordinate struct {
	Lat float64
	Lng float64
}

// hotPepperCoordinates maps Hot Pepper search area names to coordinates.
var hotPepperCoordinates = map[string]Coordinate{
	"東京都心": {Lat: 35.6762, Lng: 139.6503},
	"新宿":   {Lat: 35.6896, Lng: 139.7006},
	"渋谷":   {Lat: 35.6598, Lng: 139.7006},
	"池袋":   {Lat: 35.7295, Lng: 139.7109},
	"銀座":   {Lat: 35.6762, Lng: 139.7649},
	"大阪梅田": {Lat: 34.7024, Lng: 135.4959},
	"大阪難波": {Lat: 34.6661, Lng: 135.5000},
	"名古屋駅": {Lat: 35.1706, Lng: 136.8816},
	"横浜駅":  {Lat: 35.4657, Lng: 139.6201},
	"福岡天神": {Lat: 33.5904, Lng: 130.4017},
}

// hotPepperAreaMapping maps Tabelog area names to the Hot Pepper search
// areas that cover roughly the same ground. Areas without an entry fall
// back to a Tokyo-wide search.
var hotPepperAreaMapping = map[string][]string{
	"銀座・新橋・有楽町":   {"銀座"},
	"新宿・代々木・大久保":  {"新宿"},
	"渋谷":          {"渋谷"},
	"池袋～高田馬場・早稲田": {"池袋"},
	"東京・丸の内・日本橋":  {"東京都心"},
}

// AllAreas returns every known Tokyo area sorted by area code.
func AllAreas() []Area {
	areas := make([]Area, 0, len(tokyoAreas))
	for name, code := range tokyoAreas {
		areas = append(areas, Area{Name: name, Code: code})
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].Code < areas[j].Code })
	return areas
}

// ResolveArea turns an area argument into an Area. It accepts a known
// area name or a raw Tabelog area code such as A1301. Unknown raw codes
// are accepted as-is so that areas outside the built-in table remain
// reachable.
func ResolveArea(s string) (Area, error) {
	if code, ok := tokyoAreas[s]; ok {
		return Area{Name: s, Code: code}, nil
	}
	if areaCodeRe.MatchString(s) {
		name := s
		for n, c := range tokyoAreas {
			if c == s {
				name = n
				break
			}
		}
		return Area{Name: name, Code: s}, nil
	}
	return Area{}, fmt.Errorf("%w: %s", ErrUnknownArea, s)
}

// ResolveAreas resolves all area arguments, returning all Tokyo areas
// when the list is empty.
func ResolveAreas(args []string) ([]Area, error) {
	if len(args) == 0 {
		return AllAreas(), nil
	}
	areas := make([]Area, 0, len(args))
	for _, a := range args {
		area, err := ResolveArea(a)
		if err != nil {
			return nil, err
		}
		areas = append(areas, area)
	}
	return areas, nil
}

// HotPepperSearchPoints returns the coordinates to query for an area
// name. Unmapped areas fall back to the Tokyo-wide point.
func HotPepperSearchPoints(areaName string) []Coordinate {
	names, ok := hotPepperAreaMapping[areaName]
	if !ok {
		names = []string{"東京都心"}
	}
	points := make([]Coordinate, 0, len(names))
	for _, n := range names {
		if c, ok := hotPepperCoordinates[n]; ok {
			points = append(points, c)
		}
	}
	return points
}
