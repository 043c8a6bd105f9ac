// Package tabelog scrapes restaurant listings from Tabelog.
//
// List pages (https://tabelog.com/tokyo/<area>/rstLst/<page>/) yield
// detail page URLs; detail pages yield the listing fields. Tabelog's
// markup varies between page generations, so every field is extracted
// through a cascade of selectors, falling back to label-based lookup in
// the info table (th/td pairs such as 電話番号 and 住所).
package tabelog
