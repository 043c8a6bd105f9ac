package normalize

import "testing"

// TestAddress tests address normalization.
func TestAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain address unchanged", in: "東京都渋谷区渋谷1-1-1", want: "東京都渋谷区渋谷1-1-1"},
		{name: "postal mark stripped", in: "〒150-0002 東京都渋谷区渋谷1-1-1", want: "東京都渋谷区渋谷1-1-1"},
		{name: "relocation note cut", in: "東京都新宿区西新宿2-2-2このお店は移転しました", want: "東京都新宿区西新宿2-2-2"},
		{name: "footnote cut", in: "大阪府大阪市北区梅田1-1-1 ※ビル2F", want: "大阪府大阪市北区梅田1-1-1"},
		{name: "surrounding whitespace trimmed", in: "  東京都港区六本木6-6-6  ", want: "東京都港区六本木6-6-6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Address(tt.in); got != tt.want {
				t.Errorf("Address(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestAddressIdempotent verifies that normalizing twice equals normalizing once.
func TestAddressIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"〒150-0002 東京都渋谷区渋谷1-1-1",
		"東京都新宿区西新宿2-2-2このお店は移転しました",
		"  大阪府大阪市北区梅田1-1-1 ※注記  ",
	}

	for _, in := range inputs {
		once := Address(in)
		twice := Address(once)
		if once != twice {
			t.Errorf("Address not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

// TestValidAddress tests the prefecture sanity check.
func TestValidAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "empty is allowed", in: "", want: true},
		{name: "tokyo address", in: "東京都渋谷区渋谷1-1-1", want: true},
		{name: "hokkaido address", in: "北海道札幌市中央区北1条", want: true},
		{name: "too short", in: "渋谷", want: false},
		{name: "no prefecture", in: "somewhere street 12345", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := ValidAddress(tt.in); got != tt.want {
				t.Errorf("ValidAddress(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// TestText tests free-text cleanup.
func TestText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "collapses whitespace", in: "11:00  〜\n 22:00\t(L.O.21:30)", want: "11:00 〜 22:00 (L.O.21:30)"},
		{name: "strips control characters", in: "月\x00〜金\x1f 17:00〜", want: "月 〜金 17:00〜"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Text(tt.in); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestTruncateText tests rune-aware truncation.
func TestTruncateText(t *testing.T) {
	t.Parallel()

	if got := TruncateText("営業時間は店舗による", 5); got != "営業時間は..." {
		t.Errorf("TruncateText() = %q, want %q", got, "営業時間は...")
	}
	if got := TruncateText("short", 10); got != "short" {
		t.Errorf("TruncateText() = %q, want %q", got, "short")
	}
	if got := TruncateText("anything", 0); got != "anything" {
		t.Errorf("TruncateText() with no limit = %q, want %q", got, "anything")
	}
}
