package helpers

import "testing"

func TestEscapeMarkdownV2(t *testing.T) {
	got := EscapeMarkdownV2("BTC-USD (spot) 1.5!")
	want := `BTC\-USD \(spot\) 1\.5\!`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFormatPriceUS(t *testing.T) {
	tests := []struct {
		price float64
		want  string
	}{
		{115000, "115,000"},
		{3200.75, "3,201"},
		{145.25, "145.25"},
		{0.5, "0.500000"},
		{0.0000042, "0.00000420"},
	}

	for _, tt := range tests {
		if got := FormatPriceUS(tt.price, false); got != tt.want {
			t.Errorf("FormatPriceUS(%f) got %q, want %q", tt.price, got, tt.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	if got := FormatPercent(-12.345, false); got != "-12.35%" {
		t.Fatalf("got %q", got)
	}
	if got := FormatPercent(3.2, true); got != `\+3\.20%` {
		t.Fatalf("escaped got %q", got)
	}
}
