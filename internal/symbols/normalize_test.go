package symbols

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"btc-usd":    "BTC",
		"BTC-PERP":   "BTC",
		"ETHUSDT":    "ETH",
		"ethusdc":    "ETH",
		"  sol-usd ": "SOL",
		"PERP":       "PERP", // suffix-only input has no room to strip
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalize_IsIdempotent(t *testing.T) {
	for _, raw := range []string{"btc-usd", "ETH-PERP", "SOLUSDT"} {
		once := Normalize(raw)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", raw, once, twice)
		}
	}
}
