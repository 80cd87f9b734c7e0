package symbols

import "strings"

// suffixes is the total suffix set stripped during normalization (spec.md
// §3). Order matters: longer/more specific suffixes are tried first so
// "BTC-PERP" doesn't get only "PERP" stripped, leaving a stray "-".
var suffixes = []string{"-PERP", "-USD", "USDT", "USDC", "USD", "PERP"}

// Normalize derives the canonical join key for a per-venue raw identifier:
// uppercase, then strip the first matching suffix, repeating until no
// suffix matches. Idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	up := strings.ToUpper(strings.TrimSpace(raw))
	for {
		stripped := false
		for _, suf := range suffixes {
			if strings.HasSuffix(up, suf) && len(up) > len(suf) {
				up = strings.TrimSuffix(up, suf)
				stripped = true
				break
			}
		}
		if !stripped {
			return up
		}
	}
}
