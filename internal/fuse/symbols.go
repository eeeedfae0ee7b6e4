package fuse

import (
	"regexp"
	"sort"
)

var symbolPattern = regexp.MustCompile(`\b[A-Z]{2,5}\b`)

// stopWords are uppercase runs that look like tickers but never are.
var stopWords = map[string]struct{}{
	"IPO": {}, "CEO": {}, "CFO": {}, "ETF": {}, "USD": {},
	"SEC": {}, "AI": {}, "IT": {},
}

// ExtractSymbols tokenizes uppercase runs of 2-5 letters from free text and
// returns the distinct candidates sorted, with common non-ticker words
// filtered out.
func ExtractSymbols(text string) []string {
	seen := make(map[string]struct{})
	for _, m := range symbolPattern.FindAllString(text, -1) {
		if _, stop := stopWords[m]; stop {
			continue
		}
		seen[m] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
