package parse

import (
	"regexp"
	"strings"

	"github.com/pfrederiksen/permit-scraper/internal/logger"
	"github.com/pfrederiksen/permit-scraper/internal/permit"
)

// DefaultState is the jurisdiction's state, assumed when the fallback parser
// cannot read one.
const DefaultState = "NV"

// ParsedTypeFallback marks an address decomposed by the regex fallback.
const ParsedTypeFallback = "Fallback"

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	zipRe        = regexp.MustCompile(`\b(\d{5})(?:-\d{4})?\b`)
	streetRe     = regexp.MustCompile(`^(\d+)\s+(.+?)(?:,|$)`)
)

// Address decomposes a site address. The tagger is tried first; when it
// fails the regex fallback fills what it can. Both paths produce the same
// shape. Blank input yields the zero Address.
func Address(text string, tagger Tagger) permit.Address {
	text = whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
	if text == "" {
		return permit.Address{}
	}

	if tagger != nil {
		tagged := Try(func() (Tagged, error) { return tagger.Tag(text) })
		if t, ok := tagged.Get(); ok {
			return t.Address()
		}
		logger.Warn("Advanced address parsing failed", logger.Fields{
			"address": text,
			"reason":  tagged.Diagnostic(),
		})
	}
	return FallbackAddress(text)
}

// FallbackAddress extracts a ZIP code and a leading "<number> <street>"
// segment. State defaults to DefaultState.
func FallbackAddress(text string) permit.Address {
	addr := permit.Address{
		State:      DefaultState,
		ParsedType: ParsedTypeFallback,
	}

	if m := zipRe.FindStringSubmatch(text); m != nil {
		addr.Zip = m[1]
	}
	if m := streetRe.FindStringSubmatch(text); m != nil {
		addr.StreetNumber = m[1]
		addr.StreetAddress = strings.TrimRight(strings.TrimSpace(m[0]), ",")
	}
	return addr
}
