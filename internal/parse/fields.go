package parse

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/pfrederiksen/permit-scraper/internal/logger"
)

var currencyStripper = strings.NewReplacer("$", "", ",", "", " ", "", "\t", "", "\n", "", "\u00a0", "")

// Currency parses a money amount such as "$1,234.50". Negative amounts are
// rejected because permit financial fields are never negative. Zero is a
// value.
func Currency(text string) Result[float64] {
	cleaned := currencyStripper.Replace(strings.TrimSpace(text))
	if cleaned == "" {
		return None[float64]("")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		logger.Warn("Could not parse financial value", logger.Fields{"text": text})
		return None[float64]("unparseable amount: " + text)
	}
	if d.IsNegative() {
		logger.Warn("Negative financial value", logger.Fields{"value": d.String()})
		return None[float64]("negative amount: " + d.String())
	}

	f, _ := d.Float64()
	if math.IsInf(f, 0) {
		logger.Warn("Financial value out of range", logger.Fields{"text": text})
		return None[float64]("amount out of range: " + text)
	}
	return Some(f)
}

// Integer parses a count after dropping every non-digit character, so
// "1,234 sq ft" yields 1234.
func Integer(text string) Result[int] {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, text)
	if digits == "" {
		return None[int]("")
	}

	n, err := strconv.Atoi(digits)
	if err != nil {
		return None[int]("integer out of range: " + text)
	}
	return Some(n)
}

// Text trims surrounding whitespace. Blank text is absent.
func Text(text string) Result[string] {
	text = strings.TrimSpace(text)
	if text == "" {
		return None[string]("")
	}
	return Some(text)
}

// Date keeps a date string as presented, trimmed. No calendar validation is
// done because the portal's formats vary.
func Date(text string) Result[string] {
	return Text(text)
}
