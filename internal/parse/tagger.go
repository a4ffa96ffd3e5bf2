package parse

import (
	"errors"
	"regexp"
	"strings"

	"github.com/pfrederiksen/permit-scraper/internal/permit"
)

// Label names an address component.
type Label string

const (
	LabelAddressNumber       Label = "AddressNumber"
	LabelPreDirectional      Label = "StreetNamePreDirectional"
	LabelStreetName          Label = "StreetName"
	LabelPostType            Label = "StreetNamePostType"
	LabelPostDirectional     Label = "StreetNamePostDirectional"
	LabelOccupancyType       Label = "OccupancyType"
	LabelOccupancyIdentifier Label = "OccupancyIdentifier"
	LabelPlaceName           Label = "PlaceName"
	LabelStateName           Label = "StateName"
	LabelZipCode             Label = "ZipCode"
)

// TypeStreetAddress is the address type reported for a tagged street address.
const TypeStreetAddress = "Street Address"

var (
	ErrEmptyAddress   = errors.New("empty address")
	ErrNoStreetNumber = errors.New("no address number")
	ErrNoStreetName   = errors.New("no street name")
)

// Tagged is the labeled decomposition of an address.
type Tagged struct {
	Components map[Label]string
	Type       string
}

// Address converts the tagged components into the record's address shape.
func (t Tagged) Address() permit.Address {
	c := t.Components
	addr := permit.Address{
		StreetNumber:    c[LabelAddressNumber],
		StreetDirection: c[LabelPreDirectional],
		StreetName:      c[LabelStreetName],
		StreetType:      c[LabelPostType],
		StreetSuffix:    c[LabelPostDirectional],
		Unit:            c[LabelOccupancyIdentifier],
		City:            c[LabelPlaceName],
		State:           c[LabelStateName],
		Zip:             c[LabelZipCode],
		ParsedType:      t.Type,
	}
	addr.AssembleStreet()
	return addr
}

// Tagger labels the components of a free-form address.
type Tagger interface {
	Tag(address string) (Tagged, error)
}

// StreetTagger is a rule-based Tagger for US street addresses of the form
// "<number> [dir] <name> [type] [dir] [unit], <city>, <state> <zip>".
type StreetTagger struct{}

var (
	zipTokenRe    = regexp.MustCompile(`^\d{5}(?:-\d{4})?$`)
	numberTokenRe = regexp.MustCompile(`^\d+(?:-\d+)?[A-Z]?$`)
)

var directionals = map[string]bool{
	"N": true, "S": true, "E": true, "W": true,
	"NE": true, "NW": true, "SE": true, "SW": true,
	"NORTH": true, "SOUTH": true, "EAST": true, "WEST": true,
	"NORTHEAST": true, "NORTHWEST": true, "SOUTHEAST": true, "SOUTHWEST": true,
}

// USPS street suffixes, common forms and abbreviations.
var streetTypes = map[string]bool{
	"ALLEY": true, "ALY": true,
	"AVENUE": true, "AVE": true, "AV": true,
	"BOULEVARD": true, "BLVD": true,
	"CIRCLE": true, "CIR": true,
	"COURT": true, "CT": true,
	"COVE": true, "CV": true,
	"CROSSING": true, "XING": true,
	"DRIVE": true, "DR": true,
	"EXPRESSWAY": true, "EXPY": true,
	"FREEWAY": true, "FWY": true,
	"HIGHWAY": true, "HWY": true,
	"LANE": true, "LN": true,
	"LOOP":    true,
	"PARKWAY": true, "PKWY": true,
	"PASS":  true,
	"PATH":  true,
	"PLACE": true, "PL": true,
	"PLAZA": true, "PLZ": true,
	"POINT": true, "PT": true,
	"RIDGE": true, "RDG": true,
	"ROAD": true, "RD": true,
	"ROW":    true,
	"RUN":    true,
	"SQUARE": true, "SQ": true,
	"STREET": true, "ST": true,
	"TERRACE": true, "TER": true,
	"TRAIL": true, "TRL": true,
	"WAY": true, "WY": true,
}

var unitDesignators = map[string]bool{
	"APT": true, "APARTMENT": true,
	"UNIT": true,
	"STE":  true, "SUITE": true,
	"BLDG": true, "BUILDING": true,
	"FL": true, "FLOOR": true,
	"RM": true, "ROOM": true,
	"SPC": true, "SPACE": true,
	"LOT": true,
	"#":   true,
}

var states = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true, "CT": true,
	"DE": true, "DC": true, "FL": true, "GA": true, "HI": true, "ID": true, "IL": true,
	"IN": true, "IA": true, "KS": true, "KY": true, "LA": true, "ME": true, "MD": true,
	"MA": true, "MI": true, "MN": true, "MS": true, "MO": true, "MT": true, "NE": true,
	"NV": true, "NH": true, "NJ": true, "NM": true, "NY": true, "NC": true, "ND": true,
	"OH": true, "OK": true, "OR": true, "PA": true, "RI": true, "SC": true, "SD": true,
	"TN": true, "TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true,
	"NEVADA": true, "CALIFORNIA": true, "ARIZONA": true, "UTAH": true,
}

type addrToken struct {
	text string
	key  string
	seg  int
}

func tokenize(address string) []addrToken {
	var tokens []addrToken
	for seg, part := range strings.Split(address, ",") {
		for _, field := range strings.Fields(part) {
			tokens = append(tokens, addrToken{
				text: field,
				key:  strings.ToUpper(strings.TrimRight(field, ".")),
				seg:  seg,
			})
		}
	}
	return tokens
}

func joinTokens(tokens []addrToken) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.text
	}
	return strings.Join(parts, " ")
}

// Tag labels the components of address.
func (StreetTagger) Tag(address string) (Tagged, error) {
	tokens := tokenize(address)
	if len(tokens) == 0 {
		return Tagged{}, ErrEmptyAddress
	}

	c := make(map[Label]string)

	// Trailing ZIP and state. A bare state abbreviation at the end of the
	// street segment is more likely a suffix ("Ct", "Wy") unless a ZIP follows.
	hasZip := false
	if last := tokens[len(tokens)-1]; zipTokenRe.MatchString(last.key) {
		c[LabelZipCode] = last.text
		tokens = tokens[:len(tokens)-1]
		hasZip = true
	}
	if n := len(tokens); n > 1 && states[tokens[n-1].key] && (hasZip || tokens[n-1].seg > 0) {
		c[LabelStateName] = tokens[n-1].text
		tokens = tokens[:n-1]
	}

	if len(tokens) == 0 || !numberTokenRe.MatchString(tokens[0].key) {
		return Tagged{}, ErrNoStreetNumber
	}
	c[LabelAddressNumber] = tokens[0].text

	var street, rest []addrToken
	for _, t := range tokens[1:] {
		if t.seg == tokens[0].seg {
			street = append(street, t)
		} else {
			rest = append(rest, t)
		}
	}

	// Unit designator ends the street proper.
	unitAt := len(street)
	for i, t := range street {
		if unitDesignators[t.key] || strings.HasPrefix(t.key, "#") {
			unitAt = i
			break
		}
	}
	street, unit := street[:unitAt], street[unitAt:]

	i := 0
	if len(street) > 1 && directionals[street[0].key] &&
		!(len(street) == 2 && streetTypes[street[1].key]) {
		c[LabelPreDirectional] = street[0].text
		i = 1
	}

	// With a separate city segment the type is the last suffix word of the
	// street; otherwise the city follows the street, so take the first.
	typeAt := -1
	for j := i + 1; j < len(street); j++ {
		if streetTypes[street[j].key] {
			typeAt = j
			if len(rest) == 0 {
				break
			}
		}
	}

	var trailing []addrToken
	if typeAt < 0 {
		c[LabelStreetName] = joinTokens(street[i:])
	} else {
		c[LabelStreetName] = joinTokens(street[i:typeAt])
		c[LabelPostType] = street[typeAt].text
		after := street[typeAt+1:]
		if len(after) > 0 && directionals[after[0].key] {
			c[LabelPostDirectional] = after[0].text
			after = after[1:]
		}
		trailing = after
	}
	if c[LabelStreetName] == "" {
		return Tagged{}, ErrNoStreetName
	}

	if len(unit) > 0 {
		if strings.HasPrefix(unit[0].key, "#") && len(unit[0].key) > 1 {
			c[LabelOccupancyIdentifier] = unit[0].text
			unit = unit[1:]
		} else {
			c[LabelOccupancyType] = unit[0].text
			if len(unit) > 1 {
				c[LabelOccupancyIdentifier] = unit[1].text
				unit = unit[2:]
			} else {
				unit = nil
			}
		}
		trailing = append(trailing, unit...)
	}

	if city := joinTokens(append(trailing, rest...)); city != "" {
		c[LabelPlaceName] = city
	}

	return Tagged{Components: c, Type: TypeStreetAddress}, nil
}
