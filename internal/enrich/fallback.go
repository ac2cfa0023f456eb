package enrich

import (
	"regexp"
	"strings"

	"github.com/couchcryptid/disaster-enrichment-service/internal/domain"
)

// Strategy finds a candidate location in free text.
type Strategy func(text string) (string, bool)

// capitalized matches one or more capitalized words: "Central Park", "Fort Worth".
const capitalized = `[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*`

var (
	prepositionPhrase = regexp.MustCompile(`(?:in|at|near|around)\s+` + capitalized)
	cityStateCode     = regexp.MustCompile(capitalized + `,\s*[A-Z]{2,3}`)
	placeTypeNoun     = regexp.MustCompile(capitalized + `\s+(?:City|Town|Village|County|State)`)

	leadingPreposition = regexp.MustCompile(`^(?i:in|at|near|around)\s+`)
)

// FallbackStrategies are tried in order when the model cannot extract a location.
var FallbackStrategies = []Strategy{
	regexStrategy(prepositionPhrase), // "flooding in Houston"
	regexStrategy(cityStateCode),     // "Austin, TX"
	regexStrategy(placeTypeNoun),     // "Kansas City", "Orange County"
}

func regexStrategy(re *regexp.Regexp) Strategy {
	return func(text string) (string, bool) {
		m := re.FindString(text)
		return m, m != ""
	}
}

// ExtractByPatterns returns the first location found by the strategies, in
// order, or domain.UnknownLocation when none matches.
func ExtractByPatterns(text string, strategies []Strategy) string {
	for _, s := range strategies {
		if m, ok := s(text); ok {
			return cleanLocation(m)
		}
	}
	return domain.UnknownLocation
}

func cleanLocation(m string) string {
	loc := strings.TrimSpace(leadingPreposition.ReplaceAllString(m, ""))
	return strings.TrimSuffix(loc, ",")
}
