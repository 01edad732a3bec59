package strategy

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/blok-blok-studio/leadscraper/internal/clean"
)

// ownerTitles are decision-maker titles, longest alternatives first so the
// leftmost-first regexp prefers "co-founder" over "founder".
var ownerTitles = []string{
	"managing director", "co-founder", "cofounder", "proprietor", "president",
	"principal", "director", "founder", "manager", "partner", "owner", "chief", "ceo",
}

const personPattern = `([A-Z][a-z]+(?:\s+[A-Z]\.?)?\s+[A-Z][a-z]+)`

var titlePattern = `(?i:` + strings.Join(quoteAll(ownerTitles), "|") + `)`

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = regexp.QuoteMeta(s)
	}
	return out
}

type ownerPattern struct {
	re        *regexp.Regexp
	nameGroup int
	// titleGroup is 0 when the pattern implies the Owner title.
	titleGroup int
}

var ownerPatterns = []ownerPattern{
	// "Jane Doe, Owner"
	{regexp.MustCompile(personPattern + `\s*[,\-–—|/]\s*(` + titlePattern + `)\b`), 1, 2},
	// "Owner: Jane Doe"
	{regexp.MustCompile(`\b(` + titlePattern + `)\s*[:\-–—|/]\s*` + personPattern), 2, 1},
	// "Meet our Owner Jane Doe"
	{regexp.MustCompile(`(?i:meet\s+(?:our\s+)?|about\s+)(` + titlePattern + `)\s+` + personPattern), 2, 1},
	// "owned by Jane Doe"
	{regexp.MustCompile(`(?i:owned|founded|started)\s+by\s+` + personPattern), 1, 0},
}

var titleRe = regexp.MustCompile(`\b` + titlePattern + `\b`)

// titleCase formats a matched title. Casers are stateful, so one is built
// per call.
func titleCase(s string) string {
	if strings.EqualFold(s, "ceo") {
		return "CEO"
	}
	return cases.Title(language.English).String(strings.ToLower(s))
}

// titleIn returns the first decision-maker title mentioned in text.
func titleIn(text string) string {
	m := titleRe.FindString(text)
	if m == "" {
		return ""
	}
	return titleCase(m)
}

// findOwner scans text for the first name-plus-title mention that passes
// ValidPersonName.
func findOwner(text string) (name, title string, ok bool) {
	for _, p := range ownerPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			cand := strings.Join(strings.Fields(m[p.nameGroup]), " ")
			if !ValidPersonName(cand) {
				continue
			}
			t := "Owner"
			if p.titleGroup > 0 {
				t = titleCase(m[p.titleGroup])
			}
			return cand, t, true
		}
	}
	return "", "", false
}

var entitySuffixes = map[string]bool{
	"llc": true, "inc": true, "corp": true, "corporation": true, "co": true,
	"company": true, "ltd": true, "lp": true, "llp": true, "pc": true,
	"pllc": true, "plc": true, "pa": true,
}

// ValidPersonName reports whether s is plausibly a person's name. Place
// names, state codes, entity suffixes and names without two parts of at
// least two letters are rejected.
func ValidPersonName(s string) bool {
	parts := strings.Fields(s)
	if len(parts) < 2 {
		return false
	}
	lower := strings.ToLower(strings.Join(parts, " "))
	if majorCities[lower] || clean.IsStateName(lower) {
		return false
	}
	if last := strings.ToLower(parts[len(parts)-1]); len(last) > 2 && clean.IsStateName(last) {
		return false
	}
	if len(parts) >= 3 && clean.IsStateName(strings.ToLower(strings.Join(parts[len(parts)-2:], " "))) {
		return false
	}

	long := 0
	for _, p := range parts {
		word := strings.Trim(p, ".,")
		if entitySuffixes[strings.ToLower(word)] {
			return false
		}
		if len(word) == 2 && word == strings.ToUpper(word) && clean.StateCode(word) != "" {
			return false
		}
		if letters(word) >= 2 {
			long++
		}
	}
	return long >= 2
}

func letters(s string) int {
	n := 0
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			n++
		}
	}
	return n
}

// majorCities are US city names that the owner-name patterns commonly
// mistake for people.
var majorCities = map[string]bool{}

func init() {
	for _, c := range []string{
		"aberdeen", "akron", "albany", "albuquerque", "alexandria", "allentown", "anchorage",
		"ann arbor", "annapolis", "arlington", "atlanta", "augusta", "aurora", "austin",
		"baltimore", "bangor", "baton rouge", "bellevue", "bend", "billings", "birmingham",
		"bismarck", "boise", "boston", "bowling green", "bridgeport", "buffalo", "burlington",
		"cambridge", "casper", "cedar rapids", "charleston", "charlotte", "chattanooga",
		"cheyenne", "chicago", "cincinnati", "cleveland", "colorado springs", "columbia",
		"columbus", "concord", "cranston", "dallas", "denver", "des moines", "detroit", "dover",
		"duluth", "durham", "el paso", "eugene", "evansville", "fairbanks", "fargo",
		"fayetteville", "fort collins", "fort lauderdale", "fort smith", "fort wayne",
		"fort worth", "frederick", "fresno", "grand forks", "grand rapids", "great falls",
		"green bay", "greensboro", "greenville", "gulfport", "harrisburg", "hartford",
		"hattiesburg", "henderson", "hilo", "honolulu", "houston", "huntington", "huntsville",
		"idaho falls", "indianapolis", "iowa city", "jackson", "jacksonville", "jersey city",
		"juneau", "kailua", "kansas city", "knoxville", "lansing", "laramie", "las cruces",
		"las vegas", "lewiston", "lexington", "lincoln", "little rock", "los angeles",
		"louisville", "madison", "manchester", "memphis", "meridian", "mesa", "miami",
		"milwaukee", "minneapolis", "missoula", "mobile", "montgomery", "montpelier",
		"morgantown", "myrtle beach", "naperville", "nashua", "nashville", "new haven",
		"new orleans", "new york", "newark", "norfolk", "norman", "oakland", "ogden",
		"oklahoma city", "omaha", "orlando", "overland park", "philadelphia", "phoenix",
		"pittsburgh", "portland", "princeton", "providence", "provo", "raleigh", "rapid city",
		"reno", "richmond", "rochester", "rockford", "rockville", "rutland", "sacramento",
		"salem", "salt lake city", "san antonio", "san diego", "san francisco", "san jose",
		"santa fe", "savannah", "scottsdale", "seattle", "shreveport", "sioux falls",
		"south bend", "spokane", "springfield", "st george", "st louis", "st paul",
		"st petersburg", "stamford", "syracuse", "tacoma", "tampa", "toledo", "topeka",
		"trenton", "tucson", "tulsa", "virginia beach", "warwick", "washington", "wichita",
		"wilmington", "worcester",
	} {
		majorCities[c] = true
	}
}
