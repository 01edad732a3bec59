package dedup

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are entity designators dropped before comparing names.
var legalSuffixes = []string{
	"l.l.c.", "l.l.c", "llc", "pllc", "incorporated", "inc.", "inc",
	"corporation", "corp.", "corp", "limited", "ltd.", "ltd",
	"l.l.p.", "llp", "l.p.", "lp", "p.c.", "pc", "p.a.", "pa",
	"company", "co.", "co", "plc", "dba", "d/b/a",
}

var (
	punctRe      = regexp.MustCompile(`[^a-z0-9 ]+`)
	multiSpaceRe = regexp.MustCompile(`\s+`)
)

// foldAccents strips combining marks: "Café" becomes "Cafe". Transformers
// are stateful, so one is built per call.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeName reduces a business name to its comparable core: accents
// folded, lower-cased, trailing entity suffixes removed, "&" spelled out and
// punctuation dropped.
func NormalizeName(name string) string {
	name = strings.ToLower(foldAccents(strings.TrimSpace(name)))
	if name == "" {
		return ""
	}
	name = strings.NewReplacer("&", " and ", "-", " ", ",", " ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")

	for {
		trimmed := false
		for _, suffix := range legalSuffixes {
			if strings.HasSuffix(name, " "+suffix) {
				name = strings.TrimSpace(strings.TrimSuffix(name, suffix))
				trimmed = true
				break
			}
		}
		if !trimmed {
			break
		}
	}

	name = punctRe.ReplaceAllString(name, "")
	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}
