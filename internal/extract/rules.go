package extract

import (
	"regexp"
	"strings"
)

// Rule is one entry of an extraction cascade.
//
// Pattern runs against the lowercased message. Group selects the capture
// group handed to Normalize (0 means the whole match). A candidate whose
// captured text is in Reject is skipped and the cascade moves on.
type Rule struct {
	Name      string
	Pattern   *regexp.Regexp
	Group     int
	Normalize func(string) string
	Reject    map[string]bool
}

// apply returns the first acceptable normalized match of r in text.
func (r Rule) apply(text string) (string, bool) {
	for _, m := range r.Pattern.FindAllStringSubmatch(text, -1) {
		if r.Group >= len(m) {
			continue
		}
		candidate := m[r.Group]
		if candidate == "" || r.Reject[candidate] {
			continue
		}
		// Reject lists may also name prefixes (e.g. "rm" for "rm12").
		if r.rejectPrefix(candidate) {
			continue
		}
		normalized := candidate
		if r.Normalize != nil {
			normalized = r.Normalize(candidate)
		}
		if normalized != "" {
			return normalized, true
		}
	}
	return "", false
}

func (r Rule) rejectPrefix(candidate string) bool {
	for prefix := range r.Reject {
		if strings.HasSuffix(prefix, "*") && strings.HasPrefix(candidate, strings.TrimSuffix(prefix, "*")) {
			return true
		}
	}
	return false
}

// compact uppercases s and strips all whitespace.
func compact(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// blockName canonicalizes "block a", "a block" and "a-block" to "BLOCK-A".
func blockName(s string) string {
	letter := strings.Trim(compact(strings.ReplaceAll(s, "block", "")), "-")
	if len(letter) != 1 {
		return ""
	}
	return "BLOCK-" + letter
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// FacilityRules is the facility cascade. Order matters: the specific code
// and block forms run before the generic "<word> hostel" form, which would
// otherwise claim common nouns.
var FacilityRules = []Rule{
	{
		// Two-letter code with optional hyphen: kp-7, bh12. The shape also
		// fits amounts and units, so "rs500" would read as a facility.
		Name:      "code",
		Pattern:   regexp.MustCompile(`\b([a-z]{2}-?\d{1,3})\b`),
		Group:     1,
		Normalize: compact,
		// rm/no introduce room numbers, rs an amount in rupees.
		Reject: set("rm*", "no*", "rs*"),
	},
	{
		Name:      "block",
		Pattern:   regexp.MustCompile(`\b(block(?:\s*-\s*|\s+)[a-z]|[a-z](?:\s*-\s*|\s+)block)\b`),
		Group:     1,
		Normalize: blockName,
	},
	{
		// "<name> hostel": ganga hostel, boys hall.
		Name:      "named",
		Pattern:   regexp.MustCompile(`\b([a-z][a-z0-9]*)\s+(?:hostel|hall|facility)\b`),
		Group:     1,
		Normalize: compact,
		Reject: set("the", "my", "our", "this", "that", "a", "an", "in", "at", "of",
			"your", "same", "whole", "entire", "to", "from", "for", "near", "and", "is"),
	},
	{
		// "hostel <id>": hostel 7, hall no b2, facility #12.
		Name:      "marker",
		Pattern:   regexp.MustCompile(`\b(?:hostel|hall|facility)\s*(?:no\.?|number|#)?\s*[-:]?\s*([a-z]?\d{1,3}[a-z]?)\b`),
		Group:     1,
		Normalize: compact,
	},
}

// SubUnitRules is the room-number cascade. The last rule is a deliberately
// permissive fallback: any standalone 3-4 digit number. It will pick up
// times or prices ("since 1030", "paid 500"); that trade-off is accepted
// for short conversational messages.
var SubUnitRules = []Rule{
	{
		Name:    "room",
		Pattern: regexp.MustCompile(`\broom\s*(?:no\.?|number|#)?\s*[-:]?\s*(\d{2,4})\b`),
		Group:   1,
	},
	{
		Name:    "rm",
		Pattern: regexp.MustCompile(`\brm\.?\s*(?:no\.?)?\s*[-:]?\s*(\d{2,4})\b`),
		Group:   1,
	},
	{
		Name:    "hash",
		Pattern: regexp.MustCompile(`#\s?(\d{1,5})\b`),
		Group:   1,
	},
	{
		Name:    "bare",
		Pattern: regexp.MustCompile(`\b(\d{3,4})\b`),
		Group:   1,
	},
}
