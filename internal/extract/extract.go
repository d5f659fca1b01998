// Package extract pulls location fields out of free-text complaint messages.
//
// Each field is found by an ordered cascade of Rules, first match wins.
// Extraction is total: any input, including the empty string, yields either
// nil or a non-empty normalized string. Nothing here returns an error.
package extract

import "strings"

// Extractor runs a facility and a sub-unit cascade. The zero value is not
// useful; use New or the package-level functions.
type Extractor struct {
	facility []Rule
	subUnit  []Rule
}

// New returns an Extractor over the given cascades. Callers adding naming
// conventions append to copies of FacilityRules/SubUnitRules.
func New(facility, subUnit []Rule) *Extractor {
	return &Extractor{facility: facility, subUnit: subUnit}
}

// Default is the Extractor over the package cascades.
var Default = New(FacilityRules, SubUnitRules)

// Facility returns the normalized facility identifier, or nil.
func (e *Extractor) Facility(text string) *string {
	return firstMatch(e.facility, text)
}

// SubUnit returns the room/unit number, or nil.
func (e *Extractor) SubUnit(text string) *string {
	return firstMatch(e.subUnit, text)
}

// Facility extracts a facility with the default cascade.
func Facility(text string) *string {
	return Default.Facility(text)
}

// SubUnit extracts a sub-unit with the default cascade.
func SubUnit(text string) *string {
	return Default.SubUnit(text)
}

func firstMatch(rules []Rule, text string) *string {
	lowered := strings.ToLower(text)
	if strings.TrimSpace(lowered) == "" {
		return nil
	}
	for _, rule := range rules {
		if v, ok := rule.apply(lowered); ok {
			return &v
		}
	}
	return nil
}
