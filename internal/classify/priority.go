package classify

import "strings"

// PriorityRule assigns Priority when any of Keywords occurs in the text.
type PriorityRule struct {
	Priority Priority
	Keywords []string
}

// PriorityRules are evaluated in order, first match wins. Nothing maps to
// Low yet; a Low rule can be appended once the wording for it is agreed.
var PriorityRules = []PriorityRule{
	{Priority: Urgent, Keywords: []string{"urgent", "emergency"}},
	{Priority: High, Keywords: []string{"not working", "broken"}},
}

// DefaultPriority applies when no rule matches.
const DefaultPriority = Medium

// Prioritize returns the priority for text.
func Prioritize(text string) Priority {
	lowered := strings.ToLower(text)
	for _, rule := range PriorityRules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(lowered, keyword) {
				return rule.Priority
			}
		}
	}
	return DefaultPriority
}
