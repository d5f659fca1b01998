// Package classify maps complaint text onto a category and a priority.
//
// Both classifiers are keyword based, deterministic and total: every input
// yields a member of the closed enumerations below.
package classify

import "strings"

// Category is the department-facing complaint category.
type Category string

const (
	Plumbing     Category = "PLUMBING"
	Electrical   Category = "ELECTRICAL"
	Cleanliness  Category = "CLEANLINESS"
	Security     Category = "SECURITY"
	Connectivity Category = "CONNECTIVITY"
	Food         Category = "FOOD"
	Furniture    Category = "FURNITURE"
	Other        Category = "OTHER"
)

// Categories lists every category in declaration order. The order is also
// the tie-break order for scoring: the first declared category wins.
var Categories = []Category{
	Plumbing, Electrical, Cleanliness, Security, Connectivity, Food, Furniture, Other,
}

// Priority is the urgency label attached to a complaint.
type Priority string

const (
	Low    Priority = "LOW"
	Medium Priority = "MEDIUM"
	High   Priority = "HIGH"
	Urgent Priority = "URGENT"
)

// Priorities lists every priority from least to most urgent.
var Priorities = []Priority{Low, Medium, High, Urgent}

// ParseCategory maps a label onto a Category. Unknown labels become Other.
// "WIFI" is accepted as an alias for Connectivity.
func ParseCategory(s string) Category {
	label := strings.ToUpper(strings.TrimSpace(s))
	if label == "WIFI" {
		return Connectivity
	}
	for _, c := range Categories {
		if string(c) == label {
			return c
		}
	}
	return Other
}

// ParsePriority maps a label onto a Priority. Unknown labels become Medium.
func ParsePriority(s string) Priority {
	label := strings.ToUpper(strings.TrimSpace(s))
	for _, p := range Priorities {
		if string(p) == label {
			return p
		}
	}
	return Medium
}

// Valid reports whether c is a declared category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Valid reports whether p is a declared priority.
func (p Priority) Valid() bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}
