package complaint

import "hostelmon/internal/classify"

// DefaultRoutes maps each category to the responsible department.
var DefaultRoutes = map[classify.Category]string{
	classify.Plumbing:     "plumbing@university.edu",
	classify.Electrical:   "electrical@university.edu",
	classify.Cleanliness:  "housekeeping@university.edu",
	classify.Security:     "security@university.edu",
	classify.Connectivity: "it@university.edu",
	classify.Food:         "mess@university.edu",
	classify.Furniture:    "warden@university.edu",
	classify.Other:        "admin@university.edu",
}

// RoutingTable resolves a category to a route address. It is immutable
// once built and always has an OTHER entry.
type RoutingTable struct {
	routes map[classify.Category]string
}

// NewRoutingTable copies DefaultRoutes and applies overrides keyed by
// category label. Unknown labels and blank addresses are ignored.
func NewRoutingTable(overrides map[string]string) RoutingTable {
	routes := make(map[classify.Category]string, len(DefaultRoutes))
	for c, addr := range DefaultRoutes {
		routes[c] = addr
	}
	for label, addr := range overrides {
		c := classify.ParseCategory(label)
		if addr == "" {
			continue
		}
		// ParseCategory folds unknown labels into OTHER; only an explicit
		// OTHER key may replace the fallback.
		if c == classify.Other && label != string(classify.Other) {
			continue
		}
		routes[c] = addr
	}
	return RoutingTable{routes: routes}
}

// Lookup returns the address for c, falling back to the OTHER entry.
func (t RoutingTable) Lookup(c classify.Category) string {
	if addr, ok := t.routes[c]; ok && addr != "" {
		return addr
	}
	if addr, ok := t.routes[classify.Other]; ok && addr != "" {
		return addr
	}
	return DefaultRoutes[classify.Other]
}
