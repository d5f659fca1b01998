package classify

import "strings"

// CategoryTriggers maps each category to its keyword triggers, matched as
// case-insensitive substrings. A trigger may appear under several
// categories; each category counts independently.
//
// Short triggers that occur inside unrelated words are avoided: "lock"
// (block), "net" (cabinet), "ac" (back), a bare "mess" (message).
var CategoryTriggers = map[Category][]string{
	Plumbing: {
		"tap", "leak", "pipe", "water", "drain", "toilet", "flush", "sink",
		"shower", "clog", "plumb", "overflow", "geyser",
	},
	Electrical: {
		"light", "fan", "switch", "socket", "power", "electric", "bulb",
		"wiring", "short circuit", "fuse", "current", "geyser", "heater",
		"air conditioner", "voltage",
	},
	Cleanliness: {
		"dirty", "garbage", "trash", "clean", "dust", "smell", "stink",
		"cockroach", "rats", "pest", "mosquito", "sweep", "filthy",
	},
	Security: {
		"theft", "stolen", "thief", "security", "guard", "door lock",
		"locker", "padlock", "intruder", "unsafe", "harass", "cctv", "stranger",
	},
	Connectivity: {
		"wifi", "wi-fi", "internet", "network", "router", "bandwidth",
		"connection", "signal", "ethernet", "lan cable",
	},
	Food: {
		"food", "mess food", "mess hall", "mess staff", "canteen", "meal",
		"breakfast", "lunch", "dinner", "stale", "menu", "cook", "vegetable",
	},
	Furniture: {
		"chair", "table", "bed", "mattress", "cupboard", "almirah", "desk",
		"shelf", "wardrobe", "furniture",
	},
}

// CategoryScore is the outcome of scoring one message.
type CategoryScore struct {
	Category Category
	Scores   map[Category]int
	// Fallback is true when no trigger matched and Category defaulted to Other.
	Fallback bool
}

// Score counts the triggers present for every category and picks the
// strictly highest, breaking ties by declaration order in Categories.
func Score(text string) CategoryScore {
	lowered := strings.ToLower(text)

	result := CategoryScore{
		Category: Other,
		Scores:   make(map[Category]int, len(CategoryTriggers)),
	}

	best := 0
	for _, category := range Categories {
		score := 0
		for _, trigger := range CategoryTriggers[category] {
			if strings.Contains(lowered, trigger) {
				score++
			}
		}
		result.Scores[category] = score
		if score > best {
			best = score
			result.Category = category
		}
	}

	result.Fallback = best == 0
	return result
}

// Categorize returns the winning category for text.
func Categorize(text string) Category {
	return Score(text).Category
}
