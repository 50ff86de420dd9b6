// Package categorize maps free-text transaction descriptions to a spending
// category using ordered keyword rules.
//
// Matching is a case-insensitive substring test. Rules are evaluated in a
// fixed order and the first match wins, so a description that mentions both
// "restaurant" and "uber" is Food.
package categorize

import "strings"

const (
	Food          = "Food"
	Transport     = "Transport"
	Housing       = "Housing"
	Shopping      = "Shopping"
	Entertainment = "Entertainment"
	Health        = "Health"
	Other         = "Other"

	// Income is the label used for income records that carry no category.
	// The keyword rules never produce it.
	Income = "Income"
)

// Rule assigns Category when any keyword occurs in the description.
type Rule struct {
	Category string
	Keywords []string
}

var rules = []Rule{
	{Food, []string{"grocery", "groceries", "restaurant", "food", "swiggy", "zomato", "cafe", "coffee", "pizza", "burger", "dining", "lunch", "dinner", "breakfast", "bakery", "supermarket"}},
	{Transport, []string{"uber", "ola", "taxi", "cab", "fuel", "petrol", "diesel", "metro", "bus", "train", "flight", "parking", "toll", "rapido"}},
	{Housing, []string{"rent", "electricity", "water bill", "maintenance", "mortgage", "utility", "utilities", "gas bill", "internet", "broadband"}},
	{Shopping, []string{"amazon", "flipkart", "myntra", "shopping", "mall", "store", "clothes", "clothing", "apparel", "electronics"}},
	{Entertainment, []string{"netflix", "spotify", "movie", "cinema", "prime video", "hotstar", "concert", "game", "gaming", "subscription"}},
	{Health, []string{"hospital", "pharmacy", "medicine", "doctor", "clinic", "medical", "apollo", "health", "gym", "fitness"}},
}

// Rules returns a copy of the rule table in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = Rule{Category: r.Category, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}

// Classify returns the category of the first rule matching description,
// or Other when nothing matches.
func Classify(description string) string {
	desc := strings.ToLower(description)
	if strings.TrimSpace(desc) == "" {
		return Other
	}
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(desc, kw) {
				return rule.Category
			}
		}
	}
	return Other
}
