package categorize

// DefaultRules is the built-in rule table. More specific patterns come
// before broader ones sharing a prefix (ubereats before uber trips, amazon
// digital before amazon).
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "ubereats", Category: "Food Delivery"},
		{Pattern: "uber eats", Category: "Food Delivery"},
		{Pattern: "doordash", Category: "Food Delivery"},
		{Pattern: "skipthedishes", Category: "Food Delivery"},
		{Pattern: "uber *trip", Category: "Transport"},
		{Pattern: "starbucks", Category: "Coffee"},
		{Pattern: "tim hortons", Category: "Coffee"},
		{Pattern: "blue bottle", Category: "Coffee"},
		{Pattern: "trader joe", Category: "Groceries"},
		{Pattern: "whole foods", Category: "Groceries"},
		{Pattern: "safeway", Category: "Groceries"},
		{Pattern: "walmart", Category: "Household"},
		{Pattern: "ikea", Category: "Household"},
		{Pattern: "shell", Category: "Gas", Match: MatchToken},
		{Pattern: "netflix", Category: "Subscription"},
		{Pattern: "spotify", Category: "Subscription"},
		{Pattern: "amazon digital", Category: "Subscription"},
		{Pattern: "amazon", Category: "Retail"},
		{Pattern: "telus", Category: "Utilities"},
		{Pattern: "rent", Category: "Rent", Match: MatchToken},
		{Pattern: "restaurant", Category: "Dining"},
	}
}
