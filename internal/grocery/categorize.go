// Package grocery classifies item names into store-aisle categories.
package grocery

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/grocerytracker/internal/model"
)

// Other is the category of any item no rule recognizes.
const Other = "Other"

type rule struct {
	category string
	exact    []string
	contains []string
}

var rules = []rule{
	{
		category: "Produce",
		exact: []string{
			"apple", "apples", "banana", "bananas", "orange", "oranges", "lemon", "lemons",
			"lime", "limes", "avocado", "avocados", "tomato", "tomatoes", "potato", "potatoes",
			"onion", "onions", "garlic", "lettuce", "spinach", "kale", "broccoli", "carrots",
			"celery", "cucumber", "cucumbers", "peppers", "mushrooms", "corn", "grapes",
			"strawberries", "blueberries",
		},
		contains: []string{
			"spinach", "lettuce", "berries", "berry", "apple", "banana", "avocado", "tomato",
			"potato", "onion", "pepper", "carrot", "celery", "grape", "produce",
		},
	},
	{
		category: "Dairy",
		exact: []string{
			"milk", "eggs", "butter", "cheese", "yogurt", "cream cheese", "sour cream",
			"heavy cream", "half and half", "cottage cheese",
		},
		contains: []string{
			"cream cheese", "sour cream", "heavy cream", "cottage cheese", "half and half",
			"yogurt", "cheese", "butter", "milk", "egg",
		},
	},
	{
		category: "Meat & Seafood",
		exact: []string{
			"chicken", "beef", "pork", "bacon", "sausage", "turkey", "ham", "salmon",
			"shrimp", "tuna", "steak", "ground beef",
		},
		contains: []string{
			"ground beef", "pepperoni", "chicken", "salmon", "shrimp", "sausage", "bacon",
			"turkey", "steak", "beef", "pork", "fish",
		},
	},
	{
		category: "Bakery",
		exact:    []string{"bread", "bagels", "tortillas", "buns", "rolls", "muffins", "croissants"},
		contains: []string{
			"sourdough", "whole wheat", "croissant", "tortilla", "bagel", "muffin", "bread",
			"bun", "roll",
		},
	},
	{
		category: "Pantry",
		exact:    []string{"rice", "pasta", "flour", "sugar", "salt", "oil", "cereal", "beans"},
		contains: []string{
			"peanut butter", "olive oil", "coconut oil", "maple syrup", "hot sauce", "soy sauce",
			"pasta sauce", "tomato sauce", "canned", "cereal", "oatmeal", "granola", "rice",
			"pasta", "noodle", "flour", "sugar", "spice", "seasoning", "sauce", "broth",
			"stock", "soup", "bean", "lentil",
		},
	},
	{
		category: "Frozen",
		exact:    []string{"ice cream", "frozen pizza", "frozen vegetables"},
		contains: []string{"frozen", "ice cream", "popsicle", "pizza"},
	},
	{
		category: "Beverages",
		exact:    []string{"coffee", "tea", "juice", "soda", "water", "beer", "wine"},
		contains: []string{
			"sparkling water", "orange juice", "apple juice", "coffee", "juice", "soda",
			"water", "beer", "wine", "drink", "tea",
		},
	},
	{
		category: "Snacks",
		exact:    []string{"chips", "crackers", "cookies", "popcorn", "pretzels", "candy"},
		contains: []string{
			"granola bar", "trail mix", "fruit snack", "chocolate", "cracker", "cookie",
			"popcorn", "pretzel", "candy", "snack", "chip",
		},
	},
	{
		category: "Household",
		exact:    []string{"paper towels", "toilet paper", "trash bags", "dish soap", "detergent"},
		contains: []string{
			"paper towel", "toilet paper", "trash bag", "garbage bag", "dish soap",
			"plastic wrap", "light bulb", "detergent", "laundry", "cleaner", "cleaning",
			"sponge", "ziplock", "battery", "foil",
		},
	},
	{
		category: "Personal Care",
		exact:    []string{"shampoo", "conditioner", "toothpaste", "deodorant", "soap"},
		contains: []string{
			"body wash", "shampoo", "conditioner", "toothpaste", "toothbrush", "deodorant",
			"sunscreen", "band-aid", "lotion", "tissue", "razor",
		},
	},
}

type keyword struct {
	text     string
	category string
}

var (
	exactMatch = make(map[string]string)
	// Longest keyword first, so "peanut butter" wins over "butter".
	keywords []keyword
)

func init() {
	for _, r := range rules {
		for _, name := range r.exact {
			exactMatch[name] = r.category
		}
		for _, k := range r.contains {
			keywords = append(keywords, keyword{text: k, category: r.category})
		}
	}
	sort.SliceStable(keywords, func(i, j int) bool {
		return len(keywords[i].text) > len(keywords[j].text)
	})
}

// Categorize returns the category for the given item name, matching
// case-insensitively: exact name first, then the longest contained keyword.
func Categorize(itemName string) string {
	name := strings.ToLower(strings.TrimSpace(itemName))
	if name == "" {
		return Other
	}
	if cat, ok := exactMatch[name]; ok {
		return cat
	}
	for _, k := range keywords {
		if strings.Contains(name, k.text) {
			return k.category
		}
	}
	return Other
}

// CategorySpend is the amount spent on one category.
type CategorySpend struct {
	Category  string          `json:"category"`
	Purchases int             `json:"purchases"`
	Total     decimal.Decimal `json:"total"`
}

// SpendByCategory totals purchases per category, largest total first.
func SpendByCategory(purchases []model.Purchase) []CategorySpend {
	totals := make(map[string]*CategorySpend)
	for _, p := range purchases {
		cat := Categorize(p.ItemName)
		cs, ok := totals[cat]
		if !ok {
			cs = &CategorySpend{Category: cat}
			totals[cat] = cs
		}
		cs.Purchases++
		cs.Total = cs.Total.Add(p.Price)
	}

	out := make([]CategorySpend, 0, len(totals))
	for _, cs := range totals {
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Total.Equal(out[j].Total) {
			return out[i].Total.GreaterThan(out[j].Total)
		}
		return out[i].Category < out[j].Category
	})
	return out
}
