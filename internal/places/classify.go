package places

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type keywordLabel struct {
	keyword string
	label   string
}

// typeCuisines maps provider category tags to cuisine labels.
var typeCuisines = map[string]string{
	"chinese_restaurant":   "Chinese",
	"italian_restaurant":   "Italian",
	"japanese_restaurant":  "Japanese",
	"korean_restaurant":    "Korean",
	"thai_restaurant":      "Thai",
	"indian_restaurant":    "Indian",
	"mexican_restaurant":   "Mexican",
	"pizza_restaurant":     "Pizza",
	"seafood_restaurant":   "Seafood",
	"steakhouse":           "Steakhouse",
	"barbecue_restaurant":  "BBQ",
	"cafe":                 "Cafe",
	"bakery":               "Bakery",
	"fast_food_restaurant": "Fast Food",
	"meal_delivery":        "Delivery",
	"meal_takeaway":        "Takeaway",
}

// nameCuisines is checked in order against the lower-cased place name.
var nameCuisines = []keywordLabel{
	{"pizza", "Pizza"},
	{"chinese", "Chinese"},
	{"italian", "Italian"},
	{"japanese", "Japanese"},
	{"sushi", "Japanese"},
	{"korean", "Korean"},
	{"thai", "Thai"},
	{"indian", "Indian"},
	{"mexican", "Mexican"},
	{"kosher", "Kosher"},
	{"bbq", "BBQ"},
	{"steakhouse", "Steakhouse"},
	{"seafood", "Seafood"},
	{"cafe", "Cafe"},
	{"deli", "Deli"},
	{"bakery", "Bakery"},
}

type cuisineInput struct {
	types []string
	name  string
	focus []string
}

// cuisineStages run in priority order; the first stage returning a label wins.
var cuisineStages = []func(cuisineInput) (string, bool){
	byCategoryTag,
	byZoneFocus,
	byNameKeyword,
}

// ClassifyCuisine labels a place by category tag, then zone cuisine focus found in the name,
// then the name keyword dictionary. It returns "" when nothing matches.
func ClassifyCuisine(types []string, name string, focus []string) string {
	in := cuisineInput{types: types, name: strings.ToLower(name), focus: focus}
	for _, stage := range cuisineStages {
		if label, ok := stage(in); ok {
			return label
		}
	}
	return ""
}

func byCategoryTag(in cuisineInput) (string, bool) {
	for _, t := range in.types {
		if label, ok := typeCuisines[t]; ok {
			return label, true
		}
	}
	return "", false
}

func byZoneFocus(in cuisineInput) (string, bool) {
	for _, cuisine := range in.focus {
		c := strings.TrimSpace(cuisine)
		if c != "" && strings.Contains(in.name, strings.ToLower(c)) {
			return capitalize(c), true
		}
	}
	return "", false
}

func byNameKeyword(in cuisineInput) (string, bool) {
	for _, kw := range nameCuisines {
		if strings.Contains(in.name, kw.keyword) {
			return kw.label, true
		}
	}
	return "", false
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
