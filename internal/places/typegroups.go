package places

// DefaultTypeGroups is the fixed fan-out order used when the caller does not
// name explicit types. Each group bundles related categories into one
// provider call; the order matters because the merge tie-break is
// last-write-wins over this sequence.
var DefaultTypeGroups = [][]string{
	{"restaurant"},
	{"american_restaurant", "hamburger_restaurant", "steak_house"},
	{"italian_restaurant", "pizza_restaurant"},
	{"mexican_restaurant", "spanish_restaurant"},
	{"chinese_restaurant", "japanese_restaurant", "sushi_restaurant"},
	{"korean_restaurant", "thai_restaurant", "vietnamese_restaurant"},
	{"indian_restaurant", "mediterranean_restaurant", "greek_restaurant"},
	{"fast_food_restaurant", "sandwich_shop", "meal_takeaway"},
	{"cafe", "coffee_shop", "bakery"},
	{"ice_cream_shop", "bar", "juice_shop"},
	{"vegan_restaurant", "vegetarian_restaurant"},
	{"middle_eastern_restaurant", "french_restaurant"},
	{"seafood_restaurant"},
	{"barbecue_restaurant", "ramen_restaurant"},
	{"breakfast_restaurant", "brunch_restaurant"},
}

// maxTypesPerCall is the provider's ceiling on included types per request.
const maxTypesPerCall = 10
