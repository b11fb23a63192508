package catalog

// defaultCards is the catalog served when no catalog.json is present.
func defaultCards() []CardEntry {
	return []CardEntry{
		{Type: "Amazon (Physical)", Amounts: []float64{25, 50, 100, 200}},
		{Type: "Visa", Amounts: []float64{50, 100, 200}},
		{Type: "iTunes/Apple (eCode)", Amounts: []float64{25, 50, 100}},
		{Type: "Google Play", Amounts: []float64{25, 50, 100}},
		{Type: "Steam", Amounts: []float64{20, 50, 100}},
		{Type: "PlayStation", Amounts: []float64{10, 25, 50, 100}},
		{Type: "Sephora", Amounts: []float64{25, 50, 100}},
		{Type: "Foot Locker", Amounts: []float64{50, 100}},
		{Type: "Macy's", Amounts: []float64{25, 50, 100}},
		{Type: "Nordstrom", Amounts: []float64{50, 100}},
		{Type: "Target", Amounts: []float64{25, 50, 100}},
		{Type: "Nike", Amounts: []float64{25, 50, 100}},
		{Type: "Lululemon", Amounts: []float64{50, 100}},
		{Type: "American Express", Amounts: []float64{50, 100, 200}},
		{Type: "Neosurf", Amounts: []float64{10, 50, 100}},
		{Type: "Paysafecard", Amounts: []float64{10, 25, 50, 100}},
		{Type: "NetSpend", Amounts: []float64{20, 50, 100}},
		{Type: "Razer Gold", Amounts: []float64{10, 20, 50, 100}},
		{Type: "US Uber", Amounts: []float64{15, 25, 50}},
		{Type: "US Nintendo", Amounts: []float64{20, 35, 50}},
		{Type: "US Fun & Games", Amounts: []float64{25, 50}},
		{Type: "US Dollar General", Amounts: []float64{25, 50}},
		{Type: "US Coach", Amounts: []float64{50, 100}},
		{Type: "UK Tesco", Amounts: []float64{25, 50, 100}},
		{Type: "UK ASDA", Amounts: []float64{25, 50}},
		{Type: "UK Home Depot", Amounts: []float64{25, 50, 100}},
		{Type: "UK Love2shop", Amounts: []float64{25, 50}},
		{Type: "EUR Nintendo", Amounts: []float64{15, 25, 50}},
		{Type: "Eneba Germany", Amounts: []float64{10, 25, 50}},
		{Type: "Joker Card", Amounts: []float64{25, 50, 100}},
		{Type: "US MoneyPak", Amounts: []float64{20, 50, 100, 200}},
	}
}

// defaultCategories groups card types for faceted browsing. A type may
// appear under any number of tags.
func defaultCategories() map[string][]string {
	return map[string][]string{
		"popular": {"Amazon (Physical)", "Visa", "iTunes/Apple (eCode)", "Google Play", "Steam", "PlayStation"},
		"retail":  {"Sephora", "Foot Locker", "Macy's", "Nordstrom", "Target", "Nike", "Lululemon"},
		"prepaid": {"American Express", "Neosurf", "Paysafecard", "NetSpend", "Razer Gold"},
		"us":      {"US Uber", "US Nintendo", "US Fun & Games", "US Dollar General", "US Coach"},
		"uk":      {"UK Tesco", "UK ASDA", "UK Home Depot", "UK Love2shop"},
		"other":   {"EUR Nintendo", "Eneba Germany", "Joker Card", "US MoneyPak"},
	}
}
