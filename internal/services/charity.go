package services

// CharityCatalog maps charity codes to display names. The catalog is fixed at
// startup and varies per deployment; every deployment carries an
// all-charities aggregate entry.
type CharityCatalog struct {
	names map[string]string
}

func NewCharityCatalog(names map[string]string) *CharityCatalog {
	return &CharityCatalog{names: names}
}

// DefaultCharityCatalog returns the standard catalog.
func DefaultCharityCatalog() *CharityCatalog {
	return NewCharityCatalog(map[string]string{
		"all_charities":       "All charities fund",
		"against_malaria":     "Against Malaria Foundation",
		"ai_safety_center":    "Centre pour la Sécurité de l'IA",
		"good_food_institute": "Good Food Institute",
		"helen_keller":        "Helen Keller International",
		"new_incentives":      "New Incentives",
		"preserving_future":   "Preserving the future fund",
		"humane_league":       "The Humane League",
	})
}

// IsValid reports whether code belongs to the active catalog.
func (c *CharityCatalog) IsValid(code string) bool {
	_, ok := c.names[code]
	return ok
}

// DisplayName returns the display name for code, falling back to the raw
// code when unknown. Membership is enforced by validation, not here.
func (c *CharityCatalog) DisplayName(code string) string {
	if name, ok := c.names[code]; ok {
		return name
	}
	return code
}
