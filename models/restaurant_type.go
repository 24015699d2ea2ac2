package models

// RestaurantType is one entry of the fixed cuisine-style catalogue.
type RestaurantType struct {
	Name        string `json:"name" yaml:"name"`
	Color       string `json:"color" yaml:"color"`
	Description string `json:"description" yaml:"description"`
}

// GoGreenFactors are the per-meal savings credited to go-green restaurants.
type GoGreenFactors struct {
	Color               string  `json:"color" yaml:"color"`
	CarbonKgPerMeal     float64 `json:"carbon_kg_per_meal" yaml:"carbon_kg_per_meal"`
	PlasticGramsPerMeal float64 `json:"plastic_grams_per_meal" yaml:"plastic_grams_per_meal"`
	WaterLitersPerMeal  float64 `json:"water_liters_per_meal" yaml:"water_liters_per_meal"`
}

// RestaurantTypeCatalog is the read-only type enumeration used for validation.
type RestaurantTypeCatalog struct {
	Types   []RestaurantType `json:"types" yaml:"types"`
	GoGreen GoGreenFactors   `json:"go_green" yaml:"go_green"`
}

// IsValid reports whether name is one of the catalogue's types.
func (c *RestaurantTypeCatalog) IsValid(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// Lookup returns the type with the given name.
func (c *RestaurantTypeCatalog) Lookup(name string) (RestaurantType, bool) {
	for _, t := range c.Types {
		if t.Name == name {
			return t, true
		}
	}
	return RestaurantType{}, false
}

// Names returns the type names in catalogue order.
func (c *RestaurantTypeCatalog) Names() []string {
	names := make([]string, len(c.Types))
	for i, t := range c.Types {
		names[i] = t.Name
	}
	return names
}
