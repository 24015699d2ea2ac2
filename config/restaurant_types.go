package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"food-marketplace-api/models"

	"gopkg.in/yaml.v3"
)

//go:embed restaurant_types.yaml
var defaultRestaurantTypes []byte

// LoadRestaurantTypes parses the catalogue from path, or the embedded default when
// path is empty.
func LoadRestaurantTypes(path string) (*models.RestaurantTypeCatalog, error) {
	data := defaultRestaurantTypes
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read restaurant types: %w", err)
		}
		data = b
	}
	return ParseRestaurantTypes(data)
}

// ParseRestaurantTypes decodes and checks a YAML catalogue.
func ParseRestaurantTypes(data []byte) (*models.RestaurantTypeCatalog, error) {
	var catalog models.RestaurantTypeCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse restaurant types: %w", err)
	}
	if len(catalog.Types) == 0 {
		return nil, errors.New("restaurant types: catalogue is empty")
	}
	seen := make(map[string]bool, len(catalog.Types))
	for _, t := range catalog.Types {
		if t.Name == "" {
			return nil, errors.New("restaurant types: entry without a name")
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("restaurant types: duplicate type %q", t.Name)
		}
		seen[t.Name] = true
	}
	return &catalog, nil
}

// DefaultRestaurantTypes returns the embedded catalogue. It panics if the embedded
// file is malformed.
func DefaultRestaurantTypes() *models.RestaurantTypeCatalog {
	catalog, err := ParseRestaurantTypes(defaultRestaurantTypes)
	if err != nil {
		panic(err)
	}
	return catalog
}
