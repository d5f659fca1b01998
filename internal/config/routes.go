package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "hostelmon/internal/errors"
)

// routesFile is the on-disk shape of ROUTES_FILE:
//
//	routes:
//	  PLUMBING: plumbing@university.edu
//	  OTHER: admin@university.edu
type routesFile struct {
	Routes map[string]string `yaml:"routes"`
}

// LoadRoutes reads category -> address overrides from a YAML file.
// Category keys are uppercased; blank addresses are dropped.
func LoadRoutes(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfigError("ROUTES_FILE", "read %s: %v", path, err)
	}
	return ParseRoutes(data)
}

// ParseRoutes decodes a routing overrides document.
func ParseRoutes(data []byte) (map[string]string, error) {
	var doc routesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.NewConfigError("ROUTES_FILE", "parse: %v", err)
	}

	routes := make(map[string]string, len(doc.Routes))
	for category, address := range doc.Routes {
		address = strings.TrimSpace(address)
		if address == "" {
			continue
		}
		routes[strings.ToUpper(strings.TrimSpace(category))] = address
	}
	return routes, nil
}
