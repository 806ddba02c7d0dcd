package routing

import (
	"fmt"
	"maps"
	"os"
	"trip_planner/planner/schema"

	"gopkg.in/yaml.v3"
)

func DefaultProfiles() map[string]string {
	return map[string]string{
		schema.Driving: "driving-car",
		schema.Cycling: "cycling-regular",
		schema.Walking: "foot-walking",
	}
}

type profilesFile struct {
	Profiles map[string]string `yaml:"profiles"`
}

// LoadProfiles reads a yaml file of the form
//
//	profiles:
//	  driving: driving-hgv
//
// and merges it over the default transport mode to provider profile mapping.
func LoadProfiles(path string) (map[string]string, error) {
	profiles := DefaultProfiles()
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading provider profiles file: %w", err)
	}

	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error decoding provider profiles file: %w", err)
	}

	for mode := range file.Profiles {
		if err := schema.CheckValidTransportMode(mode); err != nil {
			return nil, fmt.Errorf("invalid provider profiles file: %w", err)
		}
		if mode == schema.PublicTransport {
			return nil, fmt.Errorf("invalid provider profiles file: %v is served by the transit provider", mode)
		}
	}

	maps.Copy(profiles, file.Profiles)
	return profiles, nil
}
