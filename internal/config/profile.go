package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/cinema-assistant/internal/assistant"
)

// profileFile is the on-disk shape of ASSISTANT_PROFILE:
//
//	navigation:
//	  offers: /offers
//	genre_aliases:
//	  thriller flick: Thriller
type profileFile struct {
	Navigation   map[string]string `yaml:"navigation"`
	GenreAliases map[string]string `yaml:"genre_aliases"`
}

// LoadProfile returns the default assistant vocabulary extended by the YAML
// file at path. An empty path yields the defaults.
func LoadProfile(path string) (assistant.Profile, error) {
	if path == "" {
		return assistant.DefaultProfile(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return assistant.Profile{}, fmt.Errorf("read profile: %w", err)
	}
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return assistant.Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	for word, target := range f.Navigation {
		if !strings.HasPrefix(target, "/") {
			return assistant.Profile{}, fmt.Errorf("profile %s: navigation %q must be an absolute path, got %q", path, word, target)
		}
	}
	for alias, genre := range f.GenreAliases {
		if strings.TrimSpace(genre) == "" {
			return assistant.Profile{}, fmt.Errorf("profile %s: genre alias %q has no genre", path, alias)
		}
	}
	return assistant.DefaultProfile().With(assistant.Profile{
		Navigation:   f.Navigation,
		GenreAliases: f.GenreAliases,
	}), nil
}
