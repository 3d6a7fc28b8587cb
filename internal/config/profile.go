package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile presets console fields for a recurring test conversation.
type Profile struct {
	LocationID  string         `yaml:"location_id"`
	ContactID   string         `yaml:"contact_id"`
	Filters     ProfileFilters `yaml:"filters"`
	Attachments *string        `yaml:"attachments"`
	ExpiresAt   string         `yaml:"expires_at"`
}

type ProfileFilters struct {
	Limit     *string `yaml:"limit"`
	Offset    *string `yaml:"offset"`
	Direction string  `yaml:"direction"`
	UnreadBy  string  `yaml:"unread_by"`
	StartTime string  `yaml:"start_time"`
	EndTime   string  `yaml:"end_time"`
}

func LoadProfile(path string) (Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Profile{}, fmt.Errorf("profile not found: %s", path)
		}
		return Profile{}, err
	}
	var p Profile
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Profile{}, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	return p, nil
}
