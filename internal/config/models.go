package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelProfile is one named backend configuration. The agent's modelConfig
// field selects a profile; the factory builds the tagged variant.
type ModelProfile struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"` // workspace | direct
	BaseURL   string `yaml:"baseUrl,omitempty"`
	APIKey    string `yaml:"apiKey,omitempty"`
	Workspace string `yaml:"workspace,omitempty"` // workspace kind
	Model     string `yaml:"model,omitempty"`     // direct kind
}

type profilesFile struct {
	Profiles []ModelProfile `yaml:"profiles"`
}

// LoadModelProfiles reads backend profiles from a YAML file. Values support
// the same ${VAR} / ${VAR:-default} substitution as the main config.
func LoadModelProfiles(path string) (map[string]ModelProfile, error) {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("read model profiles %s: %w", path, err)
	}
	data = []byte(ExpandEnvVars(string(data)))

	var pf profilesFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse model profiles %s: %w", path, err)
	}

	out := make(map[string]ModelProfile, len(pf.Profiles))
	for _, p := range pf.Profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("model profiles %s: profile without a name", path)
		}
		switch p.Kind {
		case "workspace", "direct":
		default:
			return nil, fmt.Errorf("model profiles %s: profile %q has unknown kind %q", path, p.Name, p.Kind)
		}
		if _, dup := out[p.Name]; dup {
			return nil, fmt.Errorf("model profiles %s: duplicate profile %q", path, p.Name)
		}
		out[p.Name] = p
	}
	return out, nil
}

// BuiltinProfiles derives the profile set used when no models file is
// configured: a single workspace profile from the api section.
func (c *Config) BuiltinProfiles() map[string]ModelProfile {
	return map[string]ModelProfile{
		"workspace-default": {
			Name:      "workspace-default",
			Kind:      "workspace",
			BaseURL:   c.API.BaseURL,
			APIKey:    c.API.APIKey,
			Workspace: c.API.Workspace,
		},
	}
}

// Profiles returns the effective profile set: the models file when
// configured, otherwise the built-in workspace profile.
func (c *Config) Profiles() (map[string]ModelProfile, error) {
	if c.Models.Path == "" {
		return c.BuiltinProfiles(), nil
	}
	return LoadModelProfiles(c.Models.Path)
}
