package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"slipline/internal/domain"
)

// Config models slipline.yml.
type Config struct {
	Project struct {
		ID           string `yaml:"id"`
		Kind         string `yaml:"kind"`
		ShipyardName string `yaml:"shipyard_name"`
		VesselType   string `yaml:"vessel_type"`
	} `yaml:"project"`
	Roles struct {
		Catalog map[string]RoleSpec `yaml:"catalog"`
	} `yaml:"roles"`
	Notifications struct {
		Webhooks []Webhook `yaml:"webhooks"`
	} `yaml:"notifications"`
}

type RoleSpec struct {
	Description string `yaml:"description"`
}

// Webhook is a notification delivery target. Types narrows delivery to the
// listed notification types; empty means all.
type Webhook struct {
	URL   string   `yaml:"url"`
	Types []string `yaml:"types"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with slipline project config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Project.ID == "" {
		return fmt.Errorf("config.project.id is required")
	}
	if c.Project.Kind != "hull-fabrication" {
		return fmt.Errorf("config.project.kind must be 'hull-fabrication'")
	}
	for roleID := range c.Roles.Catalog {
		if roleID == "" {
			return fmt.Errorf("config.roles.catalog contains empty role id")
		}
		if !domain.ValidRole(roleID) {
			return fmt.Errorf("config.roles.catalog contains unknown role %s", roleID)
		}
	}
	for i, wh := range c.Notifications.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("config.notifications.webhooks[%d].url is required", i)
		}
		for _, t := range wh.Types {
			if t == "" {
				return fmt.Errorf("webhook %s has empty notification type", wh.URL)
			}
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "slipline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(projectID string) string {
	return fmt.Sprintf(defaultTemplate, projectID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a project.
func Default(projectID string) *Config {
	var cfg Config
	cfg.Project.ID = projectID
	cfg.Project.Kind = "hull-fabrication"
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, projectID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `project:
  id: %s
  kind: hull-fabrication
  shipyard_name: ""
  vessel_type: ""

roles:
  catalog:
    lead_project_manager:
      description: "Owns the schedule; edits plans and submits change requests"
    baseline_approver:
      description: "Reviews and approves routine change requests"
    owner_representative:
      description: "Vessel owner's delegate; must approve scope changes"
    procurement_lead:
      description: "Tracks material supply against the schedule"
    qa_classification_officer:
      description: "Quality and class society liaison"
    team_member:
      description: "Reports stage progress"

notifications:
  webhooks: []
`
