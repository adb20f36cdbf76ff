package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sokinpui/gradeprep/internal/csvcodec"
	"github.com/sokinpui/gradeprep/internal/patcher"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "gradeprep.yaml"

// Config holds all gradeprep configuration.
type Config struct {
	// PresetsFile is the source file whose constants are patched.
	PresetsFile string `yaml:"presets_file"`

	// CommaPlaceholder stands in for commas inside CSV fields.
	CommaPlaceholder string `yaml:"comma_placeholder"`

	// CounterFile holds the processed-work counter.
	CounterFile string `yaml:"counter_file"`

	// Token storage
	TokenFile string `yaml:"token_file"`
	TokenEnv  string `yaml:"token_env"`

	// StateDir holds history and logs.
	StateDir string `yaml:"state_dir"`

	Logging LoggingConfig `yaml:"logging"`

	Settings []Setting `yaml:"settings"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Disable bool   `yaml:"disable"`
}

// Setting is one patchable constant offered in the update menu.
type Setting struct {
	Name      string `yaml:"name"`
	Prefix    string `yaml:"prefix"`
	Prompt    string `yaml:"prompt"`
	Type      string `yaml:"type,omitempty"`
	Transform string `yaml:"transform,omitempty"`
	// Private settings are only listed with --show-all.
	Private bool `yaml:"private,omitempty"`
}

// Rule converts the setting into a patch rule.
func (s Setting) Rule() patcher.Rule {
	return patcher.Rule{
		Name:      s.Name,
		Prefix:    s.Prefix,
		Prompt:    s.Prompt,
		Type:      s.Type,
		Transform: s.Transform,
	}
}

const modelPricingURL = "https://replicate.com/pricing#language-models"

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		PresetsFile:      "presets.py",
		CommaPlaceholder: csvcodec.DefaultPlaceholder,
		CounterFile:      ".gradeprep/counter",
		TokenFile:        ".gradeprep/token",
		TokenEnv:         "REPLICATE_API_TOKEN",
		StateDir:         ".gradeprep",
		Logging:          LoggingConfig{Level: "info"},
		Settings: []Setting{
			{Name: "update_form", Prefix: "    GOOGLE_FORM_ID", Prompt: "Enter the URL of the Google Form: ", Transform: "id_strip"},
			{Name: "update_sheet", Prefix: "    GOOGLE_SPREADSHEET_ID", Prompt: "Enter the URL of the Google Spreadsheet: ", Transform: "id_strip"},
			{Name: "_update_user_identifier", Prefix: "    GOOGLE_FORM_USER_IDENTIFIER", Prompt: "Enter the title of the question on the google form that asks for a users name (default: 'Name'): ", Private: true},
			{Name: "_update_comma_placeholder", Prefix: "    COMMA_PLACEHOLDER", Prompt: "Enter comma placeholder: ", Private: true},
			{Name: "_update_graded_submissions_location", Prefix: "    GRADED_SUBMISSIONS_LOCATION", Prompt: "Enter new graded-submissions location: ", Private: true},
			{Name: "_update_gradebook_report_location", Prefix: "    GRADEBOOK_REPORT_LOCATION", Prompt: "Enter new graded-submissions-report location: ", Private: true},
			{Name: "_update_submissions_location", Prefix: "    SUBMISSIONS_LOCATION", Prompt: "Enter new submissions location: ", Private: true},
			{Name: "_update_rubric_location", Prefix: "    RUBRIC_LOCATION", Prompt: "Enter new rubric location: ", Private: true},
			{Name: "_update_ai_model", Prefix: "    AI_MODEL", Prompt: fmt.Sprintf("Enter model name as it apears on %s: ", modelPricingURL), Private: true},
		},
	}
}

// Load reads the YAML config at path on top of the defaults. A missing file
// yields the defaults unchanged. Settings given in the file replace the
// default table as a whole.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	defaults := cfg.Settings
	cfg.Settings = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if len(cfg.Settings) == 0 {
		cfg.Settings = defaults
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings table.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.PresetsFile) == "" {
		return errors.New("presets_file is required")
	}
	seen := make(map[string]struct{}, len(c.Settings))
	for i, s := range c.Settings {
		if s.Name == "" {
			return fmt.Errorf("settings[%d]: name is required", i)
		}
		if _, ok := seen[s.Name]; ok {
			return fmt.Errorf("settings[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = struct{}{}
		if strings.TrimSpace(s.Prefix) == "" {
			return fmt.Errorf("settings[%d] %s: prefix is required", i, s.Name)
		}
		if _, err := patcher.LookupTransform(s.Transform); err != nil {
			return fmt.Errorf("settings[%d] %s: %w", i, s.Name, err)
		}
	}
	return nil
}

// VisibleSettings returns the public settings, plus the private ones when
// showAll is set, in table order.
func (c *Config) VisibleSettings(showAll bool) []Setting {
	var out []Setting
	for _, s := range c.Settings {
		if s.Private && !showAll {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
