// Package config loads agent profiles from JSON or YAML files. A profile
// bundles the provider selection, workspace root, and session policy that
// the chat command wires together at startup.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/apollo/internal/guard"
)

// Profile represents the structured configuration for an agent session.
type Profile struct {
	Workspace     string       `json:"workspace" yaml:"workspace"`
	Provider      string       `json:"provider" yaml:"provider"`
	Model         string       `json:"model" yaml:"model"`
	HistoryWindow int          `json:"history_window" yaml:"history_window"`
	Policy        guard.Policy `json:"policy" yaml:"policy"`
}

// ValidationResult represents the outcome of a profile check.
type ValidationResult struct {
	Valid    bool
	Warnings []string
	Errors   []string
}

// DefaultProfile returns the profile used when no config file is given.
func DefaultProfile() Profile {
	return Profile{
		Workspace:     ".",
		Provider:      "openai",
		HistoryWindow: 20,
		Policy:        guard.DefaultPolicy,
	}
}

// Load reads a profile from a file (JSON or YAML).
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	profile := DefaultProfile()
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON profile: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML profile: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported profile format: %s (use .json or .yaml)", ext)
	}

	return &profile, nil
}

// Validate checks the profile for completeness.
func Validate(p Profile) ValidationResult {
	res := ValidationResult{
		Valid:    true,
		Warnings: []string{},
		Errors:   []string{},
	}

	if p.Provider == "" {
		res.Valid = false
		res.Errors = append(res.Errors, "Provider is required")
	}

	if p.Workspace == "" {
		res.Valid = false
		res.Errors = append(res.Errors, "Workspace root is required")
	}

	if p.HistoryWindow < 0 {
		res.Valid = false
		res.Errors = append(res.Errors, "History window cannot be negative")
	} else if p.HistoryWindow == 0 {
		res.Warnings = append(res.Warnings, "History window of 0 sends no prior turns to the provider")
	}

	if p.Model == "" {
		res.Warnings = append(res.Warnings, "No model specified; the provider default will be used")
	}

	return res
}
