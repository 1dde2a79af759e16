// Package settings holds the user-controlled run configuration: which nodes
// take part in a prediction and the simulated privacy dial forwarded into the
// prompt. The privacy budget is a display/prompt parameter only; nothing in
// fedpath adds noise to anything.
package settings

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Privacy budget bounds.
const (
	MinPrivacyBudget = 0.1
	MaxPrivacyBudget = 1.0
)

// DefaultNodes are the nodes enabled out of the box, in display order.
var DefaultNodes = []string{"hospital_a", "hospital_b", "hospital_c", "global_model"}

// Settings is the participation set and privacy dial for a run.
//
// Pipelines must not hold on to a Settings that someone else can mutate; take
// a Snapshot at the start of each run.
type Settings struct {
	// ActiveModels maps node name to whether it participates.
	ActiveModels map[string]bool `yaml:"activeModels" json:"activeModels"`

	// ModelOrder fixes the display/prompt order of known nodes. Names absent
	// from it are ordered alphabetically after it.
	ModelOrder []string `yaml:"modelOrder,omitempty" json:"modelOrder,omitempty"`

	PrivacyBudget   float64 `yaml:"privacyBudget" json:"privacyBudget"`
	UseLocalPrivacy bool    `yaml:"useLocalPrivacy" json:"useLocalPrivacy"`
}

// Default returns every DefaultNodes entry active with a full privacy budget.
func Default() Settings {
	active := make(map[string]bool, len(DefaultNodes))
	for _, n := range DefaultNodes {
		active[n] = true
	}
	order := make([]string, len(DefaultNodes))
	copy(order, DefaultNodes)

	return Settings{
		ActiveModels:    active,
		ModelOrder:      order,
		PrivacyBudget:   MaxPrivacyBudget,
		UseLocalPrivacy: false,
	}
}

// Snapshot returns a deep copy, safe to hand across goroutines.
func (s Settings) Snapshot() Settings {
	active := make(map[string]bool, len(s.ActiveModels))
	for k, v := range s.ActiveModels {
		active[k] = v
	}
	var order []string
	if s.ModelOrder != nil {
		order = make([]string, len(s.ModelOrder))
		copy(order, s.ModelOrder)
	}
	return Settings{
		ActiveModels:    active,
		ModelOrder:      order,
		PrivacyBudget:   s.PrivacyBudget,
		UseLocalPrivacy: s.UseLocalPrivacy,
	}
}

// Validate checks the privacy budget range.
func (s Settings) Validate() error {
	if s.PrivacyBudget < MinPrivacyBudget || s.PrivacyBudget > MaxPrivacyBudget {
		return fmt.Errorf("privacy budget %.2f outside [%.1f, %.1f]", s.PrivacyBudget, MinPrivacyBudget, MaxPrivacyBudget)
	}
	for name := range s.ActiveModels {
		if name == "" {
			return errors.New("node name must not be empty")
		}
	}
	return nil
}

// ActiveNames returns participating node names: those listed in ModelOrder
// first, in that order, then any others sorted by name.
func (s Settings) ActiveNames() []string {
	seen := make(map[string]bool, len(s.ModelOrder))
	var names []string
	for _, n := range s.ModelOrder {
		if s.ActiveModels[n] && !seen[n] {
			names = append(names, n)
		}
		seen[n] = true
	}

	var rest []string
	for n, on := range s.ActiveModels {
		if on && !seen[n] {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// Toggle sets whether name participates, registering it if new.
func (s *Settings) Toggle(name string, on bool) {
	if s.ActiveModels == nil {
		s.ActiveModels = make(map[string]bool)
	}
	s.ActiveModels[name] = on
}

// SetPrivacyBudget updates the privacy dial after range-checking it.
func (s *Settings) SetPrivacyBudget(v float64) error {
	if v < MinPrivacyBudget || v > MaxPrivacyBudget {
		return fmt.Errorf("privacy budget %.2f outside [%.1f, %.1f]", v, MinPrivacyBudget, MaxPrivacyBudget)
	}
	s.PrivacyBudget = v
	return nil
}

// Load reads YAML settings from path over Default. An empty path returns
// Default unchanged.
func Load(path string) (Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	var fileSettings Settings
	if err := yaml.Unmarshal(data, &fileSettings); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}

	if fileSettings.ActiveModels != nil {
		s.ActiveModels = fileSettings.ActiveModels
	}
	if fileSettings.ModelOrder != nil {
		s.ModelOrder = fileSettings.ModelOrder
	}
	if fileSettings.PrivacyBudget != 0 {
		s.PrivacyBudget = fileSettings.PrivacyBudget
	}
	s.UseLocalPrivacy = fileSettings.UseLocalPrivacy

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}

	log.Debug().
		Str("path", path).
		Strs("active", s.ActiveNames()).
		Float64("privacy_budget", s.PrivacyBudget).
		Msg("Settings loaded")

	return s, nil
}
