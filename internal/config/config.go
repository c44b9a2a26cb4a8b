// Package config holds the per-vendor comparison profiles: which columns
// participate in redundancy grouping and which normalization quirks apply.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hunseop/hoon-firewall-modules/internal/model"
)

// Profile describes how one vendor's rule exports are compared.
type Profile struct {
	// Columns are the raw comparison columns for redundancy grouping.
	Columns []string `yaml:"columns"`
	// ExtractedColumns replace Columns when the table carries the
	// object-resolved Extracted * columns.
	ExtractedColumns []string `yaml:"extracted_columns"`
	// ServiceUnderscoreToDash rewrites _ to - in Service values before
	// comparison. PaloAlto exports are inconsistent about the separator.
	ServiceUnderscoreToDash bool `yaml:"service_underscore_to_dash"`
}

func defaultProfiles() map[model.Vendor]Profile {
	base := Profile{
		Columns: []string{
			model.ColEnable, model.ColAction, model.ColSource, model.ColUser,
			model.ColDestination, model.ColService, model.ColApplication,
		},
		ExtractedColumns: []string{
			model.ColEnable, model.ColAction, model.ColExtractedSource, model.ColUser,
			model.ColExtractedDestination, model.ColExtractedService, model.ColApplication,
		},
	}
	paloalto := Profile{
		Columns: append(append([]string(nil), base.Columns...),
			"Security Profile", "Category", "Vsys"),
		ExtractedColumns: append(append([]string(nil), base.ExtractedColumns...),
			"Security Profile", "Category", "Vsys"),
		ServiceUnderscoreToDash: true,
	}
	return map[model.Vendor]Profile{
		model.VendorDefault:  base,
		model.VendorNGF:      base,
		model.VendorMF2:      base,
		model.VendorPaloAlto: paloalto,
	}
}

// Registry resolves vendor keys to profiles, falling back to the default
// profile for anything unknown.
type Registry struct {
	profiles map[model.Vendor]Profile
}

// NewRegistry returns a registry with the built-in profiles.
func NewRegistry() *Registry {
	return &Registry{profiles: defaultProfiles()}
}

// Profile returns the profile for v, or the default profile when v has
// none registered.
func (r *Registry) Profile(v model.Vendor) Profile {
	if p, ok := r.profiles[v]; ok {
		return p
	}
	return r.profiles[model.VendorDefault]
}

// LoadOverrides merges vendor profiles from a YAML file. Only the vendors
// named in the file are replaced.
func (r *Registry) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read profile overrides: %w", err)
	}
	var raw map[string]Profile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse profile overrides %s: %w", path, err)
	}
	for key, p := range raw {
		if len(p.Columns) == 0 {
			return fmt.Errorf("profile %q has no columns", key)
		}
		if len(p.ExtractedColumns) == 0 {
			p.ExtractedColumns = p.Columns
		}
		r.profiles[model.Vendor(key)] = p
	}
	return nil
}
