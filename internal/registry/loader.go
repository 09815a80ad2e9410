package registry

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	id "concord/pkg/domain"
)

// fileOverride mirrors the YAML layout. Every field is optional so a file
// only has to name what it changes.
type fileOverride struct {
	Domains map[string]domainOverride `yaml:"domains"`
}

type domainOverride struct {
	Label           *string            `yaml:"label"`
	Quorum          *int               `yaml:"quorum"`
	ReviewWindow    *string            `yaml:"review_window"`
	Peers           []string           `yaml:"peers"`
	Guardrails      []string           `yaml:"guardrails"`
	Resources       []ResourceType     `yaml:"resources"`
	StakeMultiplier *float64           `yaml:"stake_multiplier"`
	AutoAttest      *bool              `yaml:"auto_attest"`
	SeedStock       map[string]float64 `yaml:"seed_stock"`
}

// Load returns the default registry with overrides from the YAML file at
// path applied. An empty path yields the defaults.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	return Parse(raw)
}

// Parse applies YAML overrides to the default table.
func Parse(raw []byte) (*Registry, error) {
	var file fileOverride
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode registry file: %w", err)
	}

	domains := DefaultDomains()
	index := make(map[id.DomainID]int, len(domains))
	for i, d := range domains {
		index[d.ID] = i
	}

	for name, ov := range file.Domains {
		did, err := id.ParseDomainID(name)
		if err != nil {
			return nil, err
		}
		if err := ov.apply(&domains[index[did]]); err != nil {
			return nil, fmt.Errorf("domain %s: %w", did, err)
		}
	}
	return New(domains)
}

func (ov domainOverride) apply(d *Domain) error {
	if ov.Label != nil {
		d.Label = *ov.Label
	}
	if ov.Quorum != nil {
		d.Quorum = *ov.Quorum
	}
	if ov.ReviewWindow != nil {
		w, err := time.ParseDuration(*ov.ReviewWindow)
		if err != nil {
			return fmt.Errorf("review_window: %w", err)
		}
		d.ReviewWindow = w
	}
	if ov.Peers != nil {
		peers := make([]id.DomainID, 0, len(ov.Peers))
		for _, p := range ov.Peers {
			pid, err := id.ParseDomainID(p)
			if err != nil {
				return err
			}
			peers = append(peers, pid)
		}
		d.Peers = peers
	}
	if ov.Guardrails != nil {
		d.Guardrails = ov.Guardrails
	}
	if ov.Resources != nil {
		d.Resources = ov.Resources
	}
	if ov.StakeMultiplier != nil {
		d.StakeMultiplier = *ov.StakeMultiplier
	}
	if ov.AutoAttest != nil {
		d.AutoAttest = *ov.AutoAttest
	}
	if ov.SeedStock != nil {
		d.SeedStock = ov.SeedStock
	}
	return nil
}
